package adapter

import "oracle-bot/internal/domain/model"

// SignatureVerifier authenticates a raw notification body against the
// signature header sent by the payment processor.
type SignatureVerifier interface {
	Verify(body []byte, signature string) bool
}

// CheckoutLinkBuilder builds the processor deep link for a service. The
// correlation token travels as custom data and comes back in the webhook.
type CheckoutLinkBuilder interface {
	CheckoutURL(svc model.ServiceDescriptor, token model.CorrelationToken) (string, error)
}
