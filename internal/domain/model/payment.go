package model

import "time"

// PaymentNotification is an inbound processor callback. Never persisted.
type PaymentNotification struct {
	RawBody          []byte
	Signature        string
	Status           string
	CorrelationToken string
	EventID          string // optional, processor-assigned
}

// PaymentEvent records a notification that unlocked a session. It backs
// replay detection so a redelivered webhook cannot unlock twice.
type PaymentEvent struct {
	ID          string // ULID
	Key         string // event id, or sha256 of the raw body
	BuyerID     int64
	ServiceCode string
	Status      string
	ReceivedAt  time.Time
}

// Outcome is the result of handling one payment notification.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeBadRequest   Outcome = "bad_request"
	OutcomeInternal     Outcome = "internal"
)

// Acknowledged reports whether the processor should see a success status.
func (o Outcome) Acknowledged() bool {
	switch o {
	case OutcomeOK, OutcomeIgnored, OutcomeDuplicate:
		return true
	}
	return false
}
