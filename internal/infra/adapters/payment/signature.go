package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"oracle-bot/internal/domain/ports/adapter"
)

var _ adapter.SignatureVerifier = (*HMACVerifier)(nil)

// HMACVerifier checks the hex HMAC-SHA256 the processor sends over the raw body.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("webhook secret empty")
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

// Verify compares in constant time. A header that is not valid hex never
// matches. Some processors prefix the digest with "sha256="; that is accepted.
func (v *HMACVerifier) Verify(body []byte, signature string) bool {
	sig := strings.TrimSpace(signature)
	sig = strings.TrimPrefix(sig, "sha256=")
	got, err := hex.DecodeString(sig)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(got, v.sum(body))
}

// Sign returns the hex signature for body. Used by tooling and tests.
func (v *HMACVerifier) Sign(body []byte) string {
	return hex.EncodeToString(v.sum(body))
}

func (v *HMACVerifier) sum(body []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write(body)
	return m.Sum(nil)
}
