package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownService  = errors.New("unknown service code")

	// Payment notification outcomes
	ErrUnauthorized = errors.New("notification signature mismatch")
	ErrBadRequest   = errors.New("malformed notification")
	ErrIgnored      = errors.New("notification is not a completed payment")

	// Conversation flow
	ErrStateConflict   = errors.New("session is not in the expected stage")
	ErrStaleReply      = errors.New("session changed while the reply was in flight")
	ErrQuestionTooLong = errors.New("question exceeds the allowed length")
	ErrInFlight        = errors.New("a question is already being answered")

	// Upstream collaborators (generative text, chat transport)
	ErrUpstreamTimeout   = errors.New("upstream call timed out")
	ErrUpstreamTransient = errors.New("upstream temporarily unavailable")
	ErrUpstreamRejected  = errors.New("upstream rejected the request")
)
