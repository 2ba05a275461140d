package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"oracle-bot/internal/domain"
)

// classifyStatus maps a provider HTTP status to a domain error.
func classifyStatus(provider string, code int, err error) error {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrUpstreamTransient, err)
	default:
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrUpstreamRejected, err)
	}
}

// classifyTransport handles errors that never produced an HTTP status.
func classifyTransport(provider string, err error) error {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrUpstreamTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", provider, err)
	case errors.As(err, &nerr) && nerr.Timeout():
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrUpstreamTimeout, err)
	case errors.As(err, &nerr):
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrUpstreamTransient, err)
	default:
		return fmt.Errorf("%s: %w: %w", provider, domain.ErrUpstreamRejected, err)
	}
}

func modelOrDefault(model, def string) string {
	if model != "" {
		return model
	}
	return def
}
