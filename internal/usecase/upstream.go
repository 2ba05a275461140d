package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"oracle-bot/internal/domain"
)

// Dispatcher runs fire-and-forget work off the request path.
type Dispatcher interface {
	Submit(task func(ctx context.Context) error) error
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrUpstreamTimeout) || errors.Is(err, domain.ErrUpstreamTransient)
}

// retryOnce runs call with a per-attempt timeout and repeats it once when the
// first failure is a timeout or transient error. A cancelled parent context
// is never retried.
func retryOnce[T any](ctx context.Context, timeout time.Duration, call func(ctx context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		v, err := call(actx)
		if err != nil && !retryable(err) && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
		}
		return v, err
	}

	v, err := attempt()
	if err == nil || !retryable(err) || ctx.Err() != nil {
		return v, err
	}
	return attempt()
}

// ctxLogger prefers the request logger carried in ctx.
func ctxLogger(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return fallback
}
