package repository

import (
	"context"

	"oracle-bot/internal/domain/model"
)

// PaymentEventLog remembers which notifications have already been applied.
type PaymentEventLog interface {
	Seen(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, ev *model.PaymentEvent) error
}
