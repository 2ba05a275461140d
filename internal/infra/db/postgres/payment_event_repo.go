package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/repository"
)

var _ repository.PaymentEventLog = (*paymentEventRepo)(nil)

const paymentEventsSchema = `
CREATE TABLE IF NOT EXISTS payment_events (
  id           TEXT PRIMARY KEY,
  event_key    TEXT NOT NULL UNIQUE,
  buyer_id     BIGINT NOT NULL,
  service_code TEXT NOT NULL,
  status       TEXT NOT NULL,
  received_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS payment_events_buyer_idx ON payment_events (buyer_id, received_at DESC);`

type paymentEventRepo struct{ db querier }

func NewPaymentEventRepo(pool *pgxpool.Pool) *paymentEventRepo {
	return &paymentEventRepo{db: pool}
}

// EnsureSchema creates the ledger table if it does not exist.
func (r *paymentEventRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, paymentEventsSchema); err != nil {
		return fmt.Errorf("ensure payment_events: %w", err)
	}
	return nil
}

func (r *paymentEventRepo) Seen(ctx context.Context, key string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM payment_events WHERE event_key=$1);`
	var ok bool
	if err := r.db.QueryRow(ctx, q, key).Scan(&ok); err != nil {
		return false, fmt.Errorf("check payment event: %w", err)
	}
	return ok, nil
}

// Record inserts the event; a second insert for the same key is a no-op.
func (r *paymentEventRepo) Record(ctx context.Context, ev *model.PaymentEvent) error {
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	const q = `
INSERT INTO payment_events (id, event_key, buyer_id, service_code, status, received_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (event_key) DO NOTHING;`
	if _, err := r.db.Exec(ctx, q, ev.ID, ev.Key, ev.BuyerID, ev.ServiceCode, ev.Status, ev.ReceivedAt); err != nil {
		return fmt.Errorf("record payment event: %w", err)
	}
	return nil
}
