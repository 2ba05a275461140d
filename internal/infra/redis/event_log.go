package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/repository"
)

var _ repository.PaymentEventLog = (*EventLog)(nil)

// EventLog marks applied notifications with SET NX so the first writer wins.
type EventLog struct {
	client *Client
	ttl    time.Duration
}

func NewEventLog(client *Client, ttl time.Duration) *EventLog {
	return &EventLog{client: client, ttl: ttl}
}

func eventKey(key string) string {
	return "oracle:payment_event:" + key
}

func (l *EventLog) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.Exists(ctx, eventKey(key))
	if err != nil {
		return false, fmt.Errorf("check payment event: %w", err)
	}
	return ok, nil
}

func (l *EventLog) Record(ctx context.Context, ev *model.PaymentEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := l.client.SetNX(ctx, eventKey(ev.Key), data, l.ttl); err != nil {
		return fmt.Errorf("record payment event: %w", err)
	}
	return nil
}
