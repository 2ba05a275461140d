package memory

import (
	"context"
	"sync"
	"time"

	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/repository"
)

var _ repository.PaymentEventLog = (*EventLog)(nil)

// EventLog remembers applied notification keys for ttl.
type EventLog struct {
	mu      sync.Mutex
	ttl     time.Duration
	expires map[string]time.Time
	now     func() time.Time
}

func NewEventLog(ttl time.Duration) *EventLog {
	return &EventLog{ttl: ttl, expires: make(map[string]time.Time), now: time.Now}
}

func (l *EventLog) Seen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.expires[key]
	if !ok {
		return false, nil
	}
	if l.now().After(exp) {
		delete(l.expires, key)
		return false, nil
	}
	return true, nil
}

func (l *EventLog) Record(_ context.Context, ev *model.PaymentEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expires[ev.Key] = l.now().Add(l.ttl)
	return nil
}

// Sweep drops expired keys and returns how many were removed.
func (l *EventLog) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, exp := range l.expires {
		if now.After(exp) {
			delete(l.expires, k)
			n++
		}
	}
	return n
}
