package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"oracle-bot/internal/infra/metrics"
)

// SessionSource is a session store that can drop stale entries itself.
type SessionSource interface {
	Sweep(olderThan time.Duration) int
}

// EventSource is a payment ledger that expires old entries itself.
type EventSource interface {
	Sweep() int
}

// SessionSweeper periodically evicts idle sessions and expired ledger entries
// from the in-memory backends.
type SessionSweeper struct {
	interval time.Duration
	ttl      time.Duration
	sessions SessionSource
	events   EventSource
	log      *zerolog.Logger
}

// NewSessionSweeper builds a sweeper; either source may be nil.
func NewSessionSweeper(interval, ttl time.Duration, sessions SessionSource, events EventSource, logger *zerolog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	l := logger.With().Str("component", "SessionSweeper").Logger()
	return &SessionSweeper{interval: interval, ttl: ttl, sessions: sessions, events: events, log: &l}
}

func (w *SessionSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("ttl", w.ttl).Msg("Starting session sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping session sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.SweepOnce()
		}
	}
}

// SweepOnce runs a single pass and returns the number of sessions evicted.
func (w *SessionSweeper) SweepOnce() int {
	var sessions, events int
	if w.sessions != nil {
		sessions = w.sessions.Sweep(w.ttl)
		metrics.AddSessionsSwept(sessions)
	}
	if w.events != nil {
		events = w.events.Sweep()
	}
	if sessions > 0 || events > 0 {
		w.log.Info().Int("sessions", sessions).Int("events", events).Msg("swept")
	}
	return sessions
}
