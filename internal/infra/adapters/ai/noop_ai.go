package ai

import (
	"context"
	"fmt"
	"time"

	"oracle-bot/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers locally. Dev mode only.
type NoopAIAdapter struct {
	delay time.Duration
}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{delay: 100 * time.Millisecond}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, _ string, messages []adapter.Message) (string, adapter.Usage, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
		return "", adapter.Usage{}, classifyTransport("noop", ctx.Err())
	}
	question := ""
	if n := len(messages); n > 0 {
		question = messages[n-1].Content
	}
	return fmt.Sprintf("🔮 The cards are silent in dev mode, but they heard: %q", question), adapter.Usage{}, nil
}
