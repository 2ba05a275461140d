package usecase

import (
	"context"
	"errors"
	"sync"

	"oracle-bot/internal/catalog"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/adapter"
	"oracle-bot/internal/domain/ports/repository"
)

const testSecret = "whsec_test"

func testCatalog() *catalog.Catalog {
	c, err := catalog.New([]model.ServiceDescriptor{
		{Code: "pqgo", DisplayName: "Tarot 3 cards", Price: 500, Currency: "USD", InstructionTemplate: "You are a tarot reader."},
		{Code: "yesno", DisplayName: "Yes or no", Price: 200, Currency: "USD", InstructionTemplate: "Answer yes or no."},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// memEventLog is an in-memory ledger with injectable failures.
type memEventLog struct {
	mu        sync.Mutex
	keys      map[string]*model.PaymentEvent
	seenErr   error
	recordErr error
}

func newMemEventLog() *memEventLog {
	return &memEventLog{keys: make(map[string]*model.PaymentEvent)}
}

func (m *memEventLog) Seen(_ context.Context, key string) (bool, error) {
	if m.seenErr != nil {
		return false, m.seenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *memEventLog) Record(_ context.Context, ev *model.PaymentEvent) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[ev.Key]; !ok {
		cp := *ev
		m.keys[ev.Key] = &cp
	}
	return nil
}

func (m *memEventLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// failingSessions wraps a store and fails selected operations.
type failingSessions struct {
	repository.SessionStore
	enterErr error
	getErr   error
}

func (f *failingSessions) Enter(ctx context.Context, id int64, st model.Stage, code string) (*model.BuyerSession, error) {
	if f.enterErr != nil {
		return nil, f.enterErr
	}
	return f.SessionStore.Enter(ctx, id, st, code)
}

func (f *failingSessions) GetOrCreate(ctx context.Context, id int64) (*model.BuyerSession, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.SessionStore.GetOrCreate(ctx, id)
}

type sentMessage struct {
	to   int64
	text string
}

// mockBot records outgoing messages; the first failN sends fail.
type mockBot struct {
	mu    sync.Mutex
	sent  []sentMessage
	failN int
	calls int
}

func (b *mockBot) SendMessage(_ context.Context, id int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls <= b.failN {
		return errors.New("telegram: 502 bad gateway")
	}
	b.sent = append(b.sent, sentMessage{to: id, text: text})
	return nil
}

func (b *mockBot) SendButtons(ctx context.Context, id int64, text string, _ [][]adapter.InlineButton) error {
	return b.SendMessage(ctx, id, text)
}

func (b *mockBot) messages() []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sentMessage(nil), b.sent...)
}

// syncDispatcher runs tasks inline so assertions can follow immediately.
type syncDispatcher struct {
	full    bool
	lastErr error
}

func (d *syncDispatcher) Submit(task func(ctx context.Context) error) error {
	if d.full {
		return errors.New("worker queue full")
	}
	d.lastErr = task(context.Background())
	return nil
}

type aiReply struct {
	text string
	err  error
}

// scriptedAI returns replies in order; the last one repeats.
type scriptedAI struct {
	mu       sync.Mutex
	replies  []aiReply
	calls    int
	messages [][]adapter.Message
	hook     func(ctx context.Context) // runs before replying
}

func (s *scriptedAI) Name() string { return "scripted" }

func (s *scriptedAI) ChatWithUsage(ctx context.Context, _ string, msgs []adapter.Message) (string, adapter.Usage, error) {
	s.mu.Lock()
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	s.messages = append(s.messages, msgs)
	r := s.replies[idx]
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	return r.text, adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, r.err
}

type runeCounter struct{}

func (runeCounter) Count(text string) int { return len([]rune(text)) }
