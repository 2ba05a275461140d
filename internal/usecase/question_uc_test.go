//go:build !integration

package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/infra/memory"
)

func newQuestionFixture(t *testing.T, ai *scriptedAI, timeout time.Duration) (*questionUC, *memory.SessionStore) {
	t.Helper()
	store := memory.NewSessionStore()
	logger := zerolog.Nop()
	uc := NewQuestionUseCase(store, testCatalog(), ai, runeCounter{}, QuestionOptions{
		Model:             "test-model",
		Timeout:           timeout,
		MaxQuestionTokens: 40,
	}, &logger)
	return uc, store
}

func unlocked(t *testing.T, store *memory.SessionStore, id int64, code string) {
	t.Helper()
	if _, err := store.Enter(context.Background(), id, model.StageAwaitingQuestion, code); err != nil {
		t.Fatal(err)
	}
}

func assertIdle(t *testing.T, store *memory.SessionStore, id int64) {
	t.Helper()
	s, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Stage != model.StageIdle || s.SelectedService != "" {
		t.Fatalf("expected idle session, got %+v", s)
	}
}

func TestQuestionUC_AnswersOnceAndResets(t *testing.T) {
	ai := &scriptedAI{replies: []aiReply{{text: "  The Tower: change is coming.  "}}}
	uc, store := newQuestionFixture(t, ai, time.Second)
	unlocked(t, store, 12345, "pqgo")

	reply, err := uc.Ask(context.Background(), 12345, "Will I get the job?")
	if err != nil {
		t.Fatalf("expected an answer, got %v", err)
	}
	if reply != "The Tower: change is coming." {
		t.Errorf("unexpected reply %q", reply)
	}
	assertIdle(t, store, 12345)

	msgs := ai.messages[0]
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[0].Content != "You are a tarot reader." {
		t.Fatalf("expected the service instruction as system prompt, got %+v", msgs)
	}
	if msgs[1].Role != "user" || msgs[1].Content != "Will I get the job?" {
		t.Fatalf("unexpected user message %+v", msgs[1])
	}

	// the question is consumed
	if _, err := uc.Ask(context.Background(), 12345, "And another?"); !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected state conflict on a second question, got %v", err)
	}
	if ai.calls != 1 {
		t.Fatalf("expected one AI call, got %d", ai.calls)
	}
}

func TestQuestionUC_RejectsBeforeCallingAI(t *testing.T) {
	tests := []struct {
		name  string
		stage model.Stage
		text  string
		want  error
	}{
		{"idle buyer", model.StageIdle, "hello", domain.ErrStateConflict},
		{"unpaid buyer", model.StageAwaitingPayment, "hello", domain.ErrStateConflict},
		{"blank question", model.StageAwaitingQuestion, "  \n\t", domain.ErrInvalidArgument},
		{"question over the token limit", model.StageAwaitingQuestion, strings.Repeat("a", 41), domain.ErrQuestionTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &scriptedAI{replies: []aiReply{{text: "never"}}}
			uc, store := newQuestionFixture(t, ai, time.Second)
			if tt.stage != model.StageIdle {
				_, _ = store.Enter(context.Background(), 1, tt.stage, "pqgo")
			}
			before, _ := store.GetOrCreate(context.Background(), 1)

			_, err := uc.Ask(context.Background(), 1, tt.text)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if ai.calls != 0 {
				t.Fatal("AI must not be called")
			}
			after, _ := store.Get(context.Background(), 1)
			if after.Revision != before.Revision {
				t.Fatalf("rejected question mutated the session: %+v", after)
			}
		})
	}
}

func TestQuestionUC_RetriesTransientFailureOnce(t *testing.T) {
	ai := &scriptedAI{replies: []aiReply{
		{err: domain.ErrUpstreamTransient},
		{text: "Yes."},
	}}
	uc, store := newQuestionFixture(t, ai, time.Second)
	unlocked(t, store, 1, "yesno")

	reply, err := uc.Ask(context.Background(), 1, "Should I go?")
	if err != nil || reply != "Yes." {
		t.Fatalf("expected retry to succeed, got %q %v", reply, err)
	}
	if ai.calls != 2 {
		t.Fatalf("expected two calls, got %d", ai.calls)
	}
	assertIdle(t, store, 1)
}

func TestQuestionUC_FailureStillConsumesQuestion(t *testing.T) {
	tests := []struct {
		name    string
		replies []aiReply
		calls   int
		want    error
	}{
		{"timeout twice", []aiReply{{err: domain.ErrUpstreamTimeout}}, 2, domain.ErrUpstreamTimeout},
		{"transient twice", []aiReply{{err: domain.ErrUpstreamTransient}}, 2, domain.ErrUpstreamRejected},
		{"rejected", []aiReply{{err: domain.ErrUpstreamRejected}}, 1, domain.ErrUpstreamRejected},
		{"empty reply", []aiReply{{text: "   "}}, 1, domain.ErrUpstreamRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &scriptedAI{replies: tt.replies}
			uc, store := newQuestionFixture(t, ai, time.Second)
			unlocked(t, store, 1, "pqgo")

			_, err := uc.Ask(context.Background(), 1, "Will it rain?")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if ai.calls != tt.calls {
				t.Fatalf("expected %d calls, got %d", tt.calls, ai.calls)
			}
			assertIdle(t, store, 1)
		})
	}
}

func TestQuestionUC_SlowUpstreamTimesOut(t *testing.T) {
	ai := &scriptedAI{
		replies: []aiReply{{err: context.DeadlineExceeded}},
		hook: func(ctx context.Context) {
			<-ctx.Done()
		},
	}
	uc, store := newQuestionFixture(t, ai, 20*time.Millisecond)
	unlocked(t, store, 1, "pqgo")

	_, err := uc.Ask(context.Background(), 1, "Will it rain?")
	if !errors.Is(err, domain.ErrUpstreamTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if ai.calls != 2 {
		t.Fatalf("expected one retry after timeout, got %d calls", ai.calls)
	}
	assertIdle(t, store, 1)
}

func TestQuestionUC_DropsReplyWhenSessionChanged(t *testing.T) {
	store := memory.NewSessionStore()
	ai := &scriptedAI{
		replies: []aiReply{{text: "stale"}},
		hook: func(ctx context.Context) {
			// buyer restarts and buys again while the answer is generated
			_ = store.Clear(ctx, 1)
			_, _ = store.Enter(ctx, 1, model.StageAwaitingQuestion, "yesno")
		},
	}
	logger := zerolog.Nop()
	uc := NewQuestionUseCase(store, testCatalog(), ai, runeCounter{}, QuestionOptions{Timeout: time.Second}, &logger)
	unlocked(t, store, 1, "pqgo")

	_, err := uc.Ask(context.Background(), 1, "Will it rain?")
	if !errors.Is(err, domain.ErrStaleReply) {
		t.Fatalf("expected stale reply, got %v", err)
	}
	s, _ := store.Get(context.Background(), 1)
	if s.Stage != model.StageAwaitingQuestion || s.SelectedService != "yesno" {
		t.Fatalf("newer purchase was clobbered: %+v", s)
	}
}

func TestQuestionUC_SecondAskWhileAnswering(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	ai := &scriptedAI{
		replies: []aiReply{{text: "Yes."}},
		hook: func(context.Context) {
			close(entered)
			<-release
		},
	}
	uc, store := newQuestionFixture(t, ai, time.Second)
	unlocked(t, store, 1, "yesno")

	done := make(chan error, 1)
	go func() {
		_, err := uc.Ask(context.Background(), 1, "first")
		done <- err
	}()
	<-entered

	if _, err := uc.Ask(context.Background(), 1, "second"); !errors.Is(err, domain.ErrInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first ask failed: %v", err)
	}
	if ai.calls != 1 {
		t.Fatalf("expected one AI call, got %d", ai.calls)
	}
}

func TestQuestionUC_CancelledRequestKeepsQuestion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ai := &scriptedAI{
		replies: []aiReply{{err: context.Canceled}},
		hook:    func(context.Context) { cancel() },
	}
	uc, store := newQuestionFixture(t, ai, time.Second)
	unlocked(t, store, 1, "pqgo")

	_, err := uc.Ask(ctx, 1, "Will it rain?")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	s, _ := store.Get(context.Background(), 1)
	if s.Stage != model.StageAwaitingQuestion {
		t.Fatalf("cancelled ask consumed the question: %+v", s)
	}
	if ai.calls != 1 {
		t.Fatalf("cancelled parent must not be retried, got %d calls", ai.calls)
	}
}

func TestQuestionUC_LogsOnlyRedactedQuestion(t *testing.T) {
	question := "Will Oksana say yes on Friday?"
	for _, dev := range []bool{false, true} {
		var buf bytes.Buffer
		logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
		store := memory.NewSessionStore()
		ai := &scriptedAI{replies: []aiReply{{text: "Yes."}}}
		uc := NewQuestionUseCase(store, testCatalog(), ai, runeCounter{}, QuestionOptions{Timeout: time.Second, Dev: dev}, &logger)
		unlocked(t, store, 1, "yesno")

		if _, err := uc.Ask(context.Background(), 1, question); err != nil {
			t.Fatal(err)
		}
		logged := buf.String()
		if got := strings.Contains(logged, question); got != dev {
			t.Fatalf("dev=%v: full question in log = %v:\n%s", dev, got, logged)
		}
		if !strings.Contains(logged, "forwarding question") {
			t.Fatalf("dev=%v: expected a question preview, got:\n%s", dev, logged)
		}
	}
}
