//go:build !integration

package application_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"oracle-bot/internal/application"
	"oracle-bot/internal/catalog"
	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/adapter"
	"oracle-bot/internal/infra/adapters/payment"
	"oracle-bot/internal/infra/i18n"
	"oracle-bot/internal/infra/memory"
	"oracle-bot/internal/usecase"
)

// fakeAI answers every question with reply, or fails with err.
type fakeAI struct {
	reply string
	err   error
}

func (f *fakeAI) Name() string { return "fake" }

func (f *fakeAI) ChatWithUsage(context.Context, string, []adapter.Message) (string, adapter.Usage, error) {
	return f.reply, adapter.Usage{}, f.err
}

type lenCounter struct{}

func (lenCounter) Count(s string) int { return len(s) }

func newFacade(t *testing.T, ai *fakeAI) (*application.BotFacade, *memory.SessionStore) {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatal(err)
	}
	links, err := payment.NewCheckoutLinks("https://pay.example/checkout")
	if err != nil {
		t.Fatal(err)
	}
	store := memory.NewSessionStore()
	logger := zerolog.Nop()
	purchase := usecase.NewPurchaseUseCase(store, cat, links, &logger)
	question := usecase.NewQuestionUseCase(store, cat, ai, lenCounter{},
		usecase.QuestionOptions{Timeout: time.Second, MaxQuestionTokens: 100}, &logger)
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatal(err)
	}
	return application.NewBotFacade(purchase, question, tr, application.Info{
		Provider: "gemini", Model: "gemini-1.5-flash", AIKeyHint: "AIzaSy", AdminIDs: []int64{3},
	}), store
}

func TestHandleStart_ShowsMenu(t *testing.T) {
	f, _ := newFacade(t, &fakeAI{})
	r, err := f.HandleStart(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Buttons) != 3 {
		t.Fatalf("expected one button per service, got %d", len(r.Buttons))
	}
	if r.Buttons[0][0].Data != "buy:pqgo" || !strings.Contains(r.Buttons[0][0].Text, "5.00 USD") {
		t.Errorf("unexpected first button %+v", r.Buttons[0][0])
	}
}

func TestHandleStart_KeepsPaidQuestion(t *testing.T) {
	f, store := newFacade(t, &fakeAI{})
	ctx := context.Background()
	_, _ = store.Enter(ctx, 1, model.StageAwaitingQuestion, "pqgo")

	r, err := f.HandleStart(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.Text, "Tarot") || len(r.Buttons) != 0 {
		t.Fatalf("expected a reminder about the paid reading, got %+v", r)
	}
	if s, _ := store.Get(ctx, 1); s.Stage != model.StageAwaitingQuestion {
		t.Fatalf("start dropped the paid question: %+v", s)
	}

	if _, err := f.HandleRestart(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if s, _ := store.Get(ctx, 1); s.Stage != model.StageIdle {
		t.Fatalf("restart must clear, got %+v", s)
	}
}

func TestHandleSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("should reply with a pay button", func(t *testing.T) {
		f, _ := newFacade(t, &fakeAI{})
		r, err := f.HandleSelect(ctx, 42, "yesno")
		if err != nil {
			t.Fatal(err)
		}
		if len(r.Buttons) != 2 || r.Buttons[0][0].URL != "https://pay.example/checkout/yesno?custom_data=42%3Ayesno" {
			t.Fatalf("unexpected buttons %+v", r.Buttons)
		}
		if r.Buttons[1][0].Data != application.CallbackMenu {
			t.Errorf("expected back button, got %+v", r.Buttons[1][0])
		}
	})

	t.Run("should fall back to the menu on an unknown code", func(t *testing.T) {
		f, store := newFacade(t, &fakeAI{})
		r, err := f.HandleSelect(ctx, 42, "gone")
		if err != nil {
			t.Fatal(err)
		}
		if len(r.Buttons) != 3 || store.Len() != 0 {
			t.Fatalf("expected menu and no session, got %+v", r)
		}
	})

	t.Run("should remind about a pending question", func(t *testing.T) {
		f, store := newFacade(t, &fakeAI{})
		_, _ = store.Enter(ctx, 42, model.StageAwaitingQuestion, "pqgo")
		r, err := f.HandleSelect(ctx, 42, "yesno")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(r.Text, "next message") {
			t.Fatalf("expected reminder, got %q", r.Text)
		}
	})
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("should answer a paid question", func(t *testing.T) {
		f, store := newFacade(t, &fakeAI{reply: "Yes."})
		_, _ = store.Enter(ctx, 7, model.StageAwaitingQuestion, "yesno")
		r, err := f.HandleMessage(ctx, 7, "Will it work?")
		if err != nil || r.Text != "Yes." {
			t.Fatalf("expected answer, got %+v %v", r, err)
		}
	})

	t.Run("should point an unpaid buyer at the menu", func(t *testing.T) {
		f, _ := newFacade(t, &fakeAI{reply: "never"})
		r, err := f.HandleMessage(ctx, 7, "Will it work?")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(r.Text, "menu") || len(r.Buttons) == 0 {
			t.Fatalf("expected menu prompt, got %+v", r)
		}
	})

	t.Run("should ask to try again after an upstream failure", func(t *testing.T) {
		f, store := newFacade(t, &fakeAI{err: domain.ErrUpstreamRejected})
		_, _ = store.Enter(ctx, 7, model.StageAwaitingQuestion, "yesno")
		r, err := f.HandleMessage(ctx, 7, "Will it work?")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(r.Text, "try again") {
			t.Fatalf("expected retry hint, got %q", r.Text)
		}
		if s, _ := store.Get(ctx, 7); s.Stage != model.StageIdle {
			t.Fatalf("expected cleared session, got %+v", s)
		}
	})

	t.Run("should reject an oversized question", func(t *testing.T) {
		f, store := newFacade(t, &fakeAI{reply: "never"})
		_, _ = store.Enter(ctx, 7, model.StageAwaitingQuestion, "yesno")
		r, err := f.HandleMessage(ctx, 7, strings.Repeat("x", 101))
		if err != nil || !strings.Contains(r.Text, "too long") {
			t.Fatalf("expected too-long hint, got %+v %v", r, err)
		}
	})
}

func TestHandleStatus(t *testing.T) {
	f, store := newFacade(t, &fakeAI{})
	ctx := context.Background()
	_, _ = store.Enter(ctx, 3, model.StageAwaitingPayment, "lovex")

	got, err := f.HandleStatus(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"awaiting_payment", "lovex", "gemini", "AIzaSy..."} {
		if !strings.Contains(got, want) {
			t.Errorf("status %q missing %q", got, want)
		}
	}

	t.Run("should hide the key hint from buyers", func(t *testing.T) {
		got, err := f.HandleStatus(ctx, 4)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(got, "AIzaSy") {
			t.Fatalf("key hint shown to a non-admin: %q", got)
		}
		if !strings.Contains(got, "gemini") {
			t.Fatalf("expected provider line, got %q", got)
		}
	})
}
