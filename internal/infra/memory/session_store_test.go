//go:build !integration

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
)

func TestSessionStore_GetOrCreateIsIdle(t *testing.T) {
	s := NewSessionStore()
	sess, err := s.GetOrCreate(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Stage != model.StageIdle || sess.SelectedService != "" {
		t.Fatalf("expected fresh idle session, got %+v", sess)
	}
}

func TestSessionStore_GetUnknownBuyer(t *testing.T) {
	s := NewSessionStore()
	if _, err := s.Get(context.Background(), 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatal("Get must not create a session")
	}
}

func TestSessionStore_MutationsAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	if _, err := s.Enter(ctx, 1, model.StageAwaitingPayment, "pqgo"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, 1)
	if got.Stage != model.StageAwaitingPayment || got.SelectedService != "pqgo" {
		t.Fatalf("unexpected session after Enter: %+v", got)
	}

	_ = s.SetStage(ctx, 1, model.StageAwaitingQuestion)
	_ = s.SetSelectedService(ctx, 1, "lovex")
	got, _ = s.Get(ctx, 1)
	if got.Stage != model.StageAwaitingQuestion || got.SelectedService != "lovex" {
		t.Fatalf("unexpected session after setters: %+v", got)
	}
	rev := got.Revision

	_ = s.Clear(ctx, 1)
	got, _ = s.Get(ctx, 1)
	if got.Stage != model.StageIdle || got.SelectedService != "" {
		t.Fatalf("expected cleared session, got %+v", got)
	}
	if got.Revision <= rev {
		t.Fatalf("expected revision to advance on clear, %d -> %d", rev, got.Revision)
	}
}

func TestSessionStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()
	sess, _ := s.Enter(ctx, 5, model.StageAwaitingPayment, "pqgo")
	sess.Stage = model.StageAwaitingQuestion

	got, _ := s.Get(ctx, 5)
	if got.Stage != model.StageAwaitingPayment {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestSessionStore_Isolation(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	const buyers = 64
	var wg sync.WaitGroup
	for i := int64(1); i <= buyers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = s.Enter(ctx, id, model.StageAwaitingPayment, "pqgo")
				_, _ = s.Enter(ctx, id, model.StageAwaitingQuestion, "pqgo")
				if id%2 == 0 {
					_ = s.Clear(ctx, id)
				}
			}
		}(i)
	}
	wg.Wait()

	for i := int64(1); i <= buyers; i++ {
		got, err := s.Get(ctx, i)
		if err != nil {
			t.Fatalf("buyer %d: %v", i, err)
		}
		want := model.StageAwaitingQuestion
		if i%2 == 0 {
			want = model.StageIdle
		}
		if got.Stage != want {
			t.Errorf("buyer %d: expected %s, got %s", i, want, got.Stage)
		}
		if i%2 == 1 && got.Revision != 100 {
			t.Errorf("buyer %d: expected 100 writes, revision %d", i, got.Revision)
		}
	}
}

func TestSessionStore_FreshStoreIsEmpty(t *testing.T) {
	ctx := context.Background()
	first := NewSessionStore()
	_, _ = first.Enter(ctx, 9, model.StageAwaitingQuestion, "pqgo")

	restarted := NewSessionStore()
	if restarted.Len() != 0 {
		t.Fatal("a new store must start without sessions")
	}
	if _, err := restarted.Get(ctx, 9); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected session to be gone after restart, got %v", err)
	}
}

func TestSessionStore_SweepKeepsPaidSessions(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()
	_, _ = s.GetOrCreate(ctx, 1)
	_, _ = s.Enter(ctx, 2, model.StageAwaitingPayment, "pqgo")
	_, _ = s.Enter(ctx, 3, model.StageAwaitingQuestion, "pqgo")

	if n := s.Sweep(time.Hour); n != 0 {
		t.Fatalf("nothing is an hour old, swept %d", n)
	}
	if n := s.Sweep(-time.Second); n != 2 {
		t.Fatalf("expected 2 swept, got %d", n)
	}
	if _, err := s.Get(ctx, 3); err != nil {
		t.Fatalf("paid session must survive the sweep: %v", err)
	}
}
