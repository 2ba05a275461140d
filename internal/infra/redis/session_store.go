package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/repository"
)

var _ repository.SessionStore = (*SessionStore)(nil)

// SessionStore keeps each buyer session as a JSON value with a sliding TTL.
// Sessions awaiting a paid question are stored without expiry.
// Writes are read-modify-write; the chat transport serializes a buyer's
// updates so last-writer-wins is enough.
type SessionStore struct {
	client *Client
	ttl    time.Duration
}

func NewSessionStore(client *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(buyerID int64) string {
	return fmt.Sprintf("oracle:session:%d", buyerID)
}

func (s *SessionStore) load(ctx context.Context, buyerID int64) (*model.BuyerSession, error) {
	data, err := s.client.Get(ctx, sessionKey(buyerID))
	if errors.Is(err, Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess model.BuyerSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !sess.Stage.Valid() {
		return nil, fmt.Errorf("decode session: unknown stage %q", sess.Stage)
	}
	return &sess, nil
}

func (s *SessionStore) loadOrNew(ctx context.Context, buyerID int64) (*model.BuyerSession, error) {
	sess, err := s.load(ctx, buyerID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.NewBuyerSession(buyerID), nil
	}
	return sess, err
}

func (s *SessionStore) save(ctx context.Context, sess *model.BuyerSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	// a paid, unanswered question never expires
	ttl := s.ttl
	if sess.Stage == model.StageAwaitingQuestion {
		ttl = 0
	}
	if err := s.client.Set(ctx, sessionKey(sess.BuyerID), data, ttl); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *SessionStore) mutate(ctx context.Context, buyerID int64, fn func(*model.BuyerSession)) (*model.BuyerSession, error) {
	sess, err := s.loadOrNew(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	fn(sess)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionStore) GetOrCreate(ctx context.Context, buyerID int64) (*model.BuyerSession, error) {
	sess, err := s.load(ctx, buyerID)
	if !errors.Is(err, domain.ErrNotFound) {
		return sess, err
	}
	sess = model.NewBuyerSession(buyerID)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionStore) Get(ctx context.Context, buyerID int64) (*model.BuyerSession, error) {
	return s.load(ctx, buyerID)
}

func (s *SessionStore) SetStage(ctx context.Context, buyerID int64, stage model.Stage) error {
	_, err := s.mutate(ctx, buyerID, func(b *model.BuyerSession) { b.SetStage(stage) })
	return err
}

func (s *SessionStore) SetSelectedService(ctx context.Context, buyerID int64, code string) error {
	_, err := s.mutate(ctx, buyerID, func(b *model.BuyerSession) { b.SetSelectedService(code) })
	return err
}

func (s *SessionStore) Enter(ctx context.Context, buyerID int64, stage model.Stage, code string) (*model.BuyerSession, error) {
	return s.mutate(ctx, buyerID, func(b *model.BuyerSession) { b.Enter(stage, code) })
}

func (s *SessionStore) Clear(ctx context.Context, buyerID int64) error {
	_, err := s.mutate(ctx, buyerID, func(b *model.BuyerSession) { b.Reset() })
	return err
}
