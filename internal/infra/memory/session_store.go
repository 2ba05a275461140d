// Package memory holds the process-local backends. Everything here is lost on
// restart.
package memory

import (
	"context"
	"sync"
	"time"

	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/repository"
)

const shardCount = 32

var _ repository.SessionStore = (*SessionStore)(nil)

type shard struct {
	mu       sync.Mutex
	sessions map[int64]*model.BuyerSession
}

// SessionStore keeps buyer sessions in a sharded map. Distinct buyers rarely
// share a lock; writes to one buyer are last-writer-wins.
type SessionStore struct {
	shards [shardCount]shard
}

func NewSessionStore() *SessionStore {
	s := &SessionStore{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[int64]*model.BuyerSession)
	}
	return s
}

func (s *SessionStore) shardFor(buyerID int64) *shard {
	idx := uint64(buyerID) % shardCount
	return &s.shards[idx]
}

// load returns the live session, creating it when absent. Caller holds sh.mu.
func (sh *shard) load(buyerID int64) *model.BuyerSession {
	sess, ok := sh.sessions[buyerID]
	if !ok {
		sess = model.NewBuyerSession(buyerID)
		sh.sessions[buyerID] = sess
	}
	return sess
}

func (s *SessionStore) GetOrCreate(_ context.Context, buyerID int64) (*model.BuyerSession, error) {
	sh := s.shardFor(buyerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.load(buyerID).Clone(), nil
}

func (s *SessionStore) Get(_ context.Context, buyerID int64) (*model.BuyerSession, error) {
	sh := s.shardFor(buyerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[buyerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *SessionStore) SetStage(_ context.Context, buyerID int64, stage model.Stage) error {
	sh := s.shardFor(buyerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.load(buyerID).SetStage(stage)
	return nil
}

func (s *SessionStore) SetSelectedService(_ context.Context, buyerID int64, code string) error {
	sh := s.shardFor(buyerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.load(buyerID).SetSelectedService(code)
	return nil
}

func (s *SessionStore) Enter(_ context.Context, buyerID int64, stage model.Stage, code string) (*model.BuyerSession, error) {
	sh := s.shardFor(buyerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess := sh.load(buyerID)
	sess.Enter(stage, code)
	return sess.Clone(), nil
}

func (s *SessionStore) Clear(_ context.Context, buyerID int64) error {
	sh := s.shardFor(buyerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.load(buyerID).Reset()
	return nil
}

// Sweep evicts sessions untouched for longer than olderThan. Sessions holding
// a paid, unanswered question are kept regardless of age.
func (s *SessionStore) Sweep(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.Stage == model.StageAwaitingQuestion {
				continue
			}
			if sess.UpdatedAt.Before(cutoff) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}
