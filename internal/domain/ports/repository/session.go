package repository

import (
	"context"

	"oracle-bot/internal/domain/model"
)

// SessionStore is the port for per-buyer purchase state.
// Implementations must be safe for concurrent use across distinct buyers;
// writes to one buyer are last-writer-wins.
type SessionStore interface {
	// GetOrCreate returns the buyer's session, or a fresh idle one if unseen.
	GetOrCreate(ctx context.Context, buyerID int64) (*model.BuyerSession, error)
	// Get returns domain.ErrNotFound for an unseen buyer and creates nothing.
	Get(ctx context.Context, buyerID int64) (*model.BuyerSession, error)
	SetStage(ctx context.Context, buyerID int64, stage model.Stage) error
	SetSelectedService(ctx context.Context, buyerID int64, code string) error
	// Enter sets stage and selected service in a single write.
	Enter(ctx context.Context, buyerID int64, stage model.Stage, code string) (*model.BuyerSession, error)
	// Clear resets the session to idle and drops the selected service.
	Clear(ctx context.Context, buyerID int64) error
}
