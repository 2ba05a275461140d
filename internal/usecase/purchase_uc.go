package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/adapter"
	"oracle-bot/internal/domain/ports/repository"
	"oracle-bot/internal/infra/logging"
	"oracle-bot/internal/infra/metrics"
)

// Compile-time check
var _ PurchaseUseCase = (*purchaseUC)(nil)

type PurchaseUseCase interface {
	Services() []model.ServiceDescriptor
	// Select records the chosen service and returns its checkout link.
	Select(ctx context.Context, buyerID int64, code string) (model.ServiceDescriptor, string, error)
	// Begin resets the buyer for a fresh menu unless a paid question is pending.
	Begin(ctx context.Context, buyerID int64) (*model.BuyerSession, error)
	// Restart always resets the buyer.
	Restart(ctx context.Context, buyerID int64) error
	Session(ctx context.Context, buyerID int64) (*model.BuyerSession, error)
}

type purchaseUC struct {
	sessions repository.SessionStore
	catalog  repository.ServiceCatalog
	links    adapter.CheckoutLinkBuilder
	log      *zerolog.Logger
}

func NewPurchaseUseCase(sessions repository.SessionStore, catalog repository.ServiceCatalog, links adapter.CheckoutLinkBuilder, logger *zerolog.Logger) *purchaseUC {
	l := logger.With().Str("component", "PurchaseUC").Logger()
	return &purchaseUC{sessions: sessions, catalog: catalog, links: links, log: &l}
}

func (u *purchaseUC) Services() []model.ServiceDescriptor {
	return u.catalog.List()
}

func (u *purchaseUC) Select(ctx context.Context, buyerID int64, code string) (model.ServiceDescriptor, string, error) {
	defer logging.TraceDuration(u.log, "PurchaseUC.Select")()
	svc, ok := u.catalog.Lookup(code)
	if !ok {
		return model.ServiceDescriptor{}, "", fmt.Errorf("%w: %q", domain.ErrUnknownService, code)
	}

	sess, err := u.sessions.GetOrCreate(ctx, buyerID)
	if err != nil {
		return model.ServiceDescriptor{}, "", fmt.Errorf("load session: %w", err)
	}
	if sess.Stage == model.StageAwaitingQuestion {
		return model.ServiceDescriptor{}, "", fmt.Errorf("%w: paid question pending for %s", domain.ErrStateConflict, sess.SelectedService)
	}

	link, err := u.links.CheckoutURL(svc, model.CorrelationToken{BuyerID: buyerID, ServiceCode: svc.Code})
	if err != nil {
		return model.ServiceDescriptor{}, "", fmt.Errorf("checkout link: %w", err)
	}

	if _, err := u.sessions.Enter(ctx, buyerID, model.StageAwaitingPayment, svc.Code); err != nil {
		return model.ServiceDescriptor{}, "", fmt.Errorf("enter awaiting payment: %w", err)
	}
	metrics.IncSessionTransition(model.StageAwaitingPayment.String())
	ctxLogger(ctx, u.log).Debug().Int64("buyer_id", buyerID).Str("service", svc.Code).Msg("service selected")
	return svc, link, nil
}

func (u *purchaseUC) Begin(ctx context.Context, buyerID int64) (*model.BuyerSession, error) {
	sess, err := u.sessions.GetOrCreate(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.Stage == model.StageAwaitingQuestion {
		return sess, nil
	}
	if sess.Stage != model.StageIdle || sess.SelectedService != "" {
		if err := u.Restart(ctx, buyerID); err != nil {
			return nil, err
		}
		return u.sessions.GetOrCreate(ctx, buyerID)
	}
	return sess, nil
}

func (u *purchaseUC) Restart(ctx context.Context, buyerID int64) error {
	if err := u.sessions.Clear(ctx, buyerID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	metrics.IncSessionTransition(model.StageIdle.String())
	return nil
}

func (u *purchaseUC) Session(ctx context.Context, buyerID int64) (*model.BuyerSession, error) {
	return u.sessions.GetOrCreate(ctx, buyerID)
}
