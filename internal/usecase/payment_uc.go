package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/adapter"
	"oracle-bot/internal/domain/ports/repository"
	"oracle-bot/internal/infra/logging"
	"oracle-bot/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// HandleNotification authenticates a processor callback and, for a
	// completed payment, unlocks the buyer's question. The error is non-nil
	// exactly when the outcome is not acknowledged.
	HandleNotification(ctx context.Context, rawBody []byte, signature string) (model.Outcome, error)
}

type PaymentOptions struct {
	SuccessStatus string
	NotifyTimeout time.Duration
	// UnlockNotice renders the message sent to the buyer after an unlock.
	UnlockNotice func(svc model.ServiceDescriptor) string
}

func defaultUnlockNotice(svc model.ServiceDescriptor) string {
	return fmt.Sprintf("✅ Payment received for %s.\nSend your question as the next message.", svc.DisplayName)
}

type paymentUC struct {
	verifier adapter.SignatureVerifier
	sessions repository.SessionStore
	events   repository.PaymentEventLog
	catalog  repository.ServiceCatalog
	bot      adapter.TelegramBotAdapter
	jobs     Dispatcher
	opts     PaymentOptions
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	verifier adapter.SignatureVerifier,
	sessions repository.SessionStore,
	events repository.PaymentEventLog,
	catalog repository.ServiceCatalog,
	bot adapter.TelegramBotAdapter,
	jobs Dispatcher,
	opts PaymentOptions,
	logger *zerolog.Logger,
) *paymentUC {
	if opts.SuccessStatus == "" {
		opts.SuccessStatus = "completed"
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 15 * time.Second
	}
	if opts.UnlockNotice == nil {
		opts.UnlockNotice = defaultUnlockNotice
	}
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		verifier: verifier,
		sessions: sessions,
		events:   events,
		catalog:  catalog,
		bot:      bot,
		jobs:     jobs,
		opts:     opts,
		log:      &l,
	}
}

type notificationBody struct {
	Status           *string `json:"status"`
	CustomData       string  `json:"custom_data"`
	CorrelationToken string  `json:"correlation_token"`
	EventID          string  `json:"event_id"`
}

func parseNotification(raw []byte, signature string) (*model.PaymentNotification, error) {
	var body notificationBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}
	if body.Status == nil {
		return nil, fmt.Errorf("%w: missing status", domain.ErrBadRequest)
	}
	token := body.CustomData
	if token == "" {
		token = body.CorrelationToken
	}
	return &model.PaymentNotification{
		RawBody:          raw,
		Signature:        signature,
		Status:           *body.Status,
		CorrelationToken: token,
		EventID:          strings.TrimSpace(body.EventID),
	}, nil
}

// ledgerKey identifies a delivery for replay detection. Without an event id
// the body hash is the key, so two purchases of one service by one buyer
// share it; purchaseKey tells those apart.
func ledgerKey(n *model.PaymentNotification) string {
	if n.EventID != "" {
		return "evt:" + n.EventID
	}
	sum := sha256.Sum256(n.RawBody)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// purchaseKey scopes a body-hash key to the checkout the buyer started, so a
// repeat purchase of the same service is applied once per checkout. The
// creation time keeps keys apart when an evicted session starts over.
func purchaseKey(bodyKey string, sess *model.BuyerSession) string {
	return fmt.Sprintf("%s@%d.%d", bodyKey, sess.CreatedAt.UnixNano(), sess.Revision)
}

// awaitsPayment reports whether the buyer has an open checkout for code.
func awaitsPayment(sess *model.BuyerSession, code string) bool {
	return sess.Stage == model.StageAwaitingPayment && sess.SelectedService == code
}

// resolveKey picks the ledger key for n and reports whether it was already
// applied. An event id is authoritative. A body hash that was applied before
// only unlocks again when the buyer has since opened a new checkout for the
// same service.
func (u *paymentUC) resolveKey(ctx context.Context, n *model.PaymentNotification, token model.CorrelationToken) (string, bool, error) {
	key := ledgerKey(n)
	seen, err := u.events.Seen(ctx, key)
	if err != nil || !seen || n.EventID != "" {
		return key, seen, err
	}
	sess, err := u.sessions.GetOrCreate(ctx, token.BuyerID)
	if err != nil {
		return key, false, fmt.Errorf("load session: %w", err)
	}
	if !awaitsPayment(sess, token.ServiceCode) {
		return key, true, nil
	}
	key = purchaseKey(key, sess)
	seen, err = u.events.Seen(ctx, key)
	return key, seen, err
}

func (u *paymentUC) HandleNotification(ctx context.Context, rawBody []byte, signature string) (model.Outcome, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.HandleNotification")()
	log := ctxLogger(ctx, u.log)

	if !u.verifier.Verify(rawBody, signature) {
		log.Warn().Int("body_bytes", len(rawBody)).Msg("notification signature mismatch")
		return model.OutcomeUnauthorized, domain.ErrUnauthorized
	}

	n, err := parseNotification(rawBody, signature)
	if err != nil {
		log.Warn().Err(err).Msg("malformed notification")
		return model.OutcomeBadRequest, err
	}

	if !strings.EqualFold(strings.TrimSpace(n.Status), u.opts.SuccessStatus) {
		log.Info().Str("status", n.Status).Msg("notification ignored")
		return model.OutcomeIgnored, nil
	}

	token, err := model.ParseCorrelationToken(n.CorrelationToken)
	if err != nil {
		log.Warn().Err(err).Msg("bad correlation token")
		return model.OutcomeBadRequest, err
	}
	svc, ok := u.catalog.Lookup(token.ServiceCode)
	if !ok {
		log.Error().Str("service", token.ServiceCode).Int64("buyer_id", token.BuyerID).Msg("paid for unknown service")
		return model.OutcomeBadRequest, fmt.Errorf("%w: %w %q", domain.ErrBadRequest, domain.ErrUnknownService, token.ServiceCode)
	}

	key, seen, err := u.resolveKey(ctx, n, token)
	if err != nil {
		log.Error().Err(err).Msg("payment ledger unavailable")
		return model.OutcomeInternal, fmt.Errorf("check ledger: %w", err)
	}
	if seen {
		log.Info().Str("key", key).Int64("buyer_id", token.BuyerID).Msg("duplicate notification")
		return model.OutcomeDuplicate, nil
	}

	if _, err := u.sessions.Enter(ctx, token.BuyerID, model.StageAwaitingQuestion, token.ServiceCode); err != nil {
		log.Error().Err(err).Int64("buyer_id", token.BuyerID).Msg("unlock failed")
		return model.OutcomeInternal, fmt.Errorf("unlock session: %w", err)
	}
	metrics.IncSessionTransition(model.StageAwaitingQuestion.String())

	ev := &model.PaymentEvent{
		ID:          ulid.Make().String(),
		Key:         key,
		BuyerID:     token.BuyerID,
		ServiceCode: token.ServiceCode,
		Status:      n.Status,
		ReceivedAt:  time.Now(),
	}
	if err := u.events.Record(ctx, ev); err != nil {
		// the unlock already happened; a replay may unlock again until the ledger recovers
		log.Error().Err(err).Str("key", key).Msg("record payment event")
	}

	u.advise(token.BuyerID, svc)
	log.Info().Int64("buyer_id", token.BuyerID).Str("service", svc.Code).Str("event", ev.ID).Msg("question unlocked")
	return model.OutcomeOK, nil
}

// advise queues the unlock notice. Delivery never affects the outcome.
func (u *paymentUC) advise(buyerID int64, svc model.ServiceDescriptor) {
	if u.bot == nil || u.jobs == nil {
		return
	}
	text := u.opts.UnlockNotice(svc)
	err := u.jobs.Submit(func(ctx context.Context) error {
		_, err := retryOnce(ctx, u.opts.NotifyTimeout, func(ctx context.Context) (struct{}, error) {
			if err := u.bot.SendMessage(ctx, buyerID, text); err != nil {
				return struct{}{}, fmt.Errorf("%w: %w", domain.ErrUpstreamTransient, err)
			}
			return struct{}{}, nil
		})
		if err != nil {
			metrics.IncAdvisoryDM("error")
			return fmt.Errorf("unlock advisory to %d: %w", buyerID, err)
		}
		metrics.IncAdvisoryDM("sent")
		return nil
	})
	if err != nil {
		metrics.IncAdvisoryDM("dropped")
		u.log.Warn().Err(err).Int64("buyer_id", buyerID).Msg("unlock advisory dropped")
	}
}
