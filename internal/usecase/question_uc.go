package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/adapter"
	"oracle-bot/internal/domain/ports/repository"
	"oracle-bot/internal/infra/logging"
	"oracle-bot/internal/infra/metrics"
)

// Compile-time check
var _ QuestionUseCase = (*questionUC)(nil)

type QuestionUseCase interface {
	// Ask forwards a paid question and returns the generated reply.
	Ask(ctx context.Context, buyerID int64, text string) (string, error)
}

type QuestionOptions struct {
	Model             string
	Timeout           time.Duration
	MaxQuestionTokens int
	// Dev logs questions in full; otherwise only a redacted preview.
	Dev bool
}

type questionUC struct {
	sessions repository.SessionStore
	catalog  repository.ServiceCatalog
	ai       adapter.AIServiceAdapter
	tokens   adapter.TokenCounter
	opts     QuestionOptions
	log      *zerolog.Logger

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewQuestionUseCase(
	sessions repository.SessionStore,
	catalog repository.ServiceCatalog,
	ai adapter.AIServiceAdapter,
	tokens adapter.TokenCounter,
	opts QuestionOptions,
	logger *zerolog.Logger,
) *questionUC {
	if opts.Timeout <= 0 {
		opts.Timeout = 25 * time.Second
	}
	l := logger.With().Str("component", "QuestionUC").Logger()
	return &questionUC{
		sessions: sessions,
		catalog:  catalog,
		ai:       ai,
		tokens:   tokens,
		opts:     opts,
		log:      &l,
		inflight: make(map[int64]struct{}),
	}
}

func (u *questionUC) acquire(buyerID int64) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, busy := u.inflight[buyerID]; busy {
		return false
	}
	u.inflight[buyerID] = struct{}{}
	return true
}

func (u *questionUC) release(buyerID int64) {
	u.mu.Lock()
	delete(u.inflight, buyerID)
	u.mu.Unlock()
}

func (u *questionUC) Ask(ctx context.Context, buyerID int64, text string) (string, error) {
	defer logging.TraceDuration(u.log, "QuestionUC.Ask")()
	log := ctxLogger(ctx, u.log)

	sess, err := u.sessions.GetOrCreate(ctx, buyerID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if sess.Stage != model.StageAwaitingQuestion {
		return "", fmt.Errorf("%w: stage is %s", domain.ErrStateConflict, sess.Stage)
	}

	question := strings.TrimSpace(text)
	if question == "" {
		metrics.IncQuestionRejected("blank")
		return "", fmt.Errorf("%w: empty question", domain.ErrInvalidArgument)
	}
	if u.opts.MaxQuestionTokens > 0 && u.tokens != nil {
		if n := u.tokens.Count(question); n > u.opts.MaxQuestionTokens {
			metrics.IncQuestionRejected("too_long")
			return "", fmt.Errorf("%w: %d tokens, limit %d", domain.ErrQuestionTooLong, n, u.opts.MaxQuestionTokens)
		}
	}

	log.Debug().Int64("buyer_id", buyerID).Str("question", logging.Redact(question, u.opts.Dev)).Msg("forwarding question")

	svc, ok := u.catalog.Lookup(sess.SelectedService)
	if !ok {
		log.Error().Int64("buyer_id", buyerID).Str("service", sess.SelectedService).Msg("unlocked session references unknown service")
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownService, sess.SelectedService)
	}

	if !u.acquire(buyerID) {
		return "", domain.ErrInFlight
	}
	defer u.release(buyerID)

	msgs := []adapter.Message{
		{Role: "system", Content: svc.InstructionTemplate},
		{Role: "user", Content: question},
	}

	type result struct {
		text  string
		usage adapter.Usage
	}
	start := time.Now()
	res, callErr := retryOnce(ctx, u.opts.Timeout, func(ctx context.Context) (result, error) {
		t, usage, err := u.ai.ChatWithUsage(ctx, u.opts.Model, msgs)
		return result{text: t, usage: usage}, err
	})
	if ctx.Err() != nil {
		// shutting down or the buyer's request was abandoned; keep the paid question
		return "", fmt.Errorf("ask aborted: %w", ctx.Err())
	}
	reply := strings.TrimSpace(res.text)
	if callErr == nil && reply == "" {
		callErr = fmt.Errorf("%w: empty reply", domain.ErrUpstreamRejected)
	}
	metrics.ObserveChatUsage(u.ai.Name(), u.opts.Model, res.usage.PromptTokens, res.usage.CompletionTokens,
		time.Since(start).Milliseconds(), callErr == nil)

	cur, err := u.sessions.Get(ctx, buyerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("reload session: %w", err)
	}
	if cur == nil || cur.Revision != sess.Revision {
		metrics.IncStaleReply()
		log.Info().Int64("buyer_id", buyerID).Msg("session changed while answering, reply dropped")
		return "", domain.ErrStaleReply
	}

	if err := u.sessions.Clear(ctx, buyerID); err != nil {
		log.Error().Err(err).Int64("buyer_id", buyerID).Msg("clear session after answer")
	} else {
		metrics.IncSessionTransition(model.StageIdle.String())
	}

	if callErr != nil {
		log.Warn().Err(callErr).Int64("buyer_id", buyerID).Str("service", svc.Code).Msg("question failed")
		if errors.Is(callErr, domain.ErrUpstreamTimeout) || errors.Is(callErr, domain.ErrUpstreamRejected) {
			return "", callErr
		}
		return "", fmt.Errorf("%w: %w", domain.ErrUpstreamRejected, callErr)
	}
	log.Info().Int64("buyer_id", buyerID).Str("service", svc.Code).Int("reply_len", len(reply)).Msg("question answered")
	return reply, nil
}
