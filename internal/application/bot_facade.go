package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/adapter"
	"oracle-bot/internal/usecase"
)

// Callback data understood by the Telegram adapter.
const (
	CallbackMenu      = "cmd:menu"
	CallbackBuyPrefix = "buy:"
)

// Reply is what the Telegram adapter sends back to the chat. An empty Text
// means nothing is sent.
type Reply struct {
	Text    string
	Buttons [][]adapter.InlineButton
}

// Info is static data shown by /status. AIKeyHint is only shown to AdminIDs.
type Info struct {
	Provider  string
	Model     string
	AIKeyHint string
	AdminIDs  []int64
}

// Translator resolves buyer-facing text by key.
type Translator interface {
	T(key string, args ...any) string
}

// BotFacade composes usecases into high-level bot commands.
// Methods return ready-to-send replies so the Telegram adapter just forwards them.
type BotFacade struct {
	PurchaseUC usecase.PurchaseUseCase
	QuestionUC usecase.QuestionUseCase
	Info       Info
	tr         Translator
}

func NewBotFacade(purchaseUC usecase.PurchaseUseCase, questionUC usecase.QuestionUseCase, tr Translator, info Info) *BotFacade {
	return &BotFacade{PurchaseUC: purchaseUC, QuestionUC: questionUC, Info: info, tr: tr}
}

// HandleStart shows the service menu. A paid, unasked question is kept and the
// buyer is reminded of it instead.
func (b *BotFacade) HandleStart(ctx context.Context, buyerID int64) (Reply, error) {
	sess, err := b.PurchaseUC.Begin(ctx, buyerID)
	if err != nil {
		return Reply{}, fmt.Errorf("begin: %w", err)
	}
	if sess.Stage == model.StageAwaitingQuestion {
		return Reply{Text: b.pendingText(sess)}, nil
	}
	return b.menu(b.tr.T("menu_welcome")), nil
}

// HandleRestart drops whatever the buyer was doing, a paid question included.
func (b *BotFacade) HandleRestart(ctx context.Context, buyerID int64) (Reply, error) {
	if err := b.PurchaseUC.Restart(ctx, buyerID); err != nil {
		return Reply{}, fmt.Errorf("restart: %w", err)
	}
	return b.menu(b.tr.T("menu_restart")), nil
}

// HandleMenu re-renders the menu without touching the session.
func (b *BotFacade) HandleMenu(_ context.Context, _ int64) (Reply, error) {
	return b.menu(b.tr.T("menu_choose")), nil
}

func (b *BotFacade) HandleSelect(ctx context.Context, buyerID int64, code string) (Reply, error) {
	svc, link, err := b.PurchaseUC.Select(ctx, buyerID, code)
	switch {
	case errors.Is(err, domain.ErrUnknownService):
		return b.menu(b.tr.T("select_unknown")), nil
	case errors.Is(err, domain.ErrStateConflict):
		sess, serr := b.PurchaseUC.Session(ctx, buyerID)
		if serr != nil {
			return Reply{}, fmt.Errorf("load session: %w", serr)
		}
		return Reply{Text: b.pendingText(sess)}, nil
	case err != nil:
		return Reply{}, fmt.Errorf("select %q: %w", code, err)
	}

	return Reply{
		Text: b.tr.T("select_checkout", svc.DisplayName, svc.PriceLabel()),
		Buttons: [][]adapter.InlineButton{
			{{Text: b.tr.T("button_pay", svc.PriceLabel()), URL: link}},
			{{Text: b.tr.T("button_back"), Data: CallbackMenu}},
		},
	}, nil
}

// HandleMessage treats plain text as the paid question.
func (b *BotFacade) HandleMessage(ctx context.Context, buyerID int64, text string) (Reply, error) {
	answer, err := b.QuestionUC.Ask(ctx, buyerID, text)
	if err == nil {
		return Reply{Text: answer}, nil
	}

	switch {
	case errors.Is(err, domain.ErrStateConflict):
		return b.menu(b.tr.T("question_needs_menu")), nil
	case errors.Is(err, domain.ErrInvalidArgument):
		return Reply{Text: b.tr.T("question_blank")}, nil
	case errors.Is(err, domain.ErrQuestionTooLong):
		return Reply{Text: b.tr.T("question_too_long")}, nil
	case errors.Is(err, domain.ErrInFlight):
		return Reply{Text: b.tr.T("question_in_flight")}, nil
	case errors.Is(err, domain.ErrStaleReply):
		return Reply{}, nil
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, domain.ErrUpstreamRejected):
		return b.menu(b.tr.T("question_failed")), nil
	case errors.Is(err, domain.ErrUnknownService):
		return b.menu(b.tr.T("question_unknown_service")), nil
	}
	return Reply{}, err
}

func (b *BotFacade) HandleStatus(ctx context.Context, buyerID int64) (string, error) {
	sess, err := b.PurchaseUC.Session(ctx, buyerID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(b.tr.T("status_title") + "\n")
	sb.WriteString(b.tr.T("status_stage", sess.Stage) + "\n")
	if sess.SelectedService != "" {
		sb.WriteString(b.tr.T("status_reading", sess.SelectedService) + "\n")
	}
	sb.WriteString(b.tr.T("status_ai", b.Info.Provider, b.Info.Model))
	if b.Info.AIKeyHint != "" && slices.Contains(b.Info.AdminIDs, buyerID) {
		sb.WriteString(b.tr.T("status_key", b.Info.AIKeyHint))
	}
	return sb.String(), nil
}

func (b *BotFacade) HandleHelp() string {
	return b.tr.T("help")
}

func (b *BotFacade) pendingText(sess *model.BuyerSession) string {
	return b.tr.T("pending_question", b.displayName(sess.SelectedService))
}

func (b *BotFacade) displayName(code string) string {
	for _, s := range b.PurchaseUC.Services() {
		if s.Code == code {
			return s.DisplayName
		}
	}
	return code
}

func (b *BotFacade) menu(text string) Reply {
	services := b.PurchaseUC.Services()
	rows := make([][]adapter.InlineButton, 0, len(services))
	for _, s := range services {
		rows = append(rows, []adapter.InlineButton{{
			Text: fmt.Sprintf("%s · %s", s.DisplayName, s.PriceLabel()),
			Data: CallbackBuyPrefix + s.Code,
		}})
	}
	return Reply{Text: text, Buttons: rows}
}
