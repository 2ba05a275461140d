package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"oracle-bot/internal/application"
	"oracle-bot/internal/infra/metrics"
)

type cbHandler func(ctx context.Context, chatID int64, data string) error

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

// Exact-match callbacks
func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		application.CallbackMenu: r.menuCBRoute,
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: application.CallbackBuyPrefix, Fn: r.buyPrefixCBRoute},
	}
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.From == nil {
		return nil
	}
	// stop the client spinner
	defer func() {
		_ = r.attempt(context.WithoutCancel(ctx), func() error {
			_, err := r.api.Request(tgbotapi.NewCallback(query.ID, ""))
			return err
		})
	}()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	ctx = r.withBuyer(ctx, chatID)

	data := strings.TrimSpace(query.Data)
	metrics.IncTelegramCommand("cb")
	if !r.allow(ctx, chatID) {
		return r.SendMessage(ctx, chatID, r.translator.T("error_rate_limited"))
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, chatID, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, chatID, data)
		}
	}
	return fmt.Errorf("unknown callback data %q", data)
}

func (r *RealTelegramBotAdapter) menuCBRoute(ctx context.Context, chatID int64, _ string) error {
	reply, err := r.facade.HandleMenu(ctx, chatID)
	if err != nil {
		return err
	}
	return r.sendReply(ctx, chatID, reply)
}

func (r *RealTelegramBotAdapter) buyPrefixCBRoute(ctx context.Context, chatID int64, data string) error {
	code := strings.TrimPrefix(data, application.CallbackBuyPrefix)
	reply, err := r.facade.HandleSelect(ctx, chatID, code)
	if err != nil {
		r.log.Error().Err(err).Int64("buyer_id", chatID).Str("service", code).Msg("select service")
		return r.SendMessage(ctx, chatID, r.translator.T("error_checkout"))
	}
	return r.sendReply(ctx, chatID, reply)
}
