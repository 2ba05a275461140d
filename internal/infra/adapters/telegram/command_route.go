package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type commandHandler func(ctx context.Context, chatID int64, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"restart": r.handleRestartCommand,
		"menu":    r.handleMenuCommand,
		"status":  r.handleStatusCommand,
		"help":    r.handleHelpCommand,
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, chatID int64, _ *tgbotapi.Message) error {
	reply, err := r.facade.HandleStart(ctx, chatID)
	if err != nil {
		r.log.Error().Err(err).Int64("buyer_id", chatID).Msg("/start")
		return r.SendMessage(ctx, chatID, r.translator.T("error_generic"))
	}
	return r.sendReply(ctx, chatID, reply)
}

func (r *RealTelegramBotAdapter) handleRestartCommand(ctx context.Context, chatID int64, _ *tgbotapi.Message) error {
	reply, err := r.facade.HandleRestart(ctx, chatID)
	if err != nil {
		r.log.Error().Err(err).Int64("buyer_id", chatID).Msg("/restart")
		return r.SendMessage(ctx, chatID, r.translator.T("error_generic"))
	}
	return r.sendReply(ctx, chatID, reply)
}

func (r *RealTelegramBotAdapter) handleMenuCommand(ctx context.Context, chatID int64, _ *tgbotapi.Message) error {
	reply, err := r.facade.HandleMenu(ctx, chatID)
	if err != nil {
		return err
	}
	return r.sendReply(ctx, chatID, reply)
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, chatID int64, _ *tgbotapi.Message) error {
	text, err := r.facade.HandleStatus(ctx, chatID)
	if err != nil {
		r.log.Error().Err(err).Int64("buyer_id", chatID).Msg("/status")
		text = r.translator.T("error_status")
	}
	return r.SendMessage(ctx, chatID, text)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, chatID int64, _ *tgbotapi.Message) error {
	return r.SendMessage(ctx, chatID, r.facade.HandleHelp())
}
