package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"oracle-bot/internal/application"
	"oracle-bot/internal/config"
	"oracle-bot/internal/domain/ports/adapter"
	"oracle-bot/internal/infra/logging"
	"oracle-bot/internal/infra/metrics"
	red "oracle-bot/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// Facade is the part of application.BotFacade the adapter routes to.
type Facade interface {
	HandleStart(ctx context.Context, buyerID int64) (application.Reply, error)
	HandleRestart(ctx context.Context, buyerID int64) (application.Reply, error)
	HandleMenu(ctx context.Context, buyerID int64) (application.Reply, error)
	HandleSelect(ctx context.Context, buyerID int64, code string) (application.Reply, error)
	HandleMessage(ctx context.Context, buyerID int64, text string) (application.Reply, error)
	HandleStatus(ctx context.Context, buyerID int64) (string, error)
	HandleHelp() string
}

// RateLimiter is satisfied by the Redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// sender is the subset of tgbotapi.BotAPI used to talk back to Telegram.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// RealTelegramBotAdapter uses tgbotapi to poll updates and delegates to the facade.
// Updates for one chat always land on the same worker, so a buyer's commands
// are handled in order.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	api         sender
	facade      Facade
	translator  application.Translator
	rateLimiter RateLimiter
	rateLimit   int
	log         *zerolog.Logger

	updateWorkers int
	sendTimeout   time.Duration
	cancelPolling context.CancelFunc
	questions     sync.WaitGroup
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, facade Facade, translator application.Translator, rateLimiter RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	client := &http.Client{Timeout: sendTimeoutOf(cfg)}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	r, err := newAdapter(bot, facade, translator, rateLimiter, cfg, logger)
	if err != nil {
		return nil, err
	}
	r.bot = bot
	r.log.Info().Str("username", bot.Self.UserName).Msg("telegram bot authorized")
	return r, nil
}

func newAdapter(api sender, facade Facade, translator application.Translator, rateLimiter RateLimiter, cfg *config.BotConfig, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if translator == nil {
		return nil, errors.New("translator is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	return &RealTelegramBotAdapter{
		api:           api,
		facade:        facade,
		translator:    translator,
		rateLimiter:   rateLimiter,
		rateLimit:     cfg.RateLimit,
		log:           logging.Component(logger, "TelegramBot"),
		updateWorkers: workers,
		sendTimeout:   sendTimeoutOf(cfg),
	}, nil
}

func sendTimeoutOf(cfg *config.BotConfig) time.Duration {
	if cfg.SendTimeout <= 0 {
		return 15 * time.Second
	}
	return cfg.SendTimeout
}

// StartPolling runs until ctx is canceled. In-flight questions are awaited
// before it returns.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.bot == nil {
		return errors.New("polling needs a logged-in bot")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	shards := make([]chan tgbotapi.Update, r.updateWorkers)
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, 32)
		wg.Add(1)
		go func(in <-chan tgbotapi.Update) {
			defer wg.Done()
			for up := range in {
				r.dispatch(ctx, up)
			}
		}(shards[i])
	}

	r.log.Info().Int("workers", r.updateWorkers).Msg("polling started")
	func() {
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case up, ok := <-updates:
				if !ok {
					return
				}
				select {
				case shards[shardOf(chatOf(up), len(shards))] <- up:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	r.bot.StopReceivingUpdates()
	wg.Wait()
	r.questions.Wait()
	r.log.Info().Msg("polling stopped")
	return nil
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func shardOf(chatID int64, n int) int {
	if chatID < 0 {
		chatID = -chatID
	}
	return int(chatID % int64(n))
}

func chatOf(up tgbotapi.Update) int64 {
	switch {
	case up.Message != nil && up.Message.Chat != nil:
		return up.Message.Chat.ID
	case up.CallbackQuery != nil && up.CallbackQuery.Message != nil && up.CallbackQuery.Message.Chat != nil:
		return up.CallbackQuery.Message.Chat.ID
	case up.CallbackQuery != nil && up.CallbackQuery.From != nil:
		return up.CallbackQuery.From.ID
	}
	return 0
}

// dispatch handles one update; a panic is contained to that update.
func (r *RealTelegramBotAdapter) dispatch(ctx context.Context, up tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncUpdatePanic()
			r.log.Error().Interface("panic", rec).Int("update_id", up.UpdateID).Msg("update handler panicked")
		}
	}()
	if err := r.handleUpdate(ctx, up); err != nil {
		r.log.Error().Err(err).Int("update_id", up.UpdateID).Msg("handle update")
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	ctx = r.withBuyer(ctx, chatID)

	command := "message"
	if msg.IsCommand() {
		command = "/" + msg.Command()
	}
	metrics.IncTelegramCommand(command)

	if !r.allow(ctx, chatID) {
		return r.SendMessage(ctx, chatID, r.translator.T("error_rate_limited"))
	}

	if msg.IsCommand() {
		if fn, ok := r.commandRoutes()[msg.Command()]; ok {
			return fn(ctx, chatID, msg)
		}
		return r.SendMessage(ctx, chatID, r.translator.T("error_unknown_command"))
	}
	if strings.TrimSpace(msg.Text) == "" {
		return r.SendMessage(ctx, chatID, r.translator.T("question_blank"))
	}
	r.askAsync(ctx, chatID, msg.Text)
	return nil
}

// askAsync answers a question off the shard worker so /restart and other
// commands from the same chat are not stuck behind the generative call.
func (r *RealTelegramBotAdapter) askAsync(ctx context.Context, chatID int64, text string) {
	r.questions.Add(1)
	go func() {
		defer r.questions.Done()
		defer func() {
			if rec := recover(); rec != nil {
				metrics.IncUpdatePanic()
				r.log.Error().Interface("panic", rec).Int64("buyer_id", chatID).Msg("question handler panicked")
			}
		}()
		reply, err := r.facade.HandleMessage(ctx, chatID, text)
		if err != nil {
			r.log.Error().Err(err).Int64("buyer_id", chatID).Msg("handle question")
			_ = r.SendMessage(context.WithoutCancel(ctx), chatID, r.translator.T("error_generic"))
			return
		}
		if err := r.sendReply(context.WithoutCancel(ctx), chatID, reply); err != nil {
			r.log.Error().Err(err).Int64("buyer_id", chatID).Msg("send answer")
		}
	}()
}

func (r *RealTelegramBotAdapter) withBuyer(ctx context.Context, chatID int64) context.Context {
	ctx = logging.WithBuyerID(ctx, chatID)
	return logging.With(ctx, r.log).WithContext(ctx)
}

func (r *RealTelegramBotAdapter) allow(ctx context.Context, chatID int64) bool {
	if r.rateLimiter == nil || r.rateLimit <= 0 {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserUpdateKey(chatID), r.rateLimit, time.Minute)
	if err != nil {
		// fail open; the limiter is a courtesy, not a guard
		r.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

func (r *RealTelegramBotAdapter) sendReply(ctx context.Context, chatID int64, reply application.Reply) error {
	switch {
	case strings.TrimSpace(reply.Text) == "":
		return nil
	case len(reply.Buttons) > 0:
		return r.SendButtons(ctx, chatID, reply.Text, reply.Buttons)
	default:
		return r.SendMessage(ctx, chatID, reply.Text)
	}
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	return r.send(ctx, tgbotapi.NewMessage(tgID, text))
}

// send delivers c with a per-attempt timeout and retries once when Telegram
// throttled us, failed on its side, or the attempt timed out.
func (r *RealTelegramBotAdapter) send(ctx context.Context, c tgbotapi.Chattable) error {
	err := r.attempt(ctx, func() error {
		_, err := r.api.Send(c)
		return err
	})
	if err == nil || ctx.Err() != nil || !retryableSend(err) {
		metrics.IncTelegramSend(sendResult(err))
		return err
	}
	r.log.Warn().Err(err).Msg("telegram send failed, retrying")
	err = r.attempt(ctx, func() error {
		_, err := r.api.Send(c)
		return err
	})
	metrics.IncTelegramSend(sendResult(err))
	return err
}

// attempt bounds one Bot API call. The call itself cannot be canceled; the
// HTTP client timeout ends it eventually.
func (r *RealTelegramBotAdapter) attempt(ctx context.Context, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	actx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- call() }()
	select {
	case err := <-done:
		return err
	case <-actx.Done():
		return fmt.Errorf("telegram send: %w", actx.Err())
	}
}

func retryableSend(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

func sendResult(err error) string {
	if err != nil {
		return "error"
	}
	return "sent"
}

// SendButtons sends a message with inline buttons.
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else a safe fallback uses btn.Text as callback data
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, kr)
	}

	msg := tgbotapi.NewMessage(tgID, text)
	if len(kbRows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	}
	return r.send(ctx, msg)
}
