package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"oracle-bot/internal/application"
	"oracle-bot/internal/catalog"
	"oracle-bot/internal/config"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/adapter"
	"oracle-bot/internal/domain/ports/repository"
	aiAdapters "oracle-bot/internal/infra/adapters/ai"
	payAdapters "oracle-bot/internal/infra/adapters/payment"
	tele "oracle-bot/internal/infra/adapters/telegram"
	"oracle-bot/internal/infra/api"
	pg "oracle-bot/internal/infra/db/postgres"
	"oracle-bot/internal/infra/i18n"
	"oracle-bot/internal/infra/logging"
	"oracle-bot/internal/infra/memory"
	"oracle-bot/internal/infra/metrics"
	red "oracle-bot/internal/infra/redis"
	"oracle-bot/internal/infra/sched"
	"oracle-bot/internal/infra/worker"
	"oracle-bot/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (optional)")
	devMode := flag.Bool("dev", false, "run without Telegram and AI credentials (noop adapters)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
	logger.Info().Msg("bye")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Runtime.Dev {
		logger.Warn().Msg("DEV MODE: noop Telegram and AI adapters may be in use")
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	logger.Info().Int("services", len(cat.List())).Msg("catalog loaded")

	// ---- Storage ----
	var (
		sessions    repository.SessionStore
		events      repository.PaymentEventLog
		rateLimiter tele.RateLimiter
		sweeper     *sched.SessionSweeper
		memSessions *memory.SessionStore
		memEvents   *memory.EventLog
	)

	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		sessions = red.NewSessionStore(redisClient, cfg.Session.TTL)
		events = red.NewEventLog(redisClient, cfg.Session.EventTTL)
		rateLimiter = red.NewRateLimiter(redisClient)
		logger.Info().Msg("sessions: redis")
	} else {
		memSessions = memory.NewSessionStore()
		sessions = memSessions
		logger.Info().Msg("sessions: memory (lost on restart)")
	}

	if cfg.Database.URL != "" {
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		repo := pg.NewPaymentEventRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		events = repo
		logger.Info().Msg("payment ledger: postgres")
	} else if events == nil {
		memEvents = memory.NewEventLog(cfg.Session.EventTTL)
		events = memEvents
		logger.Info().Msg("payment ledger: memory")
	}

	if memSessions != nil || memEvents != nil {
		var ss sched.SessionSource
		var es sched.EventSource
		if memSessions != nil {
			ss = memSessions
		}
		if memEvents != nil {
			es = memEvents
		}
		sweeper = sched.NewSessionSweeper(cfg.Session.SweepInterval, cfg.Session.TTL, ss, es, logger)
	}

	// ---- AI ----
	ai, err := newAI(ctx, cfg, logger)
	if err != nil {
		return err
	}
	tokens := aiAdapters.NewTokenCounter(logger)

	// ---- Payment ----
	verifier, err := payAdapters.NewHMACVerifier(cfg.Payment.WebhookSecret)
	if err != nil {
		return fmt.Errorf("payment verifier: %w", err)
	}
	links, err := payAdapters.NewCheckoutLinks(cfg.Payment.CheckoutBaseURL)
	if err != nil {
		return fmt.Errorf("checkout links: %w", err)
	}

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	// ---- Use cases ----
	purchaseUC := usecase.NewPurchaseUseCase(sessions, cat, links, logger)
	questionUC := usecase.NewQuestionUseCase(sessions, cat, ai, tokens, usecase.QuestionOptions{
		Model:             cfg.AI.DefaultModel,
		Timeout:           cfg.AI.Timeout,
		MaxQuestionTokens: cfg.AI.MaxQuestionTokens,
		Dev:               cfg.Runtime.Dev,
	}, logger)
	facade := application.NewBotFacade(purchaseUC, questionUC, tr, application.Info{
		Provider:  cfg.AI.Provider,
		Model:     cfg.AI.DefaultModel,
		AIKeyHint: cfg.AIKeyHint(),
		AdminIDs:  cfg.Bot.AdminIDs,
	})

	// ---- Telegram ----
	var (
		bot     adapter.TelegramBotAdapter
		realBot *tele.RealTelegramBotAdapter
	)
	if cfg.Bot.Token != "" {
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, tr, rateLimiter, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot = realBot
	} else {
		bot = tele.NewNoopBotAdapter(logger)
	}

	// ---- Advisory worker pool ----
	pool := worker.NewPool(cfg.Notify.Workers, cfg.Notify.Queue, logger)
	pool.Start(ctx)
	defer pool.Stop()

	paymentUC := usecase.NewPaymentUseCase(verifier, sessions, events, cat, bot, pool, usecase.PaymentOptions{
		SuccessStatus: cfg.Payment.SuccessStatus,
		NotifyTimeout: cfg.Notify.Timeout,
		UnlockNotice: func(svc model.ServiceDescriptor) string {
			return tr.T("unlock_notice", svc.DisplayName)
		},
	}, logger)

	// ---- Run ----
	server := api.NewServer(paymentUC, sessions, cfg.HTTP, cfg.Admin.JWTSecret, logger)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	runPart := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("part", name).Msg("stopped")
				select {
				case errCh <- fmt.Errorf("%s: %w", name, err):
				default:
				}
			}
		}()
	}

	runPart("http", server.Run)
	if realBot != nil {
		runPart("telegram", realBot.StartPolling)
	}
	if sweeper != nil {
		runPart("sweeper", sweeper.Run)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case runErr = <-errCh:
	}
	if realBot != nil {
		realBot.StopPolling()
	}
	wg.Wait()
	return runErr
}

func newAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	var (
		ai  adapter.AIServiceAdapter
		err error
	)
	switch {
	case cfg.AI.Provider == "openai" && cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
	case cfg.AI.Provider == "gemini" && cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
	default:
		// only reachable in dev; Validate requires the key otherwise
		ai = aiAdapters.NewNoopAIAdapter()
	}
	if err != nil {
		return nil, fmt.Errorf("%s adapter: %w", cfg.AI.Provider, err)
	}
	logger.Info().
		Str("provider", ai.Name()).
		Str("model", cfg.AI.DefaultModel).
		Str("key", logging.Redact(cfg.AIKey(), false)).
		Msg("AI adapter ready")
	return aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit), nil
}
