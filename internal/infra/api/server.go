package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"oracle-bot/internal/config"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/repository"
	"oracle-bot/internal/infra/metrics"
	"oracle-bot/internal/usecase"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Signature"

// Server exposes the payment webhook, health and metrics endpoints, and the
// admin API when an admin secret is configured.
type Server struct {
	payUC    usecase.PaymentUseCase
	sessions repository.SessionStore
	auth     *AuthManager
	cfg      config.HTTPConfig
	log      *zerolog.Logger
}

// NewServer builds the HTTP layer. An empty adminSecret disables /admin.
func NewServer(payUC usecase.PaymentUseCase, sessions repository.SessionStore, cfg config.HTTPConfig, adminSecret string, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{payUC: payUC, sessions: sessions, cfg: cfg, log: &l}
	if adminSecret != "" {
		s.auth = NewAuthManager(adminSecret, time.Hour)
	}
	if s.cfg.WebhookPath == "" {
		s.cfg.WebhookPath = "/webhook"
	}
	if s.cfg.MaxBodyBytes <= 0 {
		s.cfg.MaxBodyBytes = 64 << 10
	}
	if s.cfg.Timeout <= 0 {
		s.cfg.Timeout = 10 * time.Second
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(s.log), RequestLog(s.log), Recover(s.log), Timeout(s.cfg.Timeout))

	r.Post(s.cfg.WebhookPath, s.handleWebhook)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if s.auth != nil {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(s.auth.Middleware)
			ar.Get("/sessions/{buyerID}", s.handleGetSession)
			ar.Delete("/sessions/{buyerID}", s.handleDeleteSession)
		})
	}
	return r
}

// Run serves until ctx is canceled, then drains for up to five seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Str("webhook", s.cfg.WebhookPath).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.ObserveWebhook("too_large", time.Since(start))
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		metrics.ObserveWebhook(string(model.OutcomeInternal), time.Since(start))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	outcome, err := s.payUC.HandleNotification(r.Context(), body, r.Header.Get(SignatureHeader))
	metrics.ObserveWebhook(string(outcome), time.Since(start))

	switch {
	case outcome.Acknowledged():
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	case outcome == model.OutcomeUnauthorized:
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("outcome", string(outcome)).Msg("webhook rejected")
		}
		http.Error(w, "error", http.StatusInternalServerError)
	}
}
