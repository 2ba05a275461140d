//go:build !integration

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"oracle-bot/internal/catalog"
	"oracle-bot/internal/config"
	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/adapter"
	"oracle-bot/internal/infra/adapters/payment"
	"oracle-bot/internal/infra/memory"
	"oracle-bot/internal/usecase"
)

const secret = "whsec_test"

type nopBot struct{}

func (nopBot) SendMessage(context.Context, int64, string) error { return nil }
func (nopBot) SendButtons(context.Context, int64, string, [][]adapter.InlineButton) error {
	return nil
}

type inline struct{}

func (inline) Submit(task func(ctx context.Context) error) error { return task(context.Background()) }

type panicUC struct{}

func (panicUC) HandleNotification(context.Context, []byte, string) (model.Outcome, error) {
	panic("boom")
}

type fixture struct {
	handler  http.Handler
	sessions *memory.SessionStore
	signer   *payment.HMACVerifier
}

func newFixture(t *testing.T, adminSecret string) *fixture {
	t.Helper()
	signer, err := payment.NewHMACVerifier(secret)
	if err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatal(err)
	}
	sessions := memory.NewSessionStore()
	logger := zerolog.Nop()
	uc := usecase.NewPaymentUseCase(signer, sessions, memory.NewEventLog(time.Hour), cat, nopBot{}, inline{},
		usecase.PaymentOptions{}, &logger)
	srv := NewServer(uc, sessions, config.HTTPConfig{MaxBodyBytes: 1024}, adminSecret, &logger)
	return &fixture{handler: srv.Router(), sessions: sessions, signer: signer}
}

func (f *fixture) post(body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_StatusCodes(t *testing.T) {
	f := newFixture(t, "")
	completed := `{"status":"completed","custom_data":"12345:pqgo"}`

	tests := []struct {
		name string
		body string
		sig  string
		code int
	}{
		{"bad signature", completed, strings.Repeat("0", 64), http.StatusForbidden},
		{"missing signature", completed, "", http.StatusForbidden},
		{"pending", `{"status":"pending","custom_data":"12345:pqgo"}`, "sign", http.StatusOK},
		{"malformed", `{"custom_data":"12345:pqgo"}`, "sign", http.StatusInternalServerError},
		{"completed", completed, "sign", http.StatusOK},
		{"replay", completed, "sign", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tt.sig
			if sig == "sign" {
				sig = f.signer.Sign([]byte(tt.body))
			}
			rec := f.post(tt.body, sig)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d (%s)", tt.code, rec.Code, rec.Body.String())
			}
			if tt.code == http.StatusOK && rec.Body.String() != "ok" {
				t.Errorf("expected body ok, got %q", rec.Body.String())
			}
		})
	}

	s, _ := f.sessions.Get(context.Background(), 12345)
	if s == nil || s.Stage != model.StageAwaitingQuestion {
		t.Fatalf("expected unlocked buyer, got %+v", s)
	}
	if s.Revision != 1 {
		t.Fatalf("replay must not write again, revision %d", s.Revision)
	}
}

func TestWebhook_BodyLimit(t *testing.T) {
	f := newFixture(t, "")
	body := `{"status":"completed","custom_data":"1:pqgo","pad":"` + strings.Repeat("x", 2048) + `"}`
	rec := f.post(body, f.signer.Sign([]byte(body)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if f.sessions.Len() != 0 {
		t.Fatal("oversized body must not unlock")
	}
}

func TestWebhook_PanicIsContained(t *testing.T) {
	logger := zerolog.Nop()
	srv := NewServer(panicUC{}, memory.NewSessionStore(), config.HTTPConfig{}, "", &logger)
	h := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("server unusable after panic: %d", rec.Code)
	}
}

func TestWebhook_TraceHeader(t *testing.T) {
	f := newFixture(t, "")
	rec := f.post(`{}`, "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a request id")
	}
}

func TestAdmin_Sessions(t *testing.T) {
	f := newFixture(t, "admin-secret")
	ctx := context.Background()
	_, _ = f.sessions.Enter(ctx, 77, model.StageAwaitingPayment, "yesno")

	token, err := NewAuthManager("admin-secret", time.Minute).Mint("ops")
	if err != nil {
		t.Fatal(err)
	}
	forged, _ := NewAuthManager("other-secret", time.Minute).Mint("ops")

	do := func(method, path, tok string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodGet, "/admin/sessions/77", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(http.MethodGet, "/admin/sessions/77", forged); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with forged token, got %d", rec.Code)
	}

	rec := do(http.MethodGet, "/admin/sessions/77", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got model.BuyerSession
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Stage != model.StageAwaitingPayment || got.SelectedService != "yesno" {
		t.Fatalf("unexpected session %+v", got)
	}

	if rec := do(http.MethodGet, "/admin/sessions/78", token); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(http.MethodGet, "/admin/sessions/abc", token); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := do(http.MethodDelete, "/admin/sessions/77", token); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if s, _ := f.sessions.Get(ctx, 77); s.Stage != model.StageIdle {
		t.Fatalf("expected idle after reset, got %+v", s)
	}
}

func TestAdmin_DisabledWithoutSecret(t *testing.T) {
	f := newFixture(t, "")
	req := httptest.NewRequest(http.MethodGet, "/admin/sessions/1", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when admin is disabled, got %d", rec.Code)
	}
}
