// Command paysim signs a payment notification with the shared webhook secret
// and posts it to a running bot, for exercising the unlock flow locally.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"oracle-bot/internal/domain/model"
	payAdapters "oracle-bot/internal/infra/adapters/payment"
	"oracle-bot/internal/infra/api"
)

func main() {
	_ = godotenv.Load()

	url := flag.String("url", "http://localhost:8080/webhook", "webhook URL")
	secret := flag.String("secret", os.Getenv("PAYMENT_WEBHOOK_SECRET"), "shared webhook secret")
	buyer := flag.Int64("buyer", 0, "buyer (Telegram chat) id")
	service := flag.String("service", "pqgo", "service code")
	status := flag.String("status", "completed", "payment status")
	eventID := flag.String("event", "", "processor event id (optional)")
	badSig := flag.Bool("tamper", false, "send a wrong signature")
	times := flag.Int("times", 1, "deliver the same notification this many times")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if *buyer == 0 {
		logger.Fatal().Msg("-buyer is required")
	}
	signer, err := payAdapters.NewHMACVerifier(*secret)
	if err != nil {
		logger.Fatal().Err(err).Msg("set -secret or PAYMENT_WEBHOOK_SECRET")
	}

	payload := map[string]string{
		"status":      *status,
		"custom_data": model.CorrelationToken{BuyerID: *buyer, ServiceCode: *service}.String(),
	}
	if *eventID != "" {
		payload["event_id"] = *eventID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Fatal().Err(err).Msg("encode payload")
	}
	sig := signer.Sign(body)
	if *badSig {
		sig = "00" + sig[2:]
	}

	client := &http.Client{Timeout: 10 * time.Second}
	for i := 1; i <= *times; i++ {
		code, reply, err := post(context.Background(), client, *url, body, sig)
		if err != nil {
			logger.Fatal().Err(err).Msg("post notification")
		}
		logger.Info().Int("attempt", i).Int("status", code).Str("reply", reply).Msg("delivered")
	}
}

func post(ctx context.Context, client *http.Client, url string, body []byte, sig string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.SignatureHeader, sig)
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return resp.StatusCode, strconv.Quote(string(bytes.TrimSpace(b))), nil
}
