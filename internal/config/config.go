package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token       string        `yaml:"token"`
	Workers     int           `yaml:"workers"`    // update workers, sharded by chat id
	RateLimit   int           `yaml:"rate_limit"` // updates per user per minute, 0 disables
	AdminIDs    []int64       `yaml:"admin_ids"`  // may see provider details in /status
	Language    string        `yaml:"language"`   // en | uk
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port         int           `yaml:"port"`
	WebhookPath  string        `yaml:"webhook_path"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	Timeout      time.Duration `yaml:"timeout"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	Provider          string        `yaml:"provider"` // gemini | openai
	GeminiKey         string        `yaml:"gemini_key"`
	GeminiURL         string        `yaml:"gemini_url"`
	OpenAIKey         string        `yaml:"openai_key"`
	OpenAIBaseURL     string        `yaml:"openai_base_url"`
	DefaultModel      string        `yaml:"default_model"`
	MaxOutputTokens   int           `yaml:"max_output_tokens"`
	MaxQuestionTokens int           `yaml:"max_question_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	ConcurrentLimit   int           `yaml:"concurrent_limit"` // max concurrent AI calls
}

type PaymentConfig struct {
	WebhookSecret   string `yaml:"webhook_secret"`
	SuccessStatus   string `yaml:"success_status"`
	CheckoutBaseURL string `yaml:"checkout_base_url"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	EventTTL      time.Duration `yaml:"event_ttl"` // replay window for memory/redis ledgers
}

type NotifyConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Workers int           `yaml:"workers"`
	Queue   int           `yaml:"queue"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Payment  PaymentConfig  `yaml:"payment"`
	Session  SessionConfig  `yaml:"session"`
	Notify   NotifyConfig   `yaml:"notify"`
	Catalog  CatalogConfig  `yaml:"catalog"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the optional YAML file at path, then .env, then the process
// environment, which wins. A missing file at path is not an error; everything
// can come from the environment.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	str(&cfg.Bot.Token, "TELEGRAM_TOKEN")
	str(&cfg.AI.GeminiKey, "G_KEY", "GEMINI_API_KEY")
	str(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	str(&cfg.AI.Provider, "AI_PROVIDER")
	str(&cfg.Payment.WebhookSecret, "PAYMENT_WEBHOOK_SECRET")
	str(&cfg.Payment.CheckoutBaseURL, "CHECKOUT_BASE_URL")
	str(&cfg.Redis.URL, "REDIS_URL")
	str(&cfg.Database.URL, "DATABASE_URL")
	str(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	str(&cfg.Catalog.Path, "CATALOG_PATH")
	str(&cfg.Log.Level, "LOG_LEVEL")
	str(&cfg.Bot.Language, "BOT_LANGUAGE")

	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		p, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.HTTP.Port = p
	}

	// keys pasted into dashboards often carry stray whitespace
	cfg.Bot.Token = strings.TrimSpace(cfg.Bot.Token)
	cfg.AI.GeminiKey = strings.TrimSpace(cfg.AI.GeminiKey)
	cfg.AI.OpenAIKey = strings.TrimSpace(cfg.AI.OpenAIKey)
	cfg.Payment.WebhookSecret = strings.TrimSpace(cfg.Payment.WebhookSecret)
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}
	cfg.Bot.SendTimeout = normalizeTTL(cfg.Bot.SendTimeout, 15*time.Second)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.WebhookPath == "" {
		cfg.HTTP.WebhookPath = "/webhook"
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 64 << 10
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = 10 * time.Second
	}

	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.DefaultModel == "" {
		if cfg.AI.Provider == "openai" {
			cfg.AI.DefaultModel = "gpt-4o-mini"
		} else {
			cfg.AI.DefaultModel = "gemini-1.5-flash"
		}
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}
	if cfg.AI.MaxQuestionTokens <= 0 {
		cfg.AI.MaxQuestionTokens = 512
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 25 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	if cfg.Payment.SuccessStatus == "" {
		cfg.Payment.SuccessStatus = "completed"
	}

	cfg.Session.TTL = normalizeTTL(cfg.Session.TTL, 24*time.Hour)
	cfg.Session.SweepInterval = normalizeTTL(cfg.Session.SweepInterval, 10*time.Minute)
	cfg.Session.EventTTL = normalizeTTL(cfg.Session.EventTTL, 7*24*time.Hour)

	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = 15 * time.Second
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 4
	}
	if cfg.Notify.Queue <= 0 {
		cfg.Notify.Queue = 256
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("payment.webhook_secret (PAYMENT_WEBHOOK_SECRET) is required"))
	}
	if c.Payment.CheckoutBaseURL == "" {
		errs = append(errs, errors.New("payment.checkout_base_url (CHECKOUT_BASE_URL) is required"))
	}
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q: want gemini or openai", c.AI.Provider))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if !strings.HasPrefix(c.HTTP.WebhookPath, "/") {
		errs = append(errs, fmt.Errorf("http.webhook_path %q must start with /", c.HTTP.WebhookPath))
	}

	// dev mode runs with noop bot and AI adapters
	if !c.Runtime.Dev {
		if c.Bot.Token == "" {
			errs = append(errs, errors.New("bot.token (TELEGRAM_TOKEN) is required"))
		}
		switch {
		case c.AI.Provider == "gemini" && c.AI.GeminiKey == "":
			errs = append(errs, errors.New("ai.gemini_key (G_KEY) is required for provider gemini"))
		case c.AI.Provider == "openai" && c.AI.OpenAIKey == "":
			errs = append(errs, errors.New("ai.openai_key (OPENAI_API_KEY) is required for provider openai"))
		}
	}
	return errors.Join(errs...)
}

// AIKey returns the key of the active provider.
func (c *Config) AIKey() string {
	if c.AI.Provider == "openai" {
		return c.AI.OpenAIKey
	}
	return c.AI.GeminiKey
}

// AIKeyHint returns the first characters of the active provider key, for the
// admin status screen. Empty when no key is configured.
func (c *Config) AIKeyHint() string {
	key := c.AIKey()
	if len(key) < 6 {
		return ""
	}
	return key[:6]
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
