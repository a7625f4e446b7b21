// ABOUTME: Configuration loading and parsing for atende-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete atende-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Flow     FlowConfig     `yaml:"flow"`
	NLP      NLPConfig      `yaml:"nlp"`
	Media    MediaConfig    `yaml:"media"`
	Session  SessionConfig  `yaml:"session"`
	Bot      BotConfig      `yaml:"bot"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the dashboard/webhook listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// WhatsAppConfig holds the WPPConnect provider connection
type WhatsAppConfig struct {
	BaseURL         string   `yaml:"base_url"`
	Session         string   `yaml:"session"`
	Token           string   `yaml:"token"`
	OperatorGroup   string   `yaml:"operator_group"`
	OperatorNumbers []string `yaml:"operator_numbers"`
}

// StoreConfig selects the persistence backend. An empty path keeps
// everything in memory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig enables the shared queue and lock backends. An empty addr
// falls back to the in-process implementations.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	QueueKey string `yaml:"queue_key"`

	LockTTL    time.Duration `yaml:"-"`
	LockTTLRaw string        `yaml:"lock_ttl"`
}

// FlowConfig holds the business texts and knobs interpolated into prompts
type FlowConfig struct {
	CompanyName     string   `yaml:"company_name"`
	BusinessHours   string   `yaml:"business_hours"`
	BusinessDays    string   `yaml:"business_days"`
	StoreAddress    string   `yaml:"store_address"`
	StoreLatitude   string   `yaml:"store_latitude"`
	StoreLongitude  string   `yaml:"store_longitude"`
	PaymentInPerson string   `yaml:"payment_in_person"`
	PaymentOnline   string   `yaml:"payment_online"`
	DeliveryInfo    string   `yaml:"delivery_info"`
	ExchangePolicy  string   `yaml:"exchange_policy"`
	ContactInfo     string   `yaml:"contact_info"`
	CatalogURL      string   `yaml:"catalog_url"`
	CityAllowed     string   `yaml:"city_allowed"`
	OnlineStores    []string `yaml:"online_stores"`
	InstagramURL    string   `yaml:"instagram_url"`
	PIXKey          string   `yaml:"pix_key"`
	MercadoLivreURL string   `yaml:"mercado_livre_url"`

	CatalogCardImage    string `yaml:"catalog_card_image"`
	OrderSummaryImage   string `yaml:"order_summary_image"`
	OrderConfirmedImage string `yaml:"order_confirmed_image"`

	AvgHandleTime    time.Duration `yaml:"-"`
	AvgHandleTimeRaw string        `yaml:"avg_handle_time"`
}

// NLPProviderConfig is one intent detector in the fallback chain
type NLPProviderConfig struct {
	Type string `yaml:"type"` // "keyword" or "http"
	URL  string `yaml:"url"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// NLPConfig holds the intent detection chain, tried in order
type NLPConfig struct {
	Providers []NLPProviderConfig `yaml:"providers"`
}

// MediaConfig holds upload storage configuration
type MediaConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// SessionConfig holds idle-session expiry configuration
type SessionConfig struct {
	Timeout      time.Duration `yaml:"-"`
	TimeoutRaw   string        `yaml:"timeout"`
	ReapInterval time.Duration `yaml:"-"`
	ReapRaw      string        `yaml:"reap_interval"`
}

// BotConfig holds pipeline knobs
type BotConfig struct {
	RateLimit        int           `yaml:"rate_limit"`
	RateWindow       time.Duration `yaml:"-"`
	RateWindowRaw    string        `yaml:"rate_window"`
	FeedbackDelay    time.Duration `yaml:"-"`
	FeedbackDelayRaw string        `yaml:"feedback_delay"`

	DedupeTTL    time.Duration `yaml:"-"`
	DedupeTTLRaw string        `yaml:"dedupe_ttl"`
	DedupeCap    int           `yaml:"dedupe_cap"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.WhatsApp.BaseURL != "" && c.WhatsApp.Session == "" {
		return fmt.Errorf("whatsapp.session is required when whatsapp.base_url is set")
	}

	for i, p := range c.NLP.Providers {
		switch p.Type {
		case "keyword":
		case "http":
			if p.URL == "" {
				return fmt.Errorf("nlp.providers[%d].url is required for http providers", i)
			}
		default:
			return fmt.Errorf("nlp.providers[%d].type must be \"keyword\" or \"http\", got %q", i, p.Type)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.Redis.LockTTLRaw, &cfg.Redis.LockTTL, "redis.lock_ttl"},
		{cfg.Flow.AvgHandleTimeRaw, &cfg.Flow.AvgHandleTime, "flow.avg_handle_time"},
		{cfg.Session.TimeoutRaw, &cfg.Session.Timeout, "session.timeout"},
		{cfg.Session.ReapRaw, &cfg.Session.ReapInterval, "session.reap_interval"},
		{cfg.Bot.RateWindowRaw, &cfg.Bot.RateWindow, "bot.rate_window"},
		{cfg.Bot.FeedbackDelayRaw, &cfg.Bot.FeedbackDelay, "bot.feedback_delay"},
		{cfg.Bot.DedupeTTLRaw, &cfg.Bot.DedupeTTL, "bot.dedupe_ttl"},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	for i := range cfg.NLP.Providers {
		p := &cfg.NLP.Providers[i]
		if p.TimeoutRaw == "" {
			continue
		}
		d, err := time.ParseDuration(p.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing nlp.providers[%d].timeout %q: %w", i, p.TimeoutRaw, err)
		}
		p.Timeout = d
	}

	return nil
}
