// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configContent := `
server:
  http_addr: "0.0.0.0:8080"

whatsapp:
  base_url: "http://localhost:21465"
  session: "atende"
  token: "secret-token"
  operator_group: "120363000000000000@g.us"
  operator_numbers:
    - "5511900000001@c.us"

store:
  path: "./test.db"

redis:
  addr: "localhost:6379"
  queue_key: "human:queue"
  lock_ttl: "30s"

flow:
  company_name: "Loja Teste"
  city_allowed: "São Paulo"
  pix_key: "11999990000"
  avg_handle_time: "3m"
  online_stores:
    - "https://ml.example.com/loja"

nlp:
  providers:
    - type: keyword
    - type: http
      url: "http://localhost:5005/intent"
      timeout: "5s"

media:
  dir: "./uploads"
  max_bytes: 5242880

session:
  timeout: "30m"
  reap_interval: "5m"

bot:
  rate_limit: 20
  rate_window: "1m"
  feedback_delay: "5s"

logging:
  level: "debug"
  format: "json"
`
	cfg, err := Load(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.WhatsApp.Session != "atende" {
		t.Errorf("WhatsApp.Session = %q, want %q", cfg.WhatsApp.Session, "atende")
	}
	if len(cfg.WhatsApp.OperatorNumbers) != 1 {
		t.Errorf("len(WhatsApp.OperatorNumbers) = %d, want 1", len(cfg.WhatsApp.OperatorNumbers))
	}
	if cfg.Store.Path != "./test.db" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "./test.db")
	}
	if cfg.Redis.LockTTL != 30*time.Second {
		t.Errorf("Redis.LockTTL = %v, want 30s", cfg.Redis.LockTTL)
	}
	if cfg.Flow.AvgHandleTime != 3*time.Minute {
		t.Errorf("Flow.AvgHandleTime = %v, want 3m", cfg.Flow.AvgHandleTime)
	}
	if cfg.Session.Timeout != 30*time.Minute {
		t.Errorf("Session.Timeout = %v, want 30m", cfg.Session.Timeout)
	}
	if cfg.Session.ReapInterval != 5*time.Minute {
		t.Errorf("Session.ReapInterval = %v, want 5m", cfg.Session.ReapInterval)
	}
	if cfg.Bot.FeedbackDelay != 5*time.Second {
		t.Errorf("Bot.FeedbackDelay = %v, want 5s", cfg.Bot.FeedbackDelay)
	}
	if len(cfg.NLP.Providers) != 2 {
		t.Fatalf("len(NLP.Providers) = %d, want 2", len(cfg.NLP.Providers))
	}
	if cfg.NLP.Providers[1].Timeout != 5*time.Second {
		t.Errorf("NLP.Providers[1].Timeout = %v, want 5s", cfg.NLP.Providers[1].Timeout)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_WA_TOKEN", "token-from-env")

	configContent := `
server:
  http_addr: "0.0.0.0:8080"

whatsapp:
  base_url: "http://localhost:21465"
  session: "atende"
  token: "${TEST_WA_TOKEN}"
`
	cfg, err := Load(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WhatsApp.Token != "token-from-env" {
		t.Errorf("WhatsApp.Token = %q, want %q", cfg.WhatsApp.Token, "token-from-env")
	}
}

func TestLoad_MissingHTTPAddr(t *testing.T) {
	_, err := Load(writeConfig(t, `
store:
  path: "./test.db"
`))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "server.http_addr") {
		t.Errorf("error = %v, want mention of server.http_addr", err)
	}
}

func TestLoad_SessionWithoutBaseURLAllowed(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

session:
  timeout: "not-a-duration"
`))
	if err == nil {
		t.Fatal("expected duration parse error, got nil")
	}
	if !strings.Contains(err.Error(), "session.timeout") {
		t.Errorf("error = %v, want mention of session.timeout", err)
	}
}

func TestLoad_UnknownNLPProvider(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

nlp:
  providers:
    - type: "magic"
`))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "nlp.providers[0]") {
		t.Errorf("error = %v, want mention of nlp.providers[0]", err)
	}
}
