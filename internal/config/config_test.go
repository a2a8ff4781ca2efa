package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
feeds:
  - symbol: BTCUSDT
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.REST.BaseURL != "https://api.binance.com" {
		t.Fatalf("expected default rest base url, got %s", cfg.REST.BaseURL)
	}
	if cfg.WS.URL != "wss://stream.binance.com:9443/ws" {
		t.Fatalf("expected default ws url, got %s", cfg.WS.URL)
	}
	if cfg.Stream.RetryDelay != 3*time.Second {
		t.Fatalf("expected default retry delay, got %s", cfg.Stream.RetryDelay)
	}
	if cfg.Stream.MaxRetries != 5 {
		t.Fatalf("expected default max retries, got %d", cfg.Stream.MaxRetries)
	}
	if cfg.Feeds[0].Interval != "1m" || cfg.Feeds[0].HistoryLimit != 100 {
		t.Fatalf("expected feed defaults, got %+v", cfg.Feeds[0])
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
stream:
  retry_delay: 1s
  retry_step: 500ms
  max_retries: 3
server:
  enabled: true
  address: ":9090"
feeds:
  - symbol: ETHUSDT
    interval: 5m
    history_limit: 500
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %s", cfg.Log.Level)
	}
	if cfg.Stream.RetryStep != 500*time.Millisecond {
		t.Fatalf("expected 500ms retry step, got %s", cfg.Stream.RetryStep)
	}
	if !cfg.Server.Enabled || cfg.Server.Address != ":9090" {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Feeds[0].HistoryLimit != 500 {
		t.Fatalf("expected history limit 500, got %d", cfg.Feeds[0].HistoryLimit)
	}
}

func TestLoadRejectsMissingFeeds(t *testing.T) {
	path := writeConfig(t, `
log:
  level: info
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for config without feeds")
	}
}

func TestLoadRejectsDuplicateFeeds(t *testing.T) {
	path := writeConfig(t, `
feeds:
  - symbol: BTCUSDT
    interval: 1m
  - symbol: BTCUSDT
    interval: 1m
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate feed")
	}
}

func TestLoadRejectsEnabledTimescaleWithoutDSN(t *testing.T) {
	path := writeConfig(t, `
timescale:
  enabled: true
feeds:
  - symbol: BTCUSDT
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for enabled timescale without dsn")
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "tok-from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "chat-from-env")
	path := writeConfig(t, `
telegram:
  enabled: true
  token: tok-from-file
  chat_id: chat-from-file
feeds:
  - symbol: BTCUSDT
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "tok-from-env" || cfg.Telegram.ChatID != "chat-from-env" {
		t.Fatalf("expected env overrides, got %+v", cfg.Telegram)
	}
}
