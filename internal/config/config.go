package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	REST      RESTConfig      `yaml:"rest"`
	WS        WSConfig        `yaml:"ws"`
	Stream    StreamConfig    `yaml:"stream"`
	Server    ServerConfig    `yaml:"server"`
	State     StateConfig     `yaml:"state"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Feeds     []FeedConfig    `yaml:"feeds"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	URL string `yaml:"url"`
}

type StreamConfig struct {
	RetryDelay time.Duration `yaml:"retry_delay"`
	RetryStep  time.Duration `yaml:"retry_step"`
	MaxRetries int           `yaml:"max_retries"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TimescaleConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DSN          string `yaml:"dsn"`
	Schema       string `yaml:"schema"`
	QueueSize    int    `yaml:"queue_size"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type FeedConfig struct {
	Symbol       string `yaml:"symbol"`
	Interval     string `yaml:"interval"`
	HistoryLimit int    `yaml:"history_limit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

// applyEnv lets secrets stay out of the yaml file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TIMESCALE_DSN"); v != "" {
		cfg.Timescale.DSN = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://api.binance.com"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = "wss://stream.binance.com:9443/ws"
	}
	if cfg.Stream.RetryDelay == 0 {
		cfg.Stream.RetryDelay = 3 * time.Second
	}
	if cfg.Stream.MaxRetries == 0 {
		cfg.Stream.MaxRetries = 5
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/chart-feed.db"
	}
	for i := range cfg.Feeds {
		if cfg.Feeds[i].Interval == "" {
			cfg.Feeds[i].Interval = "1m"
		}
		if cfg.Feeds[i].HistoryLimit == 0 {
			cfg.Feeds[i].HistoryLimit = 100
		}
	}
}

func validate(cfg *Config) error {
	if len(cfg.Feeds) == 0 {
		return errors.New("at least one feed is required")
	}
	seen := make(map[string]bool, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		if feed.Symbol == "" {
			return errors.New("feed symbol is required")
		}
		key := feed.Symbol + ":" + feed.Interval
		if seen[key] {
			return fmt.Errorf("duplicate feed %s", key)
		}
		seen[key] = true
		if feed.HistoryLimit < 0 {
			return fmt.Errorf("feed %s: history_limit must be >= 0", key)
		}
	}
	if cfg.Stream.MaxRetries < 0 {
		return errors.New("stream.max_retries must be >= 0")
	}
	if cfg.Stream.RetryDelay < 0 || cfg.Stream.RetryStep < 0 {
		return errors.New("stream retry delays must be >= 0")
	}
	if cfg.Timescale.Enabled && cfg.Timescale.DSN == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}
