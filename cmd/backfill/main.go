package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chart-feed/internal/binance/rest"
	"chart-feed/internal/config"
	"chart-feed/internal/logging"
	"chart-feed/internal/market"
	"chart-feed/internal/state/sqlite"
)

const (
	defaultRESTBaseURL = "https://api.binance.com"
	defaultRESTTimeout = 10 * time.Second
)

// backfill pulls one historical window from the exchange and stores it in
// the local sqlite database, so a feed restarted while the exchange is
// unreachable still has data to seed from.
func main() {
	configPath := flag.String("config", "", "optional config path for REST and state settings")
	symbol := flag.String("symbol", "", "symbol to backfill, e.g. BTCUSDT")
	interval := flag.String("interval", "1m", "candle interval")
	limit := flag.Int("limit", 1000, "number of candles to fetch")
	flag.Parse()

	if *symbol == "" {
		fatal(fmt.Errorf("-symbol is required"))
	}
	iv, err := market.ParseInterval(*interval)
	if err != nil {
		fatal(err)
	}

	logCfg := config.LoggingConfig{Level: "info"}
	baseURL := defaultRESTBaseURL
	timeout := defaultRESTTimeout
	statePath := "data/chart-feed.db"
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		logCfg = cfg.Log
		baseURL = cfg.REST.BaseURL
		timeout = cfg.REST.Timeout
		statePath = cfg.State.SQLitePath
	}

	log := logging.New(logCfg)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	client := rest.New(baseURL, timeout, log)
	candles, err := client.Klines(ctx, *symbol, iv, *limit)
	if err != nil {
		fatal(err)
	}
	if len(candles) == 0 {
		fatal(fmt.Errorf("no candles returned for %s %s", *symbol, iv))
	}

	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		fatal(err)
	}
	store, err := sqlite.New(statePath)
	if err != nil {
		fatal(err)
	}
	defer store.Close()
	if err := store.UpsertCandles(ctx, *symbol, string(iv), candles); err != nil {
		fatal(err)
	}

	first := candles[0]
	last := candles[len(candles)-1]
	fmt.Printf("backfilled %d candles for %s %s: %s .. %s (last close %.8f)\n",
		len(candles), *symbol, iv,
		time.Unix(first.Time, 0).UTC().Format(time.RFC3339),
		time.Unix(last.Time, 0).UTC().Format(time.RFC3339),
		last.Close,
	)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
