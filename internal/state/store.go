package state

import (
	"context"

	"chart-feed/internal/market"
)

// Store persists small binary values and accepted candles across restarts.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	UpsertCandle(ctx context.Context, symbol, interval string, c market.Candle) error
	UpsertCandles(ctx context.Context, symbol, interval string, candles []market.Candle) error
	// Candles returns up to limit of the most recent stored candles in
	// ascending time order.
	Candles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)

	Close() error
}
