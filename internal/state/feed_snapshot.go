package state

import (
	"context"

	"github.com/vmihailenco/msgpack/v5"
)

// FeedSnapshot records where a feed left off. It is informational only:
// derived stats are always rebuilt from the candle stream on the next run.
type FeedSnapshot struct {
	Symbol      string  `msgpack:"symbol"`
	Interval    string  `msgpack:"interval"`
	LastPrice   float64 `msgpack:"last_price"`
	High        float64 `msgpack:"high"`
	Low         float64 `msgpack:"low"`
	CandleCount int     `msgpack:"candle_count"`
	UpdatedAtMS int64   `msgpack:"updated_at_ms"`
}

func snapshotKey(symbol, interval string) string {
	return "feed:snapshot:" + symbol + ":" + interval
}

func LoadFeedSnapshot(ctx context.Context, store Store, symbol, interval string) (FeedSnapshot, bool, error) {
	if store == nil {
		return FeedSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, snapshotKey(symbol, interval))
	if err != nil || !ok {
		return FeedSnapshot{}, false, err
	}
	var snapshot FeedSnapshot
	if err := msgpack.Unmarshal(raw, &snapshot); err != nil {
		return FeedSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveFeedSnapshot(ctx context.Context, store Store, snapshot FeedSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := msgpack.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, snapshotKey(snapshot.Symbol, snapshot.Interval), payload)
}
