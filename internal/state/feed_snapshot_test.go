package state

import (
	"context"
	"testing"

	"chart-feed/internal/market"
)

type memStore struct {
	kv map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{kv: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.kv[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.kv[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.kv, key)
	return nil
}

func (m *memStore) UpsertCandle(context.Context, string, string, market.Candle) error {
	return nil
}

func (m *memStore) UpsertCandles(context.Context, string, string, []market.Candle) error {
	return nil
}

func (m *memStore) Candles(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func TestFeedSnapshotRoundTrip(t *testing.T) {
	store := newMemStore()
	snap := FeedSnapshot{
		Symbol:      "BTCUSDT",
		Interval:    "1m",
		LastPrice:   101.5,
		High:        105,
		Low:         99,
		CandleCount: 42,
		UpdatedAtMS: 1700000000000,
	}
	if err := SaveFeedSnapshot(context.Background(), store, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := LoadFeedSnapshot(context.Background(), store, "BTCUSDT", "1m")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != snap {
		t.Fatalf("snapshot mismatch: got %+v want %+v", got, snap)
	}
}

func TestFeedSnapshotMissing(t *testing.T) {
	if _, ok, err := LoadFeedSnapshot(context.Background(), newMemStore(), "ETHUSDT", "1h"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestFeedSnapshotNilStore(t *testing.T) {
	if err := SaveFeedSnapshot(context.Background(), nil, FeedSnapshot{}); err != nil {
		t.Fatalf("expected nil store save to be a no-op, got %v", err)
	}
	if _, ok, err := LoadFeedSnapshot(context.Background(), nil, "BTCUSDT", "1m"); ok || err != nil {
		t.Fatalf("expected nil store load to miss cleanly")
	}
}
