package surface

import (
	"errors"
	"sync"

	"chart-feed/internal/market"
)

// Sink receives render frames. The downstream websocket hub implements it.
type Sink interface {
	Publish(v any)
}

// Frame is one render message pushed to downstream chart clients.
type Frame struct {
	Type     string          `json:"type"`
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Width    int             `json:"width,omitempty"`
	Candles  []market.Candle `json:"candles,omitempty"`
	Candle   *market.Candle  `json:"candle,omitempty"`
}

// Broadcast renders a feed by publishing frames into a sink. It is the
// service-side stand-in for a chart widget: history frames replace the
// series, candle frames upsert one bucket.
type Broadcast struct {
	symbol   string
	interval market.Interval
	sink     Sink

	mu       sync.Mutex
	width    int
	disposed bool
}

// NewBroadcast fails when no sink is available; callers fall back to Nop
// so data collection continues without a visual surface.
func NewBroadcast(symbol string, interval market.Interval, sink Sink) (*Broadcast, error) {
	if sink == nil {
		return nil, errors.New("no frame sink available")
	}
	return &Broadcast{symbol: symbol, interval: interval, sink: sink}, nil
}

func (b *Broadcast) SetData(candles []market.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return
	}
	b.sink.Publish(Frame{
		Type:     "history",
		Symbol:   b.symbol,
		Interval: string(b.interval),
		Width:    b.width,
		Candles:  candles,
	})
}

func (b *Broadcast) Update(c market.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return
	}
	b.sink.Publish(Frame{
		Type:     "candle",
		Symbol:   b.symbol,
		Interval: string(b.interval),
		Candle:   &c,
	})
}

func (b *Broadcast) Resize(width int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed || width <= 0 || width == b.width {
		return
	}
	b.width = width
	b.sink.Publish(Frame{
		Type:     "resize",
		Symbol:   b.symbol,
		Interval: string(b.interval),
		Width:    width,
	})
}

func (b *Broadcast) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposed = true
}
