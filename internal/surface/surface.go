// Package surface is the render boundary of a feed. A Surface receives the
// reconciled candle stream; it does not own data and never blocks the
// caller. When no renderable surface is available the feed degrades to the
// Nop implementation and keeps collecting data.
package surface

import "chart-feed/internal/market"

type Surface interface {
	// SetData bulk-replaces the rendered series, used once after the
	// historical load.
	SetData(candles []market.Candle)
	// Update upserts a single candle by time, used for every live tick.
	Update(c market.Candle)
	// Resize is idempotent and a no-op after Dispose.
	Resize(width int)
	// Dispose releases the surface. Safe to call more than once.
	Dispose()
}

// Nop is the data-only fallback surface.
type Nop struct{}

func (Nop) SetData([]market.Candle) {}
func (Nop) Update(market.Candle)    {}
func (Nop) Resize(int)              {}
func (Nop) Dispose()                {}
