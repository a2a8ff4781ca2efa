package market

import (
	"math"
	"time"
)

// Stats carries the derived readouts shown next to a chart. They are
// rebuilt from the candle stream and never persisted. High and low are
// running extremes across every candle seen this session; they reset only
// when the (symbol, interval) key changes, via a fresh Stats.
type Stats struct {
	firstPrice float64
	hasFirst   bool

	current    float64
	high       float64
	low        float64
	volume     float64
	count      int
	lastUpdate time.Time
}

func NewStats() *Stats {
	return &Stats{low: math.Inf(1)}
}

// SeedFirstPrice captures the baseline for percent change. Only the first
// call takes effect: the last historical close when history loaded, or the
// first live close otherwise.
func (s *Stats) SeedFirstPrice(p float64) {
	if s.hasFirst || p <= 0 {
		return
	}
	s.firstPrice = p
	s.hasFirst = true
}

// Observe folds one accepted candle into the running extremes. It does not
// move the current price; use Apply for live ticks.
func (s *Stats) Observe(c Candle) {
	if c.High > s.high {
		s.high = c.High
	}
	if c.Low < s.low {
		s.low = c.Low
	}
}

// Apply records a live tick: extremes, current price, volume and the
// wall-clock processing time.
func (s *Stats) Apply(c Candle, count int, now time.Time) {
	s.Observe(c)
	s.SeedFirstPrice(c.Close)
	s.current = c.Close
	s.volume = c.Volume
	s.count = count
	s.lastUpdate = now
}

func (s *Stats) SetCount(n int) {
	s.count = n
}

type StatsSnapshot struct {
	CurrentPrice float64   `json:"current_price"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Volume       float64   `json:"volume"`
	ChangePct    float64   `json:"change_pct"`
	CandleCount  int       `json:"candle_count"`
	LastUpdate   time.Time `json:"last_update"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		CurrentPrice: s.current,
		High:         s.high,
		Volume:       s.volume,
		CandleCount:  s.count,
		LastUpdate:   s.lastUpdate,
	}
	if !math.IsInf(s.low, 1) {
		snap.Low = s.low
	}
	if s.hasFirst && s.current > 0 {
		snap.ChangePct = (s.current - s.firstPrice) / s.firstPrice * 100
	}
	return snap
}
