package market

import (
	"fmt"
	"time"
)

// Candle is one OHLCV bucket. Time is the bucket start in unix seconds;
// the historical and live paths must agree on this unit so that updates
// for the same bucket collide instead of duplicating.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

var intervalWidths = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
}

func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := intervalWidths[iv]; !ok {
		return "", fmt.Errorf("unsupported interval %q", s)
	}
	return iv, nil
}

func (iv Interval) Duration() time.Duration {
	return intervalWidths[iv]
}

// BucketStart truncates a raw timestamp to the start of the candle bucket,
// in unix seconds. Millisecond inputs are detected by magnitude and divided
// down first.
func (iv Interval) BucketStart(ts int64) int64 {
	sec := truncateToSeconds(ts)
	width := int64(iv.Duration() / time.Second)
	if width <= 0 {
		return sec
	}
	return sec - sec%width
}

// Timestamps at or above this magnitude are milliseconds. Unix seconds will
// not reach 1e12 for thousands of years; unix millis passed it in 2001.
const msThreshold = int64(1e12)

func truncateToSeconds(ts int64) int64 {
	if ts >= msThreshold {
		return ts / 1000
	}
	return ts
}
