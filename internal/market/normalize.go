package market

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Historical sources deliver candles in one of three shapes: positional
// arrays [timeMs, o, h, l, c, v, ...], objects with named fields, or either
// of those nested under a wrapper key. NormalizeCandles detects the shape
// and returns canonical candles in strictly increasing time order with one
// entry per bucket (later payload entries win). An unrecognized shape
// yields nil, never a partial result.
func NormalizeCandles(payload any, iv Interval) []Candle {
	records, ok := candleRecords(payload)
	if !ok {
		return nil
	}
	byTime := make(map[int64]Candle, len(records))
	for _, rec := range records {
		c, ok := NormalizeRecord(rec, iv)
		if !ok {
			return nil
		}
		byTime[c.Time] = c
	}
	out := make([]Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

var wrapperKeys = []string{"data", "candles", "klines"}

func candleRecords(payload any) ([]any, bool) {
	if records, ok := toSlice(payload); ok {
		return records, true
	}
	wrapper, ok := toMap(payload)
	if !ok {
		return nil, false
	}
	for _, key := range wrapperKeys {
		if inner, present := wrapper[key]; present {
			return candleRecords(inner)
		}
	}
	return nil, false
}

// NormalizeRecord converts one raw record (positional array or named
// object) into a canonical Candle. Times are truncated to the bucket start
// of the interval in unix seconds, matching the live tick path.
func NormalizeRecord(rec any, iv Interval) (Candle, bool) {
	if row, ok := toSlice(rec); ok {
		return candleFromRow(row, iv)
	}
	if fields, ok := toMap(rec); ok {
		return candleFromFields(fields, iv)
	}
	return Candle{}, false
}

// Positional layout, Binance kline style:
// [0] open time ms, [1] open, [2] high, [3] low, [4] close, [5] volume.
func candleFromRow(row []any, iv Interval) (Candle, bool) {
	if len(row) < 5 {
		return Candle{}, false
	}
	ts, ok := int64FromAny(row[0])
	if !ok {
		return Candle{}, false
	}
	c := Candle{Time: iv.BucketStart(ts)}
	prices := []*float64{&c.Open, &c.High, &c.Low, &c.Close}
	for i, dst := range prices {
		v, ok := floatFromAny(row[i+1])
		if !ok {
			return Candle{}, false
		}
		*dst = v
	}
	if len(row) > 5 {
		if v, ok := floatFromAny(row[5]); ok {
			c.Volume = v
		}
	}
	return c, true
}

func candleFromFields(fields map[string]any, iv Interval) (Candle, bool) {
	ts, ok := int64FromMap(fields, "time", "t", "openTime", "open_time", "timestamp")
	if !ok {
		return Candle{}, false
	}
	open, okO := floatFromMap(fields, "open", "o")
	high, okH := floatFromMap(fields, "high", "h")
	low, okL := floatFromMap(fields, "low", "l")
	closePx, okC := floatFromMap(fields, "close", "c")
	if !okO || !okH || !okL || !okC {
		return Candle{}, false
	}
	c := Candle{
		Time:  iv.BucketStart(ts),
		Open:  open,
		High:  high,
		Low:   low,
		Close: closePx,
	}
	if v, ok := floatFromMap(fields, "volume", "v", "vol"); ok {
		c.Volume = v
	}
	return c, true
}

// NormalizeTick extracts the candle from one live stream message. Messages
// without a recognizable candle payload (heartbeats, subscription acks)
// return false; that is expected traffic, not an error.
func NormalizeTick(raw []byte, iv Interval) (Candle, bool) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Candle{}, false
	}
	if data, ok := toMap(payload["data"]); ok {
		payload = data
	}
	for _, key := range []string{"k", "kline", "candle"} {
		if nested, ok := toMap(payload[key]); ok {
			return candleFromFields(nested, iv)
		}
	}
	return candleFromFields(payload, iv)
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func floatFromMap(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if f, ok := floatFromAny(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func int64FromMap(m map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if n, ok := int64FromAny(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func floatFromAny(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func int64FromAny(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	case json.Number:
		n, err := val.Int64()
		if err == nil {
			return n, true
		}
		f, ferr := val.Float64()
		return int64(f), ferr == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
