package market

import "sort"

// Series is an ordered-by-time candle set for one (symbol, interval) pair.
// Exactly one candle exists per Time value; a later upsert for the same
// Time replaces the candle in place. A Series is owned by a single feed
// instance and is not safe for concurrent use; the owner serializes access.
type Series struct {
	candles []Candle
	index   map[int64]int
}

func NewSeries() *Series {
	return &Series{index: make(map[int64]int)}
}

// Upsert inserts the candle or replaces the existing one at the same Time.
// Returns true when a new time bucket was created.
func (s *Series) Upsert(c Candle) bool {
	if i, ok := s.index[c.Time]; ok {
		s.candles[i] = c
		return false
	}
	pos := sort.Search(len(s.candles), func(i int) bool {
		return s.candles[i].Time > c.Time
	})
	if pos == len(s.candles) {
		s.candles = append(s.candles, c)
	} else {
		s.candles = append(s.candles, Candle{})
		copy(s.candles[pos+1:], s.candles[pos:])
		s.candles[pos] = c
		for i := pos + 1; i < len(s.candles); i++ {
			s.index[s.candles[i].Time] = i
		}
	}
	s.index[c.Time] = pos
	return true
}

// SetAll clears the series and loads the given candles in order.
func (s *Series) SetAll(candles []Candle) {
	s.Clear()
	for _, c := range candles {
		s.Upsert(c)
	}
}

func (s *Series) Len() int {
	return len(s.candles)
}

func (s *Series) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

// Candles returns the series in ascending time order. The returned slice
// is a copy; mutating it does not affect the series.
func (s *Series) Candles() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Tail returns up to n of the most recent candles in ascending order.
func (s *Series) Tail(n int) []Candle {
	if n <= 0 || n >= len(s.candles) {
		return s.Candles()
	}
	out := make([]Candle, n)
	copy(out, s.candles[len(s.candles)-n:])
	return out
}

// Clear drops the whole set. Used when the (symbol, interval) key changes.
func (s *Series) Clear() {
	s.candles = s.candles[:0]
	s.index = make(map[int64]int)
}
