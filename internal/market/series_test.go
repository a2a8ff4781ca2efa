package market

import "testing"

func TestSeriesUpsertKeepsOneCandlePerTime(t *testing.T) {
	s := NewSeries()
	s.Upsert(Candle{Time: 60, Close: 1})
	s.Upsert(Candle{Time: 120, Close: 2})
	if !s.Upsert(Candle{Time: 180, Close: 3}) {
		t.Fatalf("expected new bucket for time 180")
	}
	if s.Upsert(Candle{Time: 120, Close: 9}) {
		t.Fatalf("expected replacement for time 120, got new bucket")
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 candles, got %d", s.Len())
	}
	candles := s.Candles()
	if candles[1].Time != 120 || candles[1].Close != 9 {
		t.Fatalf("expected last write to win at time 120, got %+v", candles[1])
	}
}

func TestSeriesUpsertOutOfOrderStaysSorted(t *testing.T) {
	s := NewSeries()
	for _, tm := range []int64{300, 60, 180, 120, 240} {
		s.Upsert(Candle{Time: tm, Close: float64(tm)})
	}
	candles := s.Candles()
	for i := 1; i < len(candles); i++ {
		if candles[i].Time <= candles[i-1].Time {
			t.Fatalf("series not strictly increasing at %d: %v", i, candles)
		}
	}
	// Replacement after a mid-series insert must still land on the right slot.
	s.Upsert(Candle{Time: 180, Close: 42})
	candles = s.Candles()
	if candles[2].Time != 180 || candles[2].Close != 42 {
		t.Fatalf("expected replacement at time 180, got %+v", candles[2])
	}
}

func TestSeriesLastAndTail(t *testing.T) {
	s := NewSeries()
	if _, ok := s.Last(); ok {
		t.Fatalf("expected no last candle on empty series")
	}
	for tm := int64(60); tm <= 300; tm += 60 {
		s.Upsert(Candle{Time: tm})
	}
	last, ok := s.Last()
	if !ok || last.Time != 300 {
		t.Fatalf("expected last time 300, got %+v", last)
	}
	tail := s.Tail(2)
	if len(tail) != 2 || tail[0].Time != 240 || tail[1].Time != 300 {
		t.Fatalf("unexpected tail: %v", tail)
	}
	if len(s.Tail(0)) != 5 {
		t.Fatalf("expected full series for non-positive n")
	}
}

func TestSeriesClear(t *testing.T) {
	s := NewSeries()
	s.Upsert(Candle{Time: 60})
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty series after clear, got %d", s.Len())
	}
	if !s.Upsert(Candle{Time: 60}) {
		t.Fatalf("expected time 60 to be a new bucket after clear")
	}
}
