package surface

import (
	"testing"

	"chart-feed/internal/market"
)

type captureSink struct {
	frames []Frame
}

func (c *captureSink) Publish(v any) {
	if f, ok := v.(Frame); ok {
		c.frames = append(c.frames, f)
	}
}

func TestBroadcastRequiresSink(t *testing.T) {
	if _, err := NewBroadcast("BTCUSDT", market.Interval1m, nil); err == nil {
		t.Fatalf("expected error for nil sink")
	}
}

func TestBroadcastPublishesFrames(t *testing.T) {
	sink := &captureSink{}
	b, err := NewBroadcast("BTCUSDT", market.Interval1m, sink)
	if err != nil {
		t.Fatalf("new broadcast: %v", err)
	}
	b.SetData([]market.Candle{{Time: 60}, {Time: 120}})
	b.Update(market.Candle{Time: 180, Close: 5})
	if len(sink.frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(sink.frames))
	}
	if sink.frames[0].Type != "history" || len(sink.frames[0].Candles) != 2 {
		t.Fatalf("unexpected history frame: %+v", sink.frames[0])
	}
	if sink.frames[1].Type != "candle" || sink.frames[1].Candle == nil || sink.frames[1].Candle.Time != 180 {
		t.Fatalf("unexpected candle frame: %+v", sink.frames[1])
	}
}

func TestBroadcastResizeIsIdempotent(t *testing.T) {
	sink := &captureSink{}
	b, _ := NewBroadcast("BTCUSDT", market.Interval1m, sink)
	b.Resize(800)
	b.Resize(800)
	b.Resize(0)
	if len(sink.frames) != 1 {
		t.Fatalf("expected a single resize frame, got %d", len(sink.frames))
	}
}

func TestBroadcastDisposeTwiceAndSilences(t *testing.T) {
	sink := &captureSink{}
	b, _ := NewBroadcast("BTCUSDT", market.Interval1m, sink)
	b.Dispose()
	b.Dispose()
	b.SetData([]market.Candle{{Time: 60}})
	b.Update(market.Candle{Time: 60})
	b.Resize(640)
	if len(sink.frames) != 0 {
		t.Fatalf("expected no frames after dispose, got %d", len(sink.frames))
	}
}
