package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chart-feed/internal/market"

	"go.uber.org/zap"
)

func TestKlinesParsesPositionalRows(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[
			[1700000040000,"100.0","101.0","99.0","100.5","12.5",1700000099999,"0",10,"0","0","0"],
			[1700000100000,"100.5","102.0","100.0","101.0","8.0",1700000159999,"0",7,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, zap.NewNop())
	candles, err := client.Klines(context.Background(), "BTCUSDT", market.Interval1m, 100)
	if err != nil {
		t.Fatalf("klines: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Time != 1700000040 {
		t.Fatalf("expected ms timestamp truncated to seconds, got %d", candles[0].Time)
	}
	if candles[1].Close != 101.0 || candles[1].Volume != 8.0 {
		t.Fatalf("unexpected second candle %+v", candles[1])
	}
	for _, part := range []string{"symbol=BTCUSDT", "interval=1m", "limit=100"} {
		if !containsParam(gotQuery, part) {
			t.Fatalf("expected query to contain %s, got %s", part, gotQuery)
		}
	}
}

func containsParam(query, param string) bool {
	for i := 0; i+len(param) <= len(query); i++ {
		if query[i:i+len(param)] == param {
			return true
		}
	}
	return false
}

func TestKlinesCapsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1000" {
			t.Errorf("expected limit capped to 1000, got %s", r.URL.Query().Get("limit"))
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, zap.NewNop())
	if _, err := client.Klines(context.Background(), "BTCUSDT", market.Interval1m, 50000); err != nil {
		t.Fatalf("klines: %v", err)
	}
}

func TestKlinesSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, zap.NewNop())
	if _, err := client.Klines(context.Background(), "NOPE", market.Interval1m, 10); err == nil {
		t.Fatal("expected error for http 400")
	}
}

func TestKlinesRequiresSymbol(t *testing.T) {
	client := New("http://unused", time.Second, zap.NewNop())
	if _, err := client.Klines(context.Background(), "", market.Interval1m, 10); err == nil {
		t.Fatal("expected error for empty symbol")
	}
}
