package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chart-feed/internal/config"

	"go.uber.org/zap"
)

func TestSendDisabledIsNoop(t *testing.T) {
	tg := newTelegram(config.TelegramConfig{Enabled: false}, zap.NewNop(), "http://unused", nil)
	if err := tg.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("expected disabled send to be a no-op, got %v", err)
	}
}

func TestSendPostsMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cfg := config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}
	tg := newTelegram(cfg, zap.NewNop(), srv.URL, srv.Client())
	if err := tg.Send(context.Background(), "feed down: BTCUSDT 1m"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/bottok/sendMessage" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotBody["chat_id"] != "42" || gotBody["text"] != "feed down: BTCUSDT 1m" {
		t.Fatalf("unexpected body %v", gotBody)
	}
}

func TestSendSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	cfg := config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}
	tg := newTelegram(cfg, zap.NewNop(), srv.URL, srv.Client())
	err := tg.Send(context.Background(), "msg")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestSendSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := config.TelegramConfig{Enabled: true, Token: "tok", ChatID: "42"}
	tg := newTelegram(cfg, zap.NewNop(), srv.URL, srv.Client())
	err := tg.Send(context.Background(), "msg")
	if err == nil || !strings.Contains(err.Error(), "http 401") {
		t.Fatalf("expected http error, got %v", err)
	}
}

func TestFeedDownSwallowsFailure(t *testing.T) {
	cfg := config.TelegramConfig{Enabled: true, Token: "", ChatID: ""}
	tg := newTelegram(cfg, zap.NewNop(), "http://unused", nil)
	// Misconfigured alerts must never take the feed down with them.
	tg.FeedDown(context.Background(), "BTCUSDT", "1m", "connection error")
	tg.FeedLive(context.Background(), "BTCUSDT", "1m")
}
