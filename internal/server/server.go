package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"chart-feed/internal/market"
	"chart-feed/internal/stream"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FeedSpec describes a feed to run.
type FeedSpec struct {
	Symbol       string `json:"symbol"`
	Interval     string `json:"interval"`
	HistoryLimit int    `json:"history_limit"`
}

// ErrFeedNotFound is returned by controllers when a symbol/interval pair
// does not map to a running feed.
var ErrFeedNotFound = errors.New("feed not found")

// Controller is the application surface the HTTP API drives.
type Controller interface {
	Statuses() map[string]stream.Status
	FeedStats(symbol, interval string) (market.StatsSnapshot, bool)
	FeedCandles(symbol, interval string, limit int) ([]market.Candle, bool)
	RetryFeed(symbol, interval string) error
	ResizeFeed(symbol, interval string, width int) error
	SwapFeed(from string, spec FeedSpec) error
}

type Server struct {
	http *http.Server
	hub  *Hub
	ctrl Controller
	log  *zap.Logger
}

func New(addr string, hub *Hub, ctrl Controller, metricsHandler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{hub: hub, ctrl: ctrl, log: log}

	api := engine.Group("/api/v1")
	api.GET("/status", s.handleStatus)
	api.GET("/stats", s.handleStats)
	api.GET("/candles", s.handleCandles)
	api.POST("/retry", s.handleRetry)
	api.POST("/resize", s.handleResize)
	api.PUT("/feed", s.handleSwapFeed)

	engine.GET("/ws", func(c *gin.Context) {
		hub.serveWS(c.Writer, c.Request)
	})
	if metricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(metricsHandler))
	}
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.http = &http.Server{Addr: addr, Handler: engine}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Statuses())
}

func feedKeyParams(c *gin.Context) (string, string) {
	return c.Query("symbol"), c.DefaultQuery("interval", "1m")
}

func (s *Server) handleStats(c *gin.Context) {
	symbol, interval := feedKeyParams(c)
	stats, ok := s.ctrl.FeedStats(symbol, interval)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrFeedNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleCandles(c *gin.Context) {
	symbol, interval := feedKeyParams(c)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	candles, ok := s.ctrl.FeedCandles(symbol, interval, limit)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrFeedNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": interval,
		"candles":  candles,
	})
}

func (s *Server) handleRetry(c *gin.Context) {
	var req struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Interval == "" {
		req.Interval = "1m"
	}
	if err := s.ctrl.RetryFeed(req.Symbol, req.Interval); err != nil {
		status := http.StatusConflict
		if errors.Is(err, ErrFeedNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "retrying"})
}

func (s *Server) handleResize(c *gin.Context) {
	var req struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
		Width    int    `json:"width"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Interval == "" {
		req.Interval = "1m"
	}
	if req.Width <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width must be > 0"})
		return
	}
	if err := s.ctrl.ResizeFeed(req.Symbol, req.Interval, req.Width); err != nil {
		status := http.StatusConflict
		if errors.Is(err, ErrFeedNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resized"})
}

func (s *Server) handleSwapFeed(c *gin.Context) {
	var req struct {
		From string `json:"from"`
		FeedSpec
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	if req.Interval == "" {
		req.Interval = "1m"
	}
	if err := s.ctrl.SwapFeed(req.From, req.FeedSpec); err != nil {
		status := http.StatusConflict
		if errors.Is(err, ErrFeedNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "feed updated"})
}
