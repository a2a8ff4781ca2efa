package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chart-feed/internal/alerts"
	"chart-feed/internal/binance/rest"
	"chart-feed/internal/binance/ws"
	"chart-feed/internal/config"
	"chart-feed/internal/market"
	"chart-feed/internal/metrics"
	"chart-feed/internal/server"
	"chart-feed/internal/state"
	"chart-feed/internal/state/sqlite"
	"chart-feed/internal/stream"
	"chart-feed/internal/surface"
	"chart-feed/internal/timescale"

	"go.uber.org/zap"
)

// historyLoader is the slice of the REST client the app needs. Tests swap
// in a scripted loader.
type historyLoader interface {
	Klines(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error)
}

type persistRow struct {
	symbol   string
	interval string
	candle   market.Candle
}

type feed struct {
	spec    server.FeedSpec
	manager *stream.Manager
	surf    surface.Surface
	cancel  context.CancelFunc
	// downAlerted gates the recovery alert so it only follows a down alert.
	downAlerted bool
}

// App wires feeds to the store, the hub and the sinks, and implements the
// HTTP API's controller surface.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	store   state.Store
	loader  historyLoader
	dialer  stream.Dialer
	hub     *server.Hub
	server  *server.Server
	metrics *metrics.Metrics
	alerts  *alerts.Telegram
	tsdb    *timescale.Writer
	persist chan persistRow

	mu    sync.Mutex
	ctx   context.Context
	feeds map[string]*feed
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	tsdb, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		loader:  rest.New(cfg.REST.BaseURL, cfg.REST.Timeout, log),
		dialer:  ws.New(cfg.WS.URL, log),
		alerts:  alerts.NewTelegram(cfg.Telegram, log),
		tsdb:    tsdb,
		persist: make(chan persistRow, 512),
		feeds:   make(map[string]*feed),
	}
	if cfg.Server.Enabled {
		prom := metrics.NewPrometheus()
		a.metrics = prom.Metrics
		a.hub = server.NewHub(log, a.metrics)
		a.server = server.New(cfg.Server.Address, a.hub, a, prom.Handler(), log)
	} else {
		a.metrics = metrics.NewNoop()
	}
	return a, nil
}

// Run starts every configured feed and blocks until ctx is cancelled, then
// tears feeds down and persists their snapshots.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	if a.hub != nil {
		go a.hub.Run(ctx)
	}
	if a.server != nil {
		a.server.Start(ctx)
		a.log.Info("http api listening", zap.String("address", a.cfg.Server.Address))
	}
	a.tsdb.Start(ctx)
	go a.runPersister(ctx)

	for _, fc := range a.cfg.Feeds {
		spec := server.FeedSpec{Symbol: fc.Symbol, Interval: fc.Interval, HistoryLimit: fc.HistoryLimit}
		if err := a.StartFeed(spec); err != nil {
			a.shutdown()
			return err
		}
	}

	<-ctx.Done()
	a.shutdown()
	return ctx.Err()
}

func (a *App) shutdown() {
	a.mu.Lock()
	feeds := make([]*feed, 0, len(a.feeds))
	for key, f := range a.feeds {
		feeds = append(feeds, f)
		delete(a.feeds, key)
	}
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, f := range feeds {
		f.cancel()
		a.saveSnapshot(ctx, f)
		f.manager.Close()
	}
	_ = a.tsdb.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("state store close failed", zap.Error(err))
	}
}

func (a *App) saveSnapshot(ctx context.Context, f *feed) {
	stats := f.manager.Stats()
	snap := state.FeedSnapshot{
		Symbol:      f.spec.Symbol,
		Interval:    f.spec.Interval,
		LastPrice:   stats.CurrentPrice,
		High:        stats.High,
		Low:         stats.Low,
		CandleCount: stats.CandleCount,
		UpdatedAtMS: time.Now().UnixMilli(),
	}
	if err := state.SaveFeedSnapshot(ctx, a.store, snap); err != nil {
		a.log.Warn("feed snapshot save failed",
			zap.String("symbol", f.spec.Symbol),
			zap.Error(err),
		)
	}
}

func feedKey(symbol, interval string) string {
	return symbol + ":" + interval
}

// StartFeed builds a manager for the given feed and kicks off the
// historical load; the live connection starts once the load resolves,
// whether or not it succeeded.
func (a *App) StartFeed(spec server.FeedSpec) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startFeedLocked(spec)
}

func (a *App) startFeedLocked(spec server.FeedSpec) error {
	interval, err := market.ParseInterval(spec.Interval)
	if err != nil {
		return err
	}
	key := feedKey(spec.Symbol, spec.Interval)
	if _, exists := a.feeds[key]; exists {
		return fmt.Errorf("feed %s already running", key)
	}
	runCtx := a.ctx
	if runCtx == nil {
		runCtx = context.Background()
	}
	feedCtx, cancel := context.WithCancel(runCtx)

	var surf surface.Surface
	if a.hub != nil {
		surf, err = surface.NewBroadcast(spec.Symbol, interval, a.hub)
		if err != nil {
			surf = nil
		}
	}
	if surf == nil {
		// Data collection continues without a render surface.
		a.log.Warn("no render surface available, running data-only",
			zap.String("symbol", spec.Symbol),
		)
		surf = surface.Nop{}
	}

	mgr := stream.NewManager(stream.Config{
		Symbol:     spec.Symbol,
		Interval:   interval,
		RetryDelay: a.cfg.Stream.RetryDelay,
		RetryStep:  a.cfg.Stream.RetryStep,
		MaxRetries: a.cfg.Stream.MaxRetries,
	}, a.dialer, surf, a.log.With(zap.String("symbol", spec.Symbol), zap.String("interval", spec.Interval)), a.metrics)

	f := &feed{spec: spec, manager: mgr, surf: surf, cancel: cancel}
	mgr.SetCandleHook(func(c market.Candle) {
		a.tsdb.Enqueue(timescale.Row{Symbol: spec.Symbol, Interval: spec.Interval, Candle: c})
		select {
		case a.persist <- persistRow{symbol: spec.Symbol, interval: spec.Interval, candle: c}:
		default:
		}
	})
	mgr.SetStateHook(func(s stream.State) {
		a.onFeedState(key, f, s)
	})
	a.feeds[key] = f

	go a.loadHistory(feedCtx, mgr, spec, interval)
	return nil
}

// loadHistory restores the previous session, fetches the historical
// window, seeds the manager, then starts the live connection. Stored
// candles warm the series first so the feed has data while the REST
// request is in flight; the fresh window replaces them wholesale.
// Historical and live data are independent value sources, so a failed
// load still starts the stream. If the feed was cancelled while the
// request was in flight the response is discarded and the stream never
// starts.
func (a *App) loadHistory(ctx context.Context, mgr *stream.Manager, spec server.FeedSpec, interval market.Interval) {
	if snap, ok, err := state.LoadFeedSnapshot(ctx, a.store, spec.Symbol, spec.Interval); err != nil {
		a.log.Warn("feed snapshot load failed", zap.String("symbol", spec.Symbol), zap.Error(err))
	} else if ok {
		a.log.Info("resuming feed from saved session",
			zap.String("symbol", spec.Symbol),
			zap.String("interval", spec.Interval),
			zap.Float64("last_price", snap.LastPrice),
			zap.Int("candles", snap.CandleCount),
			zap.Int64("saved_at_ms", snap.UpdatedAtMS),
		)
	}

	stored, storeErr := a.store.Candles(ctx, spec.Symbol, spec.Interval, spec.HistoryLimit)
	if storeErr != nil {
		a.log.Warn("stored candle load failed", zap.String("symbol", spec.Symbol), zap.Error(storeErr))
	} else if len(stored) > 0 {
		mgr.Warm(stored)
	}

	mgr.BeginHistoryLoad()
	candles, err := a.loader.Klines(ctx, spec.Symbol, interval, spec.HistoryLimit)
	if ctx.Err() != nil {
		return
	}
	switch {
	case err != nil:
		if len(stored) > 0 {
			a.log.Warn("historical fetch failed, keeping stored candles",
				zap.String("symbol", spec.Symbol),
				zap.Int("candles", len(stored)),
				zap.Error(err),
			)
			mgr.SeedHistory(stored)
		} else {
			mgr.HistoryFailed(err)
		}
	default:
		mgr.SeedHistory(candles)
		persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.store.UpsertCandles(persistCtx, spec.Symbol, spec.Interval, candles); err != nil {
			a.log.Warn("historical persist failed", zap.String("symbol", spec.Symbol), zap.Error(err))
		}
		cancel()
	}
	mgr.Start(ctx)
}

func (a *App) onFeedState(key string, f *feed, s stream.State) {
	st := f.manager.Status()
	if a.hub != nil {
		a.hub.Publish(server.StatusFrame{Type: "status", Feed: key, Status: st})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	switch s {
	case stream.StateDisconnected:
		if st.LastError != "" {
			a.mu.Lock()
			f.downAlerted = true
			a.mu.Unlock()
			a.alerts.FeedDown(ctx, f.spec.Symbol, f.spec.Interval, st.LastError)
		}
	case stream.StateLive:
		a.mu.Lock()
		wasDown := f.downAlerted
		f.downAlerted = false
		a.mu.Unlock()
		if wasDown {
			a.alerts.FeedLive(ctx, f.spec.Symbol, f.spec.Interval)
		}
	}
}

// runPersister drains accepted live candles into the sqlite store off the
// tick path.
func (a *App) runPersister(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case row := <-a.persist:
			writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			if err := a.store.UpsertCandle(writeCtx, row.symbol, row.interval, row.candle); err != nil {
				a.log.Warn("candle persist failed", zap.String("symbol", row.symbol), zap.Error(err))
			}
			cancel()
		}
	}
}

// Statuses implements server.Controller.
func (a *App) Statuses() map[string]stream.Status {
	a.mu.Lock()
	feeds := make(map[string]*feed, len(a.feeds))
	for key, f := range a.feeds {
		feeds[key] = f
	}
	a.mu.Unlock()
	out := make(map[string]stream.Status, len(feeds))
	for key, f := range feeds {
		out[key] = f.manager.Status()
	}
	return out
}

func (a *App) lookup(symbol, interval string) (*feed, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.feeds[feedKey(symbol, interval)]
	return f, ok
}

// FeedStats implements server.Controller.
func (a *App) FeedStats(symbol, interval string) (market.StatsSnapshot, bool) {
	f, ok := a.lookup(symbol, interval)
	if !ok {
		return market.StatsSnapshot{}, false
	}
	return f.manager.Stats(), true
}

// FeedCandles implements server.Controller.
func (a *App) FeedCandles(symbol, interval string, limit int) ([]market.Candle, bool) {
	f, ok := a.lookup(symbol, interval)
	if !ok {
		return nil, false
	}
	return f.manager.Candles(limit), true
}

// RetryFeed implements server.Controller.
func (a *App) RetryFeed(symbol, interval string) error {
	f, ok := a.lookup(symbol, interval)
	if !ok {
		return server.ErrFeedNotFound
	}
	return f.manager.Retry()
}

// ResizeFeed implements server.Controller. Resizing a torn-down surface is
// a no-op inside the surface itself.
func (a *App) ResizeFeed(symbol, interval string, width int) error {
	f, ok := a.lookup(symbol, interval)
	if !ok {
		return server.ErrFeedNotFound
	}
	f.surf.Resize(width)
	return nil
}

// SwapFeed implements server.Controller. The old feed is torn down before
// the new one starts, so a historical response still in flight for the old
// key can never leak into the new series.
func (a *App) SwapFeed(from string, spec server.FeedSpec) error {
	a.mu.Lock()
	var old *feed
	if from != "" {
		f, ok := a.feeds[from]
		if !ok {
			a.mu.Unlock()
			return server.ErrFeedNotFound
		}
		old = f
		delete(a.feeds, from)
	}
	a.mu.Unlock()

	if old != nil {
		old.cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.saveSnapshot(ctx, old)
		cancel()
		old.manager.Close()
		if a.hub != nil {
			a.hub.ForgetFeed(old.spec.Symbol, old.spec.Interval)
		}
		a.log.Info("feed stopped",
			zap.String("symbol", old.spec.Symbol),
			zap.String("interval", old.spec.Interval),
		)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.startFeedLocked(spec); err != nil {
		return err
	}
	a.log.Info("feed started",
		zap.String("symbol", spec.Symbol),
		zap.String("interval", spec.Interval),
	)
	return nil
}
