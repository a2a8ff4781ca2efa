package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chart-feed/internal/market"
	"chart-feed/internal/metrics"
	"chart-feed/internal/surface"

	"go.uber.org/zap"
)

type Config struct {
	Symbol   string
	Interval market.Interval
	// Delay before the first reconnect attempt; each further attempt adds
	// RetryStep on top. After MaxRetries failures the manager stays
	// Disconnected until Retry is called.
	RetryDelay time.Duration
	RetryStep  time.Duration
	MaxRetries int
}

// Manager owns one feed: the candle series, derived stats, and at most one
// upstream connection at a time. All mutation happens under one mutex; a
// generation counter turns callbacks from superseded connections, late
// retry timers and post-teardown events into no-ops.
type Manager struct {
	cfg     Config
	dialer  Dialer
	surface surface.Surface
	log     *zap.Logger
	metrics *metrics.Metrics

	onCandle func(market.Candle)
	onState  func(State)

	mu             sync.Mutex
	ctx            context.Context
	state          State
	retries        int
	lastErr        error
	retryTimer     *time.Timer
	tornDown       bool
	gen            uint64
	conn           Conn
	series         *market.Series
	stats          *market.Stats
	historyStarted bool
	historyDone    bool
	historyFailed  bool
	terminal       bool
}

func NewManager(cfg Config, dialer Dialer, surf surface.Surface, log *zap.Logger, m *metrics.Metrics) *Manager {
	if surf == nil {
		surf = surface.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &Manager{
		cfg:     cfg,
		dialer:  dialer,
		surface: surf,
		log:     log,
		metrics: m,
		state:   StateIdle,
		series:  market.NewSeries(),
		stats:   market.NewStats(),
	}
}

// SetCandleHook registers a callback invoked for every accepted live
// candle, after the series and stats have been updated. Must be set before
// Start.
func (m *Manager) SetCandleHook(fn func(market.Candle)) {
	m.onCandle = fn
}

// SetStateHook registers a callback invoked on Live, Reconnecting and
// Disconnected transitions. Must be set before Start.
func (m *Manager) SetStateHook(fn func(State)) {
	m.onState = fn
}

// BeginHistoryLoad marks the historical fetch as in flight so the status
// label reflects it.
func (m *Manager) BeginHistoryLoad() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyStarted = true
}

// Warm preloads locally stored candles so the series has data while the
// fresh historical window is still in flight. It does not complete the
// history load: the status keeps reporting the load and the percent-change
// baseline stays uncaptured until SeedHistory or the first live tick.
func (m *Manager) Warm(candles []market.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tornDown || m.historyDone || len(candles) == 0 {
		return
	}
	m.series.SetAll(candles)
	for _, c := range candles {
		m.stats.Observe(c)
	}
	m.stats.SetCount(m.series.Len())
	m.surface.SetData(m.series.Candles())
	m.log.Info("series warmed from stored candles",
		zap.String("symbol", m.cfg.Symbol),
		zap.Int("candles", len(candles)),
	)
}

// SeedHistory bulk-loads the historical window: the series is replaced,
// stats extremes are folded in, and the percent-change baseline is captured
// from the last historical close. No-op after teardown.
func (m *Manager) SeedHistory(candles []market.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tornDown {
		return
	}
	m.historyStarted = true
	m.historyDone = true
	m.series.SetAll(candles)
	for _, c := range candles {
		m.stats.Observe(c)
	}
	m.stats.SetCount(m.series.Len())
	if last, ok := m.series.Last(); ok {
		m.stats.SeedFirstPrice(last.Close)
	}
	m.surface.SetData(m.series.Candles())
	m.log.Info("historical data loaded",
		zap.String("symbol", m.cfg.Symbol),
		zap.String("interval", string(m.cfg.Interval)),
		zap.Int("candles", len(candles)),
	)
}

// HistoryFailed records a failed historical load. The live connection is
// still attempted; history and live data are independent value sources.
func (m *Manager) HistoryFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyStarted = true
	m.historyDone = true
	m.historyFailed = true
	m.metrics.HistoryLoadsFailed.Inc()
	m.log.Warn("historical load failed",
		zap.String("symbol", m.cfg.Symbol),
		zap.Error(err),
	)
}

// Start begins the connection lifecycle. It may be called once; the given
// context bounds every dial and read until Close.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.tornDown || m.state != StateIdle {
		m.mu.Unlock()
		return
	}
	m.ctx = ctx
	m.state = StateConnecting
	gen := m.gen
	m.mu.Unlock()
	go m.connect(ctx, gen)
}

// Retry re-enters Connecting after automatic reconnection was exhausted or
// the connection was closed. It is the only way out of Disconnected.
func (m *Manager) Retry() error {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return errors.New("feed is torn down")
	}
	if m.state != StateDisconnected {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("retry not available in state %s", state)
	}
	m.retries = 0
	m.lastErr = nil
	m.terminal = false
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	go m.connect(ctx, gen)
	return nil
}

// Close executes the teardown contract: mark torn down so in-flight
// callbacks become no-ops, cancel any pending retry timer, detach handlers
// by bumping the generation, then close the connection. Safe to call more
// than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.tornDown {
		m.mu.Unlock()
		return
	}
	m.tornDown = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.gen++
	conn := m.conn
	m.conn = nil
	if conn != nil {
		m.metrics.FeedsLive.Dec()
	}
	m.state = StateDisconnected
	m.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	m.surface.Dispose()
}

func (m *Manager) connect(ctx context.Context, gen uint64) {
	conn, err := m.dialer.Dial(ctx, m.cfg.Symbol, m.cfg.Interval)
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.scheduleRetryLocked(gen, err)
		m.mu.Unlock()
		return
	}
	m.conn = conn
	m.state = StateLive
	wasRetrying := m.retries > 0
	m.retries = 0
	m.lastErr = nil
	m.metrics.FeedsLive.Inc()
	m.mu.Unlock()
	m.log.Info("live feed connected",
		zap.String("symbol", m.cfg.Symbol),
		zap.String("interval", string(m.cfg.Interval)),
		zap.Bool("recovered", wasRetrying),
	)
	m.notify(StateLive)
	go m.readLoop(ctx, conn, gen)
}

func (m *Manager) readLoop(ctx context.Context, conn Conn, gen uint64) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			m.handleReadError(gen, err)
			return
		}
		m.handleMessage(gen, data)
	}
}

func (m *Manager) handleMessage(gen uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stale(gen) {
		return
	}
	candle, ok := market.NormalizeTick(data, m.cfg.Interval)
	if !ok {
		// Heartbeats and subscription acks are expected; not an error.
		m.metrics.MessagesIgnored.Inc()
		return
	}
	m.series.Upsert(candle)
	m.stats.Apply(candle, m.series.Len(), time.Now())
	m.surface.Update(candle)
	m.metrics.TicksApplied.Inc()
	if m.onCandle != nil {
		m.onCandle(candle)
	}
}

func (m *Manager) handleReadError(gen uint64, err error) {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.metrics.FeedsLive.Dec()
	if errors.Is(err, ErrNormalClosure) || errors.Is(err, context.Canceled) {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.log.Info("live feed closed", zap.String("symbol", m.cfg.Symbol))
		m.notify(StateDisconnected)
		return
	}
	m.scheduleRetryLocked(gen, err)
	m.mu.Unlock()
}

// scheduleRetryLocked is called with the mutex held for an abnormal close
// or transport error. It either arms the retry timer or, once the retry
// budget is spent, parks the manager in terminal Disconnected.
func (m *Manager) scheduleRetryLocked(gen uint64, err error) {
	m.lastErr = err
	if m.retries >= m.cfg.MaxRetries {
		m.state = StateDisconnected
		m.terminal = true
		m.log.Warn("reconnect attempts exhausted",
			zap.String("symbol", m.cfg.Symbol),
			zap.Int("retries", m.retries),
			zap.Error(err),
		)
		go m.notify(StateDisconnected)
		return
	}
	delay := m.cfg.RetryDelay + time.Duration(m.retries)*m.cfg.RetryStep
	m.retries++
	m.state = StateReconnecting
	m.metrics.Reconnects.Inc()
	m.log.Warn("live feed dropped, scheduling reconnect",
		zap.String("symbol", m.cfg.Symbol),
		zap.Int("attempt", m.retries),
		zap.Duration("delay", delay),
		zap.Error(err),
	)
	go m.notify(StateReconnecting)
	m.retryTimer = time.AfterFunc(delay, func() {
		m.retryFire(gen)
	})
}

func (m *Manager) retryFire(gen uint64) {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.state = StateConnecting
	ctx := m.ctx
	m.mu.Unlock()
	m.connect(ctx, gen)
}

func (m *Manager) stale(gen uint64) bool {
	return m.tornDown || gen != m.gen
}

func (m *Manager) notify(s State) {
	if m.onState != nil {
		m.onState(s)
	}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		Symbol:     m.cfg.Symbol,
		Interval:   string(m.cfg.Interval),
		State:      m.state,
		Retries:    m.retries,
		MaxRetries: m.cfg.MaxRetries,
		Label:      label(m.state, m.retries, m.cfg.MaxRetries, m.historyStarted, m.historyDone, m.terminal),
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func (m *Manager) Stats() market.StatsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats.Snapshot()
}

func (m *Manager) Candles(limit int) []market.Candle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.series.Tail(limit)
}
