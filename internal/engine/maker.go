package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hedge-maker-go/infrastructure/alert"
	"hedge-maker-go/infrastructure/logger"
	"hedge-maker-go/internal/lock"
	"hedge-maker-go/internal/store"
	"hedge-maker-go/market"
)

// EngineState 引擎状态
type EngineState int

const (
	// StateIdle 空闲状态
	StateIdle EngineState = iota
	// StateRunning 运行状态
	StateRunning
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config 引擎配置
type Config struct {
	QuoteInterval           time.Duration // 挂单巡检周期
	PositionRefreshInterval time.Duration // 仓位刷新周期
	RiskStatsInterval       time.Duration // 保证金与盈亏拉取周期
	StaleInterval           time.Duration // theo 失效阈值
	ShutdownAttempts        int           // 停止时撤单重试次数
	BackoffBase             time.Duration // 行情循环重启退避
	BackoffMax              time.Duration
	EventBuffer             int
}

// Components 引擎依赖组件
type Components struct {
	Store       *store.Store
	Coordinator *lock.Coordinator
	Feed        PriceFeed
	Primary     PrimaryVenue
	Hedge       HedgeVenue
	Logger      *logger.Logger
	Metrics     Metrics        // 可选
	Alerts      *alert.Manager // 可选
}

// Maker 编排行情、报价、仓位刷新与对冲。
// 任何会导致下单的复合动作都经过 Coordinator：行情与事件触发用 Reject，定时任务用 Wait。
type Maker struct {
	config  Config
	store   *store.Store
	coord   *lock.Coordinator
	feed    PriceFeed
	primary PrimaryVenue
	hedge   HedgeVenue
	logger  *logger.Logger
	metrics Metrics
	alerts  *alert.Manager
	assets  []market.Asset
	now     func() time.Time

	// 对冲发送失败后，下一次刷新强制重新评估
	forceHedge sync.Map // market.Asset -> bool

	mu        sync.RWMutex
	state     EngineState
	startedAt time.Time
	cancel    context.CancelFunc
	group     *errgroup.Group
	unsub     func()

	stats stats
}

type stats struct {
	ticks           atomic.Int64
	quotesSent      atomic.Int64
	quoteRefreshes  atomic.Int64
	positionRefresh atomic.Int64
	riskRefreshes   atomic.Int64
	hedgeOrders     atomic.Int64
	hedgeSkipped    atomic.Int64
	sendErrors      atomic.Int64
	feedRestarts    atomic.Int64
	eventsDropped   atomic.Int64
}

// Statistics 引擎统计信息
type Statistics struct {
	State           string    `json:"state"`
	StartTime       time.Time `json:"startTime"`
	Ticks           int64     `json:"ticks"`
	QuotesSent      int64     `json:"quotesSent"`
	QuoteRefreshes  int64     `json:"quoteRefreshes"`
	PositionRefresh int64     `json:"positionRefreshes"`
	RiskRefreshes   int64     `json:"riskRefreshes"`
	HedgeOrders     int64     `json:"hedgeOrders"`
	HedgeSkipped    int64     `json:"hedgeSkipped"`
	SendErrors      int64     `json:"sendErrors"`
	FeedRestarts    int64     `json:"feedRestarts"`
	EventsDropped   int64     `json:"eventsDropped"`
}

// New 创建引擎
func New(cfg Config, c Components) (*Maker, error) {
	if err := validateComponents(c); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}
	if cfg.QuoteInterval <= 0 {
		cfg.QuoteInterval = 5 * time.Second
	}
	if cfg.PositionRefreshInterval <= 0 {
		cfg.PositionRefreshInterval = 10 * time.Second
	}
	if cfg.RiskStatsInterval <= 0 {
		cfg.RiskStatsInterval = time.Minute
	}
	if cfg.StaleInterval <= 0 {
		cfg.StaleInterval = 30 * time.Second
	}
	if cfg.ShutdownAttempts <= 0 {
		cfg.ShutdownAttempts = 10
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = time.Minute
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	m := &Maker{
		config:  cfg,
		store:   c.Store,
		coord:   c.Coordinator,
		feed:    c.Feed,
		primary: c.Primary,
		hedge:   c.Hedge,
		logger:  c.Logger,
		metrics: c.Metrics,
		alerts:  c.Alerts,
		assets:  c.Store.Assets(),
		now:     time.Now,
		state:   StateIdle,
	}
	if m.logger == nil {
		m.logger = logger.Wrap(nil)
	}
	if m.metrics == nil {
		m.metrics = nopMetrics{}
	}
	return m, nil
}

func validateComponents(c Components) error {
	switch {
	case c.Store == nil:
		return errors.New("store is required")
	case c.Coordinator == nil:
		return errors.New("coordinator is required")
	case c.Feed == nil:
		return errors.New("price feed is required")
	case c.Primary == nil:
		return errors.New("primary venue is required")
	case c.Hedge == nil:
		return errors.New("hedge venue is required")
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordFeedRestart(string) {}
func (nopMetrics) RecordSendError(string, string) {}
func (nopMetrics) UpdateTheoAge(string, time.Duration) {}

// ResourceNames Coordinator 需要注册的全部资源
func ResourceNames(assets []market.Asset) []string {
	names := make([]string, 0, 2*len(assets))
	for _, a := range assets {
		names = append(names, lock.QuoteResource(a), lock.PositionResource(a))
	}
	return names
}

// Start 启动行情循环、定时任务与事件订阅，立即返回
func (m *Maker) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning {
		return fmt.Errorf("engine already started (state: %s)", m.state)
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	events := make(chan VenueEvent, m.config.EventBuffer)
	unsub, err := m.primary.Events(func(ev VenueEvent) {
		select {
		case events <- ev:
		default:
			m.stats.eventsDropped.Add(1)
			m.logger.Warn("venue event dropped", zap.String("kind", string(ev.Kind)), zap.String("asset", string(ev.Asset)))
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe venue events: %w", err)
	}

	for _, asset := range m.assets {
		asset := asset
		g.Go(func() error { return m.runFeed(gctx, asset) })
		g.Go(func() error {
			schedule(gctx, m.config.PositionRefreshInterval, func() {
				m.refreshPositions(gctx, asset, lock.Wait)
			})
			return nil
		})
		g.Go(func() error {
			schedule(gctx, m.config.QuoteInterval, func() {
				m.refreshQuotes(gctx, asset)
			})
			return nil
		})
	}
	g.Go(func() error {
		schedule(gctx, m.config.RiskStatsInterval, func() {
			m.refreshRiskStats(gctx)
		})
		return nil
	})
	g.Go(func() error { return m.runEvents(gctx, events) })

	m.cancel = cancel
	m.group = g
	m.unsub = unsub
	m.state = StateRunning
	m.startedAt = m.now()

	m.logger.Info("maker started",
		zap.Int("assets", len(m.assets)),
		zap.Duration("quote_interval", m.config.QuoteInterval),
		zap.Duration("position_refresh_interval", m.config.PositionRefreshInterval),
		zap.Duration("risk_stats_interval", m.config.RiskStatsInterval),
		zap.Duration("stale_interval", m.config.StaleInterval))
	return nil
}

// Stop 停止所有循环并尽力撤掉两个场所的挂单。撤单不经过 Coordinator。
func (m *Maker) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return fmt.Errorf("engine not running (state: %s)", m.state)
	}
	m.state = StateStopped
	cancel, g, unsub := m.cancel, m.group, m.unsub
	m.mu.Unlock()

	m.logger.Info("maker stopping")
	if unsub != nil {
		unsub()
	}
	cancel()
	if err := g.Wait(); err != nil {
		m.logger.Warn("maker loops exited with error", zap.Error(err))
	}
	err := m.Drain(ctx)
	m.logger.Info("maker stopped")
	return err
}

// Drain 撤单：报价场所最多重试 ShutdownAttempts 次直到没有挂单，然后撤对冲场所各资产挂单。
func (m *Maker) Drain(ctx context.Context) error {
	var errs []error
	cleared := false
	for i := 1; i <= m.config.ShutdownAttempts; i++ {
		remaining, err := m.primary.CancelAll(ctx)
		if err == nil && remaining == 0 {
			cleared = true
			break
		}
		m.logger.Warn("primary cancel all incomplete",
			zap.Int("attempt", i), zap.Int("remaining", remaining), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if !cleared {
		errs = append(errs, fmt.Errorf("primary orders not cleared after %d attempts", m.config.ShutdownAttempts))
	}
	for _, asset := range m.assets {
		if err := m.hedge.CancelAll(ctx, asset); err != nil {
			m.logger.Warn("hedge cancel all failed", zap.String("asset", string(asset)), zap.Error(err))
			errs = append(errs, fmt.Errorf("hedge cancel %s: %w", asset, err))
		}
	}
	return errors.Join(errs...)
}

// State 当前状态
func (m *Maker) State() EngineState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stats 统计快照
func (m *Maker) Stats() Statistics {
	m.mu.RLock()
	state, started := m.state, m.startedAt
	m.mu.RUnlock()
	return Statistics{
		State:           state.String(),
		StartTime:       started,
		Ticks:           m.stats.ticks.Load(),
		QuotesSent:      m.stats.quotesSent.Load(),
		QuoteRefreshes:  m.stats.quoteRefreshes.Load(),
		PositionRefresh: m.stats.positionRefresh.Load(),
		RiskRefreshes:   m.stats.riskRefreshes.Load(),
		HedgeOrders:     m.stats.hedgeOrders.Load(),
		HedgeSkipped:    m.stats.hedgeSkipped.Load(),
		SendErrors:      m.stats.sendErrors.Load(),
		FeedRestarts:    m.stats.feedRestarts.Load(),
		EventsDropped:   m.stats.eventsDropped.Load(),
	}
}

// StaleAsset theo 过期的资产
type StaleAsset struct {
	Asset      market.Asset `json:"asset"`
	LastUpdate time.Time    `json:"lastUpdate"`
	Age        string       `json:"age"`
}

// StaleAssets 返回 theo 超过阈值的资产。从未收到行情的资产在启动满一个阈值后同样视为过期。
func (m *Maker) StaleAssets(now time.Time) []StaleAsset {
	m.mu.RLock()
	started := m.startedAt
	m.mu.RUnlock()

	var out []StaleAsset
	for _, asset := range m.assets {
		theo, ok := m.store.GetTheo(asset)
		if !ok {
			if !started.IsZero() && now.Sub(started) > m.config.StaleInterval {
				out = append(out, StaleAsset{Asset: asset, Age: "never"})
			}
			continue
		}
		age := theo.Age(now)
		m.metrics.UpdateTheoAge(string(asset), age)
		if age > m.config.StaleInterval {
			out = append(out, StaleAsset{Asset: asset, LastUpdate: theo.Timestamp, Age: age.String()})
		}
	}
	return out
}
