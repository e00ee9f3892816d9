package container

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"hedge-maker-go/config"
	"hedge-maker-go/gateway"
	"hedge-maker-go/infrastructure/alert"
	"hedge-maker-go/infrastructure/logger"
	"hedge-maker-go/infrastructure/monitor"
	"hedge-maker-go/internal/engine"
	"hedge-maker-go/internal/lock"
	"hedge-maker-go/internal/status"
	"hedge-maker-go/internal/store"
	"hedge-maker-go/order"
)

// alertInterval 同一告警 key 的最短间隔
const alertInterval = time.Minute

// Options 构建选项
type Options struct {
	// DryRun 报价与对冲只记录日志，行情仍来自真实的对冲场所
	DryRun bool
}

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg  config.AppConfig
	opts Options

	// 基础设施
	logger     *logger.Logger
	monitor    *monitor.Monitor
	alerts     *alert.Manager
	restartCnt int

	// 场所
	nc      *nats.Conn
	feed    engine.PriceFeed
	primary engine.PrimaryVenue
	hedge   engine.HedgeVenue

	// 核心服务
	store  *store.Store
	coord  *lock.Coordinator
	maker  *engine.Maker
	status *status.Server

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 加载并校验配置
func New(configPath string, opts Options) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(cfg, opts), nil
}

// NewWithConfig 使用已加载的配置
func NewWithConfig(cfg config.AppConfig, opts Options) *Container {
	return &Container{
		cfg:       cfg,
		opts:      opts,
		lifecycle: NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	if err := c.buildGateway(); err != nil {
		return fmt.Errorf("build gateway failed: %w", err)
	}
	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}
	c.registerLifecycleComponents()
	c.logger.Info("container built",
		zap.String("env", c.cfg.Env),
		zap.Bool("dry_run", c.opts.DryRun),
		zap.Int("restart_cnt", c.restartCnt))
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}
	c.monitor = monitor.New(monitor.DefaultConfig())

	if path := c.cfg.RestartCountFile; path != "" {
		c.restartCnt, err = config.BumpRestartCount(path)
		if err != nil {
			// 计数失败不影响做市
			c.logger.Warn("bump restart count failed", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

func (c *Container) buildGateway() error {
	hedgeVenue, feed := gateway.BuildHedgeGateway(c.cfg.Hedge, c.logger.Logger, c.monitor)
	c.feed = feed

	channels := []alert.Channel{alert.NewZapChannel(c.logger.Logger)}
	if c.opts.DryRun {
		c.primary = gateway.NewDryRunPrimary(c.logger.Logger)
		c.hedge = gateway.NewDryRunHedge(c.logger.Logger)
	} else {
		nc, err := nats.Connect(c.cfg.Primary.NatsURL,
			nats.Name("hedge-maker-"+c.cfg.Env),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				c.logger.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				c.logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err != nil {
			return fmt.Errorf("connect nats %s: %w", c.cfg.Primary.NatsURL, err)
		}
		c.nc = nc
		c.primary = gateway.NewNATSPrimary(nc, c.cfg.Primary.SubjectPrefix,
			time.Duration(c.cfg.Primary.RequestTimeMs)*time.Millisecond, c.logger.Logger)
		c.hedge = hedgeVenue
		channels = append(channels, alert.NewNATSChannel(nc, c.cfg.Primary.SubjectPrefix+".alerts"))
	}
	c.alerts = alert.NewManager(alertInterval, channels...)
	return nil
}

func (c *Container) buildCoreServices() error {
	zl := c.logger.Logger
	c.store = store.New(c.cfg.Assets, c.cfg.CashDeltaHedgeThreshold, order.NewClockSeededIDGenerator(),
		store.WithLogger(zl), store.WithObserver(c.monitor))
	c.coord = lock.New(c.cfg.LockingInterval(), engine.ResourceNames(c.store.Assets()),
		lock.WithLogger(zl), lock.WithObserver(c.monitor))

	maker, err := engine.New(engine.Config{
		QuoteInterval:           c.cfg.QuoteInterval(),
		PositionRefreshInterval: c.cfg.PositionRefreshInterval(),
		RiskStatsInterval:       c.cfg.RiskStatsFetchInterval(),
		StaleInterval:           c.cfg.MarkPriceStaleInterval(),
	}, engine.Components{
		Store:       c.store,
		Coordinator: c.coord,
		Feed:        c.feed,
		Primary:     c.primary,
		Hedge:       c.hedge,
		Logger:      c.logger,
		Metrics:     c.monitor,
		Alerts:      c.alerts,
	})
	if err != nil {
		return fmt.Errorf("create maker failed: %w", err)
	}
	c.maker = maker
	c.status = status.New(c.store, c.maker, c.monitor.Handler(), c.restartCnt, zl)
	return nil
}

func (c *Container) registerLifecycleComponents() {
	c.lifecycle.Register(&statusComponent{server: c.status, addr: c.cfg.StatusAddr})
	c.lifecycle.Register(&makerComponent{maker: c.maker, stale: c.cfg.MarkPriceStaleInterval()})
}

// Start 按顺序启动状态服务与引擎
func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	c.logger.Info("container started")
	return nil
}

// Stop 逆序停止：引擎撤单后关闭状态服务，最后断开 NATS。
func (c *Container) Stop() error {
	c.logger.Info("stopping container...")
	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	if c.nc != nil {
		if derr := c.nc.Drain(); derr != nil {
			c.logger.Warn("nats drain failed", zap.Error(derr))
		}
	}
	c.logger.Info("container stopped")
	_ = c.logger.Close()
	return err
}

// HealthCheck 任一资产 theo 过期即返回错误
func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// Logger 日志器
func (c *Container) Logger() *logger.Logger { return c.logger }

// Config 当前配置
func (c *Container) Config() config.AppConfig { return c.cfg }

// Maker 引擎
func (c *Container) Maker() *engine.Maker { return c.maker }

// Store 状态存储
func (c *Container) Store() *store.Store { return c.store }

// RestartCount 本次启动后的重启计数
func (c *Container) RestartCount() int { return c.restartCnt }
