// Package status 只读状态接口：仓位、theo、报价、风控突破、保证金与盈亏、资金费率与健康检查。
// 所有读取直接访问 store，不经过 Coordinator。
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hedge-maker-go/internal/engine"
	"hedge-maker-go/internal/store"
	"hedge-maker-go/inventory"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

// HealthSource 引擎运行状况
type HealthSource interface {
	StaleAssets(now time.Time) []engine.StaleAsset
	Stats() engine.Statistics
}

// Server 状态 HTTP 服务
type Server struct {
	store      *store.Store
	health     HealthSource
	metrics    http.Handler
	restartCnt int
	instanceID string
	logger     *zap.Logger
	now        func() time.Time

	router *gin.Engine
	http   *http.Server
}

// New 创建服务；health 与 metrics 可为 nil。
func New(st *store.Store, health HealthSource, metrics http.Handler, restartCnt int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:      st,
		health:     health,
		metrics:    metrics,
		restartCnt: restartCnt,
		instanceID: uuid.NewString(),
		logger:     logger.Named("status"),
		now:        time.Now,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	s.router = router
	s.registerRoutes()
	return s
}

// Router 供测试使用
func (s *Server) Router() *gin.Engine {
	return s.router
}

// InstanceID 本次进程的实例 id
func (s *Server) InstanceID() string {
	return s.instanceID
}

func (s *Server) registerRoutes() {
	s.router.GET("/position/:venue", s.getPosition)
	s.router.GET("/position/:venue/:asset", s.getPosition)
	s.router.GET("/position/:venue/:asset/:index", s.getPosition)
	s.router.GET("/theo/:asset", s.getTheo)
	s.router.GET("/quotes/:asset", s.getQuotes)
	s.router.GET("/orders", s.getOrders)
	s.router.GET("/risk", s.getRisk)
	s.router.GET("/breaches", s.getBreaches)
	s.router.GET("/funding/:asset", s.getFunding)
	s.router.GET("/restart", s.getRestart)
	s.router.GET("/health", s.getHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
}

// Start 在后台监听 addr
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("starting status server", zap.String("addr", addr), zap.String("instance_id", s.instanceID))
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) knownAsset(raw string) (market.Asset, bool) {
	asset := market.Asset(raw)
	_, ok := s.store.Params(asset)
	return asset, ok
}

func (s *Server) getPosition(c *gin.Context) {
	venue, err := inventory.ParseVenue(c.Param("venue"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pattern := inventory.Any().WithVenue(venue)

	if raw := c.Param("asset"); raw != "" {
		asset, ok := s.knownAsset(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown asset " + raw})
			return
		}
		pattern = pattern.WithAsset(asset)
	}
	if raw := c.Param("index"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil || index < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market index " + raw})
			return
		}
		pattern = pattern.WithInstrument(index)
	}

	view, ok := s.store.GetPosition(pattern)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no position for " + pattern.String()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getTheo(c *gin.Context) {
	asset, ok := s.knownAsset(c.Param("asset"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown asset"})
		return
	}
	theo, ok := s.store.GetTheo(asset)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no theo yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset":  asset,
		"theo":   theo,
		"ageSec": theo.Age(s.now()).Seconds(),
	})
}

func (s *Server) getQuotes(c *gin.Context) {
	asset, ok := s.knownAsset(c.Param("asset"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown asset"})
		return
	}
	quotes := s.store.GetCurrentQuotes(asset)
	if len(quotes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no quotes yet"})
		return
	}
	c.JSON(http.StatusOK, quotes)
}

// getOrders 所有资产当前的期望报价梯度
func (s *Server) getOrders(c *gin.Context) {
	out := make(map[market.Asset][]order.Quote)
	for _, asset := range s.store.Assets() {
		if quotes := s.store.GetCurrentQuotes(asset); len(quotes) > 0 {
			out[asset] = quotes
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getRisk(c *gin.Context) {
	rows := s.store.GetRiskStats()
	if rows == nil {
		rows = []store.RiskRow{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) getBreaches(c *gin.Context) {
	breaches := s.store.GetBreaches()
	if breaches == nil {
		breaches = []store.QuoteBreach{}
	}
	c.JSON(http.StatusOK, breaches)
}

func (s *Server) getFunding(c *gin.Context) {
	asset, ok := s.knownAsset(c.Param("asset"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown asset"})
		return
	}
	pct, ok := s.store.GetFunding(asset)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no funding update yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "annualizedPct": pct})
}

func (s *Server) getRestart(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"restartCnt": s.restartCnt, "instanceId": s.instanceID})
}

func (s *Server) getHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	stats := s.health.Stats()
	if stale := s.health.StaleAssets(s.now()); len(stale) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stale", "stale": stale, "stats": stats})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": stats})
}
