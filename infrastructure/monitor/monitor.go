package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器，使用私有 registry
type Monitor struct {
	registry *prometheus.Registry

	// 定价
	theo    *prometheus.GaugeVec
	theoAge *prometheus.GaugeVec

	// 报价
	quotesIssued  *prometheus.CounterVec
	quotesSkipped *prometheus.CounterVec
	breaches      *prometheus.GaugeVec

	// 仓位与对冲
	position    *prometheus.GaugeVec
	netCash     *prometheus.GaugeVec
	hedgeOrders *prometheus.CounterVec
	funding     *prometheus.GaugeVec

	// 保证金与盈亏
	balance   *prometheus.GaugeVec
	available *prometheus.GaugeVec
	margin    *prometheus.GaugeVec
	pnl       *prometheus.GaugeVec

	// 锁
	lockOutcomes *prometheus.CounterVec
	lockWait     *prometheus.HistogramVec

	// 系统
	feedRestarts *prometheus.CounterVec
	sendErrors   *prometheus.CounterVec
	restRequests *prometheus.CounterVec
	restLatency  *prometheus.HistogramVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "mm",
		Subsystem: "maker",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		}, labels)
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		}, labels)
	}

	return &Monitor{
		registry: reg,

		theo:    gauge("theo_price", "加权中间价", "asset"),
		theoAge: gauge("theo_age_seconds", "theo 距今时长", "asset"),

		quotesIssued:  counter("quotes_issued_total", "下发的报价梯度次数", "asset"),
		quotesSkipped: counter("quotes_skipped_total", "价格变动未达阈值而跳过的次数", "asset"),
		breaches:      gauge("quote_breaches", "当前触发的限额数", "asset"),

		position:    gauge("position_base", "各场所仓位（基础资产）", "venue", "asset", "instrument"),
		netCash:     gauge("net_cash_delta", "资产净现金敞口", "asset"),
		hedgeOrders: counter("hedge_orders_total", "对冲指令数", "asset", "side"),
		funding:     gauge("funding_rate_annualized_pct", "年化资金费率（%）", "asset"),

		balance:   gauge("account_balance", "场所账户余额", "venue"),
		available: gauge("account_available_balance", "场所可用余额", "venue"),
		margin:    gauge("margin", "占用保证金，asset=all 为账户汇总", "venue", "asset"),
		pnl:       gauge("unrealized_pnl", "未实现盈亏，asset=all 为账户汇总", "venue", "asset"),

		lockOutcomes: counter("lock_runs_total", "锁协调结果", "resource", "outcome"),
		lockWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "lock_wait_seconds",
			Help:      "获取资源与冷却等待时间（秒）",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"resource"}),

		feedRestarts: counter("feed_restarts_total", "行情循环重启次数", "asset"),
		sendErrors:   counter("send_errors_total", "发往场所失败次数", "venue", "op"),
		restRequests: counter("rest_requests_total", "REST 请求数", "action", "status"),
		restLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rest_latency_seconds",
			Help:      "REST 延迟分布（秒）",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"action"}),
	}
}

// TheoUpdated 记录新的 theo
func (m *Monitor) TheoUpdated(asset string, price float64) {
	m.theo.WithLabelValues(asset).Set(price)
	m.theoAge.WithLabelValues(asset).Set(0)
}

// UpdateTheoAge 由健康检查周期调用
func (m *Monitor) UpdateTheoAge(asset string, age time.Duration) {
	m.theoAge.WithLabelValues(asset).Set(age.Seconds())
}

// QuotesIssued 记录一次报价下发
func (m *Monitor) QuotesIssued(asset string, _ int) {
	m.quotesIssued.WithLabelValues(asset).Inc()
}

// QuotesSkipped 记录一次无需重报
func (m *Monitor) QuotesSkipped(asset string) {
	m.quotesSkipped.WithLabelValues(asset).Inc()
}

// BreachesUpdated 更新当前限额触发数
func (m *Monitor) BreachesUpdated(asset string, n int) {
	m.breaches.WithLabelValues(asset).Set(float64(n))
}

// PositionRecorded 记录仓位
func (m *Monitor) PositionRecorded(venue, asset string, instrument int, size float64) {
	m.position.WithLabelValues(venue, asset, strconv.Itoa(instrument)).Set(size)
}

// NetCashUpdated 记录净现金敞口
func (m *Monitor) NetCashUpdated(asset string, cash float64) {
	m.netCash.WithLabelValues(asset).Set(cash)
}

// HedgeTriggered 记录对冲指令
func (m *Monitor) HedgeTriggered(asset, side string) {
	m.hedgeOrders.WithLabelValues(asset, side).Inc()
}

// FundingUpdated 记录资金费率
func (m *Monitor) FundingUpdated(asset string, annualizedPct float64) {
	m.funding.WithLabelValues(asset).Set(annualizedPct)
}

// AccountRiskUpdated 记录场所账户汇总
func (m *Monitor) AccountRiskUpdated(venue string, balance, margin, available, pnl float64) {
	m.balance.WithLabelValues(venue).Set(balance)
	m.available.WithLabelValues(venue).Set(available)
	m.margin.WithLabelValues(venue, "all").Set(margin)
	m.pnl.WithLabelValues(venue, "all").Set(pnl)
}

// AssetRiskUpdated 记录单个资产的保证金与盈亏
func (m *Monitor) AssetRiskUpdated(venue, asset string, margin, pnl float64) {
	m.margin.WithLabelValues(venue, asset).Set(margin)
	m.pnl.WithLabelValues(venue, asset).Set(pnl)
}

// LockOutcome 记录一次锁协调结果
func (m *Monitor) LockOutcome(resource, outcome string, waited time.Duration) {
	m.lockOutcomes.WithLabelValues(resource, outcome).Inc()
	m.lockWait.WithLabelValues(resource).Observe(waited.Seconds())
}

// RecordFeedRestart 行情循环重启
func (m *Monitor) RecordFeedRestart(asset string) {
	m.feedRestarts.WithLabelValues(asset).Inc()
}

// RecordSendError 场所调用失败
func (m *Monitor) RecordSendError(venue, op string) {
	m.sendErrors.WithLabelValues(venue, op).Inc()
}

// RecordREST 记录一次 REST 请求
func (m *Monitor) RecordREST(action string, status int, elapsed time.Duration) {
	m.restRequests.WithLabelValues(action, strconv.Itoa(status)).Inc()
	m.restLatency.WithLabelValues(action).Observe(elapsed.Seconds())
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
