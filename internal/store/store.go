// Package store 持有做市核心的全部可变状态：theo、期望报价、限额触发、资金费率与跨场所仓位。
// 除本包外没有任何地方修改这些状态；状态查询可以并发读。
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"hedge-maker-go/config"
	"hedge-maker-go/inventory"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
	"hedge-maker-go/strategy"
)

// ErrUnknownAsset 资产未在配置中出现。
var ErrUnknownAsset = errors.New("unknown asset")

// Observer 状态变化的指标钩子，由 monitor 实现。
type Observer interface {
	TheoUpdated(asset string, price float64)
	QuotesIssued(asset string, n int)
	QuotesSkipped(asset string)
	BreachesUpdated(asset string, n int)
	PositionRecorded(venue, asset string, instrument int, size float64)
	NetCashUpdated(asset string, cash float64)
	HedgeTriggered(asset, side string)
	FundingUpdated(asset string, annualizedPct float64)
	AccountRiskUpdated(venue string, balance, margin, available, pnl float64)
	AssetRiskUpdated(venue, asset string, margin, pnl float64)
}

type nopObserver struct{}

func (nopObserver) TheoUpdated(string, float64) {}
func (nopObserver) QuotesIssued(string, int) {}
func (nopObserver) QuotesSkipped(string) {}
func (nopObserver) BreachesUpdated(string, int) {}
func (nopObserver) PositionRecorded(string, string, int, float64) {}
func (nopObserver) NetCashUpdated(string, float64) {}
func (nopObserver) HedgeTriggered(string, string) {}
func (nopObserver) FundingUpdated(string, float64) {}
func (nopObserver) AccountRiskUpdated(string, float64, float64, float64, float64) {}
func (nopObserver) AssetRiskUpdated(string, string, float64, float64) {}

// Store 做市状态
type Store struct {
	params         map[market.Asset]config.AssetParams
	hedgeThreshold float64
	ids            order.IDSource
	positions      *inventory.Agg

	logger   *zap.Logger
	observer Observer
	now      func() time.Time

	mu       sync.RWMutex
	theos    map[market.Asset]market.Theo
	quotes   map[market.Asset][]order.Quote
	breaches map[market.Asset][]QuoteBreach
	funding  map[market.Asset]float64

	accountRisk map[inventory.Venue]accountRisk
	assetRisk   map[market.Asset]assetRisk
}

// Option 构造选项
type Option func(*Store)

// WithLogger 注入 logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithObserver 注入指标观察者
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithClock 替换时钟，tick 不带时间戳时使用
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New 创建状态。params 在整个生命周期只读；ids 为进程内唯一的 client id 来源。
func New(params map[market.Asset]config.AssetParams, hedgeThreshold float64, ids order.IDSource, opts ...Option) *Store {
	s := &Store{
		params:         params,
		hedgeThreshold: hedgeThreshold,
		ids:            ids,
		positions:      inventory.NewAgg(),
		logger:         zap.NewNop(),
		observer:       nopObserver{},
		now:            time.Now,
		theos:          make(map[market.Asset]market.Theo),
		quotes:         make(map[market.Asset][]order.Quote),
		breaches:       make(map[market.Asset][]QuoteBreach),
		funding:        make(map[market.Asset]float64),
		accountRisk:    make(map[inventory.Venue]accountRisk),
		assetRisk:      make(map[market.Asset]assetRisk),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("store")
	return s
}

// Assets 已配置的资产，按名称排序。
func (s *Store) Assets() []market.Asset {
	out := make([]market.Asset, 0, len(s.params))
	for a := range s.params {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Params 资产参数
func (s *Store) Params(asset market.Asset) (config.AssetParams, bool) {
	p, ok := s.params[asset]
	return p, ok
}

// HedgeThreshold 触发对冲的净现金敞口
func (s *Store) HedgeThreshold() float64 { return s.hedgeThreshold }

// SetMarkPriceUpdate 用最新一档盘口计算 theo 并整体替换。
// 空盘口或未知资产直接返回错误，不改动已有状态。
func (s *Store) SetMarkPriceUpdate(tob market.TopOfBook) error {
	if _, ok := s.params[tob.Asset]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, tob.Asset)
	}
	price, err := strategy.FairPrice(tob.Bid, tob.Ask)
	if err != nil {
		return fmt.Errorf("%s: %w", tob.Asset, err)
	}
	ts := tob.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	theo := market.Theo{Price: price, TopBid: tob.Bid, TopAsk: tob.Ask, Timestamp: ts}

	s.mu.Lock()
	s.theos[tob.Asset] = theo
	s.mu.Unlock()

	s.observer.TheoUpdated(string(tob.Asset), price)
	return nil
}

// GetTheo 当前 theo
func (s *Store) GetTheo(asset market.Asset) (market.Theo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.theos[asset]
	return t, ok
}

// RecordFundingUpdate 记录年化资金费率（%）
func (s *Store) RecordFundingUpdate(asset market.Asset, annualizedPct float64) {
	s.mu.Lock()
	s.funding[asset] = annualizedPct
	s.mu.Unlock()
	s.observer.FundingUpdated(string(asset), annualizedPct)
}

// GetFunding 最近一次资金费率
func (s *Store) GetFunding(asset market.Asset) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.funding[asset]
	return v, ok
}
