package gateway

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"hedge-maker-go/internal/engine"
	"hedge-maker-go/internal/store"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

// DryRunPrimary 只记录日志的报价场所。最近一次下发的报价视为全部挂单中，不产生仓位。
type DryRunPrimary struct {
	logger *zap.Logger

	mu   sync.Mutex
	open map[market.Asset][]uint64
}

// NewDryRunPrimary 创建
func NewDryRunPrimary(logger *zap.Logger) *DryRunPrimary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunPrimary{logger: logger.Named("dry_primary"), open: make(map[market.Asset][]uint64)}
}

func (d *DryRunPrimary) SendQuotes(_ context.Context, asset market.Asset, quotes []order.Quote) error {
	ids := make([]uint64, 0, len(quotes))
	for _, q := range quotes {
		if q.Size > 0 {
			ids = append(ids, q.ClientOrderID)
		}
	}
	d.mu.Lock()
	d.open[asset] = ids
	d.mu.Unlock()
	d.logger.Info("dry run quotes", zap.String("asset", string(asset)), zap.Int("count", len(quotes)), zap.Uint64s("client_ids", ids))
	return nil
}

func (d *DryRunPrimary) Snapshot(_ context.Context, asset market.Asset) (engine.PrimarySnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return engine.PrimarySnapshot{OpenClientOrderIDs: append([]uint64(nil), d.open[asset]...)}, nil
}

func (d *DryRunPrimary) CancelAll(context.Context) (int, error) {
	d.mu.Lock()
	clear(d.open)
	d.mu.Unlock()
	d.logger.Info("dry run cancel all")
	return 0, nil
}

func (d *DryRunPrimary) RiskStats(context.Context) (store.RiskStats, error) {
	return store.RiskStats{}, nil
}

func (d *DryRunPrimary) Events(func(engine.VenueEvent)) (func(), error) {
	return func() {}, nil
}

// DryRunHedge 只记录日志的对冲场所，仓位恒为 0。
type DryRunHedge struct {
	logger *zap.Logger
}

// NewDryRunHedge 创建
func NewDryRunHedge(logger *zap.Logger) *DryRunHedge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunHedge{logger: logger.Named("dry_hedge")}
}

func (d *DryRunHedge) SendHedgeOrders(_ context.Context, orders []order.HedgeOrder) error {
	for _, h := range orders {
		d.logger.Info("dry run hedge",
			zap.String("asset", string(h.Asset)),
			zap.String("side", string(h.Side)),
			zap.Float64("price", h.Price),
			zap.Float64("base_amount", h.BaseAmount),
			zap.Uint64("client_id", h.ClientOrderID))
	}
	return nil
}

func (d *DryRunHedge) Position(context.Context, market.Asset) (float64, error) { return 0, nil }

func (d *DryRunHedge) RiskStats(context.Context) (store.RiskStats, error) {
	return store.RiskStats{}, nil
}

func (d *DryRunHedge) CancelAll(_ context.Context, asset market.Asset) error {
	d.logger.Info("dry run hedge cancel all", zap.String("asset", string(asset)))
	return nil
}

var (
	_ engine.PrimaryVenue = (*DryRunPrimary)(nil)
	_ engine.PrimaryVenue = (*NATSPrimary)(nil)
	_ engine.HedgeVenue   = (*DryRunHedge)(nil)
	_ engine.HedgeVenue   = (*HedgeVenue)(nil)
	_ engine.PriceFeed    = (*BookTickerFeed)(nil)
)
