package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"hedge-maker-go/internal/lock"
	"hedge-maker-go/internal/store"
	"hedge-maker-go/inventory"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

// hedgeInstrument 对冲场所每个资产只有一个永续合约
const hedgeInstrument = 0

// onTick 更新 theo（不经过锁），然后尝试重新报价；报价正在进行或仍在冷却时放弃。
func (m *Maker) onTick(ctx context.Context, tob market.TopOfBook) {
	m.stats.ticks.Add(1)
	if err := m.store.SetMarkPriceUpdate(tob); err != nil {
		m.logger.Debug("tick ignored", zap.String("asset", string(tob.Asset)), zap.Error(err))
		return
	}
	m.requote(ctx, tob.Asset, lock.Reject)
}

func (m *Maker) requote(ctx context.Context, asset market.Asset, policy lock.Policy) {
	_, err := m.coord.RunExclusive(ctx, lock.QuoteResource(asset), policy, func(ctx context.Context) error {
		eff := m.store.ComputeQuotes(asset)
		if len(eff.Quotes) == 0 {
			return nil
		}
		m.logBreaches(eff.Breaches)
		return m.sendQuotes(ctx, asset, eff.Quotes)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("requote failed", zap.String("asset", string(asset)), zap.Error(err))
	}
}

// refreshQuotes 期望报价中有效的挂单在场所上丢失（例如已成交）时，整体重新下发。
func (m *Maker) refreshQuotes(ctx context.Context, asset market.Asset) {
	_, err := m.coord.RunExclusive(ctx, lock.QuoteResource(asset), lock.Wait, func(ctx context.Context) error {
		m.stats.quoteRefreshes.Add(1)
		snap, err := m.primary.Snapshot(ctx, asset)
		if err != nil {
			m.metrics.RecordSendError("primary", "snapshot")
			return err
		}
		open := make(map[uint64]struct{}, len(snap.OpenClientOrderIDs))
		for _, id := range snap.OpenClientOrderIDs {
			open[id] = struct{}{}
		}
		var missing []uint64
		for _, q := range m.store.GetCurrentQuotes(asset) {
			if q.Size <= 0 {
				continue
			}
			if _, ok := open[q.ClientOrderID]; !ok {
				missing = append(missing, q.ClientOrderID)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		eff := m.store.RefreshQuotes(asset)
		m.logger.Info("quotes missing on venue, reissuing",
			zap.String("asset", string(asset)),
			zap.Uint64s("missing_client_ids", missing),
			zap.Int("reissued", len(eff.Quotes)))
		if len(eff.Quotes) == 0 {
			return nil
		}
		m.logBreaches(eff.Breaches)
		return m.sendQuotes(ctx, asset, eff.Quotes)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("quote refresh failed", zap.String("asset", string(asset)), zap.Error(err))
	}
}

func (m *Maker) sendQuotes(ctx context.Context, asset market.Asset, quotes []order.Quote) error {
	if err := m.primary.SendQuotes(ctx, asset, quotes); err != nil {
		// 下一次重新计算会再发；client id 保证幂等
		m.stats.sendErrors.Add(1)
		m.metrics.RecordSendError("primary", "quotes")
		return err
	}
	m.stats.quotesSent.Add(1)
	m.logger.LogQuotes(string(asset), quotes)
	return nil
}

// refreshPositions 拉取两个场所的仓位，记录后按需发送对冲单。
func (m *Maker) refreshPositions(ctx context.Context, asset market.Asset, policy lock.Policy) {
	_, err := m.coord.RunExclusive(ctx, lock.PositionResource(asset), policy, func(ctx context.Context) error {
		m.stats.positionRefresh.Add(1)
		snap, err := m.primary.Snapshot(ctx, asset)
		if err != nil {
			m.metrics.RecordSendError("primary", "snapshot")
			return err
		}
		hedgePos, err := m.hedge.Position(ctx, asset)
		if err != nil {
			m.metrics.RecordSendError("hedge", "position")
			return err
		}

		updates := make([]store.PositionUpdate, 0, len(snap.Positions)+1)
		listed := make(map[int]struct{}, len(snap.Positions))
		for _, p := range snap.Positions {
			listed[p.Instrument] = struct{}{}
			updates = append(updates, store.PositionUpdate{Venue: inventory.VenuePrimary, Instrument: p.Instrument, Size: p.Size})
		}
		// 场所不再列出的品种视为已平仓
		for _, e := range m.store.Positions().Get(inventory.Any().WithVenue(inventory.VenuePrimary).WithAsset(asset)) {
			if _, ok := listed[e.Key.Instrument]; !ok && e.Size != 0 {
				updates = append(updates, store.PositionUpdate{Venue: inventory.VenuePrimary, Instrument: e.Key.Instrument})
			}
		}
		updates = append(updates, store.PositionUpdate{Venue: inventory.VenueHedge, Instrument: hedgeInstrument, Size: hedgePos})
		m.store.RecordAssetRisk(asset, store.AssetRisk{Margin: snap.Margin, PnL: snap.PnL})

		_, force := m.forceHedge.LoadAndDelete(asset)
		eff := m.store.RecordPositions(asset, updates, force)
		for _, n := range eff.Notifications {
			if !n.HasTheo {
				// 没有 theo 时无法评估对冲，等 theo 到达后的下一次刷新补上
				m.forceHedge.Store(asset, true)
			}
			m.logger.Debug("position changed",
				zap.Stringer("key", n.Key),
				zap.Float64("previous", n.Previous),
				zap.Float64("current", n.Current),
				zap.Float64("net_base", n.NetBase))
		}
		if len(eff.HedgeOrders) == 0 {
			return nil
		}

		m.stats.hedgeOrders.Add(int64(len(eff.HedgeOrders)))
		err = m.hedge.SendHedgeOrders(ctx, eff.HedgeOrders)
		if belowMinQtyOnly(err) {
			// 余量不足一个最小下单量，留到仓位下次变化时再评估
			m.stats.hedgeSkipped.Add(int64(len(eff.HedgeOrders)))
			for _, h := range eff.HedgeOrders {
				m.logger.Info("hedge skipped below venue min qty",
					zap.String("asset", string(h.Asset)),
					zap.String("side", string(h.Side)),
					zap.Float64("base_amount", h.BaseAmount),
					zap.Error(err))
			}
			return nil
		}
		for _, h := range eff.HedgeOrders {
			m.logger.LogHedge(h, err)
		}
		if err != nil {
			// 仓位没有变化时不会再次评估，强制下一次刷新重新计算
			m.forceHedge.Store(asset, true)
			m.stats.sendErrors.Add(1)
			m.metrics.RecordSendError("hedge", "order")
			m.alerts.Critical("hedge:"+string(asset), "hedge order failed", map[string]any{
				"asset": string(asset), "error": err.Error(),
			})
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("position refresh failed", zap.String("asset", string(asset)), zap.Error(err))
	}
}

// belowMinQtyOnly err 非空且全部是最小下单量跳过
func belowMinQtyOnly(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !belowMinQtyOnly(e) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, ErrHedgeBelowMinQty)
}

// refreshRiskStats 拉取两个场所的账户汇总。只读，不经过 Coordinator；一个场所失败不影响另一个。
func (m *Maker) refreshRiskStats(ctx context.Context) {
	m.stats.riskRefreshes.Add(1)
	venues := []struct {
		venue inventory.Venue
		fetch func(context.Context) (store.RiskStats, error)
	}{
		{inventory.VenuePrimary, m.primary.RiskStats},
		{inventory.VenueHedge, m.hedge.RiskStats},
	}
	for _, v := range venues {
		stats, err := v.fetch(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				m.metrics.RecordSendError(string(v.venue), "risk_stats")
				m.logger.Warn("risk stats fetch failed", zap.String("venue", string(v.venue)), zap.Error(err))
			}
			continue
		}
		m.store.RecordRiskStats(v.venue, stats)
	}
}

func (m *Maker) logBreaches(breaches []store.QuoteBreach) {
	for _, b := range breaches {
		m.logger.LogBreach(string(b.Asset), string(b.Scope), b.Instrument, b.CurrentCash, b.LimitCash, string(b.RejectedSide))
	}
}
