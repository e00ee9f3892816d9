package store

import (
	"math"

	"go.uber.org/zap"

	"hedge-maker-go/inventory"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

// PositionUpdate 一条来自场所的仓位快照
type PositionUpdate struct {
	Venue      inventory.Venue
	Instrument int
	Size       float64
}

// PositionNotification 仓位变化通知，附带更新后的资产净敞口。
type PositionNotification struct {
	Key      inventory.Key `json:"key"`
	Previous float64       `json:"previous"`
	Current  float64       `json:"current"`
	NetBase  float64       `json:"netBase"`
	NetCash  float64       `json:"netCash"` // HasTheo 为 false 时无意义
	HasTheo  bool          `json:"hasTheo"`
}

// PositionEffects 仓位更新的结果；HedgeOrders 需要立即执行，不会保存在状态里。
type PositionEffects struct {
	HedgeOrders   []order.HedgeOrder     `json:"hedgeOrders"`
	Notifications []PositionNotification `json:"notifications"`
}

// Empty 没有任何需要处理的结果
func (e PositionEffects) Empty() bool {
	return len(e.HedgeOrders) == 0 && len(e.Notifications) == 0
}

// RecordPositionUpdate 记录单个 (venue, asset, instrument) 的仓位。
// 仓位未变且非强制时为幂等空操作。
func (s *Store) RecordPositionUpdate(venue inventory.Venue, asset market.Asset, instrument int, size float64, force bool) PositionEffects {
	return s.RecordPositions(asset, []PositionUpdate{{Venue: venue, Instrument: instrument, Size: size}}, force)
}

// RecordPositions 批量记录一次刷新得到的仓位，全部写入后只评估一次对冲，
// 避免同一敞口因多条更新产生多笔对冲单。
func (s *Store) RecordPositions(asset market.Asset, updates []PositionUpdate, force bool) PositionEffects {
	if _, ok := s.params[asset]; !ok {
		s.logger.Warn("position for unconfigured asset", zap.String("asset", string(asset)))
		return PositionEffects{}
	}

	var notes []PositionNotification
	for _, u := range updates {
		key := inventory.Key{Venue: u.Venue, Asset: asset, Instrument: u.Instrument}
		prev, _ := s.positions.Lookup(key)
		changed, err := s.positions.Set(key, u.Size)
		if err != nil {
			s.logger.Error("invalid position update", zap.Stringer("key", key), zap.Error(err))
			continue
		}
		if changed {
			s.observer.PositionRecorded(string(u.Venue), string(asset), u.Instrument, u.Size)
		}
		if changed || force {
			notes = append(notes, PositionNotification{Key: key, Previous: prev, Current: u.Size})
		}
	}
	if len(notes) == 0 {
		return PositionEffects{}
	}

	net, _ := s.positions.Sum(inventory.Any().WithAsset(asset))
	theo, hasTheo := s.GetTheo(asset)
	netCash := 0.0
	if hasTheo {
		netCash = net * theo.Price
		s.observer.NetCashUpdated(string(asset), netCash)
	}
	for i := range notes {
		notes[i].NetBase = net
		notes[i].NetCash = netCash
		notes[i].HasTheo = hasTheo
	}

	effects := PositionEffects{Notifications: notes}
	if !hasTheo {
		s.logger.Debug("no theo, skip hedge evaluation", zap.String("asset", string(asset)))
		return effects
	}
	if math.Abs(netCash) > s.hedgeThreshold {
		h := hedgeFor(asset, net, theo)
		h.ClientOrderID = s.ids.Next()
		effects.HedgeOrders = []order.HedgeOrder{h}
		s.observer.HedgeTriggered(string(asset), string(h.Side))
		s.logger.Info("hedge triggered",
			zap.String("asset", string(asset)),
			zap.Float64("net_base", net),
			zap.Float64("net_cash", netCash),
			zap.String("side", string(h.Side)),
		)
	}
	return effects
}

// hedgeFor 以对手方最优价下单，净多头卖出、净空头买入。
func hedgeFor(asset market.Asset, net float64, theo market.Theo) order.HedgeOrder {
	h := order.HedgeOrder{Asset: asset, BaseAmount: math.Abs(net)}
	if net > 0 {
		h.Side = order.SideSell
		h.Price = theo.TopBid.Price
	} else {
		h.Side = order.SideBuy
		h.Price = theo.TopAsk.Price
	}
	return h
}

// PositionEntry 展示用的单条仓位
type PositionEntry struct {
	Key  inventory.Key `json:"key"`
	Base float64       `json:"base"`
	Cash *float64      `json:"cash,omitempty"`
}

// PositionView 一个查询模式下的仓位汇总
type PositionView struct {
	Entries []PositionEntry `json:"entries"`
	NetBase float64         `json:"netBase"`
	NetCash *float64        `json:"netCash,omitempty"` // 所有条目都有 theo 时才给出
}

// GetPosition 按模式汇总仓位，没有任何匹配时返回 false。
func (s *Store) GetPosition(p inventory.Pattern) (PositionView, bool) {
	entries := s.positions.Get(p)
	if len(entries) == 0 {
		return PositionView{}, false
	}
	inventory.SortEntries(entries)

	view := PositionView{Entries: make([]PositionEntry, 0, len(entries))}
	netCash, allPriced := 0.0, true
	for _, e := range entries {
		pe := PositionEntry{Key: e.Key, Base: e.Size}
		if theo, ok := s.GetTheo(e.Key.Asset); ok {
			cash := e.Size * theo.Price
			pe.Cash = &cash
			netCash += cash
		} else {
			allPriced = false
		}
		view.NetBase += e.Size
		view.Entries = append(view.Entries, pe)
	}
	if allPriced {
		view.NetCash = &netCash
	}
	return view, true
}

// Positions 当前仓位快照
func (s *Store) Positions() *inventory.Agg {
	return s.positions.Clone()
}
