package store

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"hedge-maker-go/config"
	"hedge-maker-go/inventory"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
	"hedge-maker-go/strategy"
)

// BreachScope 限额的维度
type BreachScope string

const (
	ScopeInstrument BreachScope = "instrument"
	ScopeNet        BreachScope = "net"
)

// QuoteBreach 触发的现金敞口限额。RejectedSide 为会继续扩大敞口的一侧。
type QuoteBreach struct {
	Scope        BreachScope     `json:"scope"`
	Asset        market.Asset    `json:"asset"`
	Instrument   int             `json:"marketIndex"` // 仅 ScopeInstrument 有意义
	CurrentCash  float64         `json:"currentCash"`
	LimitCash    float64         `json:"limitCash"`
	RejectedSide order.QuoteSide `json:"rejectedSide"`
}

// QuotingEffects 一次报价计算的结果。Quotes 为空表示无需动作；Breaches 始终是最新的。
type QuotingEffects struct {
	Quotes   []order.Quote `json:"quotes"`
	Breaches []QuoteBreach `json:"breaches"`
}

// ComputeQuotes 计算资产的报价梯度，仅当与上次下发的梯度有实质差异时返回新报价。
func (s *Store) ComputeQuotes(asset market.Asset) QuotingEffects {
	return s.computeQuotes(asset, false)
}

// RefreshQuotes 与 ComputeQuotes 相同，但总是重新下发（挂单在场所上丢失时使用）。
func (s *Store) RefreshQuotes(asset market.Asset) QuotingEffects {
	return s.computeQuotes(asset, true)
}

func (s *Store) computeQuotes(asset market.Asset, force bool) QuotingEffects {
	params, ok := s.params[asset]
	if !ok {
		s.logger.Warn("compute quotes for unconfigured asset", zap.String("asset", string(asset)))
		return QuotingEffects{}
	}
	theo, ok := s.GetTheo(asset)
	if !ok {
		// 没有公允价时报价不安全
		s.logger.Debug("no theo yet", zap.String("asset", string(asset)))
		return QuotingEffects{}
	}

	net, _ := s.positions.Sum(inventory.Any().WithAsset(asset))
	spread := strategy.Spread(theo.Price, params.WidthBps, net, params.MaxNetCashExposure, params.LeanBps)
	quotes := strategy.BuildLadder(asset, params.Instruments, theo.Price, spread, params.QuoteLotSize)

	breaches := s.breachesFor(asset, params, theo.Price, net)
	rejected := make(map[order.QuoteSide]bool, 2)
	for _, b := range breaches {
		if b.RejectedSide != order.RejectNeither {
			rejected[b.RejectedSide] = true
		}
	}
	// 被拒绝的一侧保留报价但数量置零，执行层据此撤掉旧挂单
	for i := range quotes {
		if rejected[quotes[i].Side] {
			quotes[i].Size = 0
		}
	}

	s.mu.Lock()
	s.breaches[asset] = breaches
	prev := s.quotes[asset]
	requote := force || shouldRequote(prev, quotes, params.RequoteBps)
	if requote {
		for i := range quotes {
			quotes[i].ClientOrderID = s.ids.Next()
		}
		s.quotes[asset] = quotes
	}
	s.mu.Unlock()

	s.observer.BreachesUpdated(string(asset), len(breaches))
	if !requote {
		s.observer.QuotesSkipped(string(asset))
		return QuotingEffects{Breaches: cloneBreaches(breaches)}
	}
	s.observer.QuotesIssued(string(asset), len(quotes))
	return QuotingEffects{Quotes: cloneQuotes(quotes), Breaches: cloneBreaches(breaches)}
}

// breachesFor 先按报价场所上每个品种检查，再检查资产净敞口。
func (s *Store) breachesFor(asset market.Asset, params config.AssetParams, theo, net float64) []QuoteBreach {
	var out []QuoteBreach
	for _, ins := range params.Instruments {
		base, _ := s.positions.Lookup(inventory.Key{Venue: inventory.VenuePrimary, Asset: asset, Instrument: ins.MarketIndex})
		cash := base * theo
		if math.Abs(cash) >= params.MaxInstrumentCashExposure {
			out = append(out, QuoteBreach{
				Scope:        ScopeInstrument,
				Asset:        asset,
				Instrument:   ins.MarketIndex,
				CurrentCash:  cash,
				LimitCash:    params.MaxInstrumentCashExposure,
				RejectedSide: rejectedSide(cash),
			})
		}
	}
	netCash := net * theo
	if math.Abs(netCash) >= params.MaxNetCashExposure {
		out = append(out, QuoteBreach{
			Scope:        ScopeNet,
			Asset:        asset,
			CurrentCash:  netCash,
			LimitCash:    params.MaxNetCashExposure,
			RejectedSide: rejectedSide(netCash),
		})
	}
	return out
}

func rejectedSide(cash float64) order.QuoteSide {
	switch {
	case cash > 0:
		return order.QuoteBid
	case cash < 0:
		return order.QuoteAsk
	default:
		return order.RejectNeither
	}
}

// shouldRequote 数量不同、出现新位置、数量变化或价格偏离超过阈值时需要重报。
func shouldRequote(prev, next []order.Quote, requoteBps float64) bool {
	if len(prev) != len(next) {
		return true
	}
	bySlot := make(map[order.Slot]order.Quote, len(prev))
	for _, q := range prev {
		bySlot[q.Slot()] = q
	}
	for _, q := range next {
		old, ok := bySlot[q.Slot()]
		if !ok {
			return true
		}
		if old.Size != q.Size {
			return true
		}
		if strategy.DiffBps(old.Price, q.Price) > requoteBps {
			return true
		}
	}
	return false
}

// GetCurrentQuotes 上次下发的报价梯度
func (s *Store) GetCurrentQuotes(asset market.Asset) []order.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneQuotes(s.quotes[asset])
}

// GetBreaches 所有资产当前的限额触发，按资产名排序，同一资产内品种在前、净敞口在后。
func (s *Store) GetBreaches() []QuoteBreach {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := make([]market.Asset, 0, len(s.breaches))
	for a := range s.breaches {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
	var out []QuoteBreach
	for _, a := range assets {
		out = append(out, s.breaches[a]...)
	}
	return out
}

func cloneQuotes(in []order.Quote) []order.Quote {
	if len(in) == 0 {
		return nil
	}
	return append([]order.Quote(nil), in...)
}

func cloneBreaches(in []QuoteBreach) []QuoteBreach {
	if len(in) == 0 {
		return nil
	}
	return append([]QuoteBreach(nil), in...)
}
