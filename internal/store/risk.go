package store

import (
	"time"

	"hedge-maker-go/inventory"
	"hedge-maker-go/market"
)

// RiskStats 场所账户的余额、保证金与未实现盈亏
type RiskStats struct {
	Balance          float64 `json:"balance"`
	Margin           float64 `json:"margin"`
	AvailableBalance float64 `json:"availableBalance"`
	PnL              float64 `json:"pnl"`
}

// AssetRisk 报价场所单个资产占用的保证金与盈亏
type AssetRisk struct {
	Margin float64 `json:"margin"`
	PnL    float64 `json:"pnl"`
}

// RiskRow 展示用的一行；Asset 为空表示账户汇总。
type RiskRow struct {
	Venue inventory.Venue `json:"venue"`
	Asset market.Asset    `json:"asset,omitempty"`
	RiskStats
	UpdatedAt time.Time `json:"updatedAt"`
}

type accountRisk struct {
	stats RiskStats
	at    time.Time
}

type assetRisk struct {
	risk AssetRisk
	at   time.Time
}

// RecordRiskStats 记录场所账户汇总，整体替换
func (s *Store) RecordRiskStats(venue inventory.Venue, stats RiskStats) {
	s.mu.Lock()
	s.accountRisk[venue] = accountRisk{stats: stats, at: s.now()}
	s.mu.Unlock()
	s.observer.AccountRiskUpdated(string(venue), stats.Balance, stats.Margin, stats.AvailableBalance, stats.PnL)
}

// RecordAssetRisk 记录报价场所单个资产的保证金与盈亏
func (s *Store) RecordAssetRisk(asset market.Asset, risk AssetRisk) {
	if _, ok := s.params[asset]; !ok {
		return
	}
	s.mu.Lock()
	s.assetRisk[asset] = assetRisk{risk: risk, at: s.now()}
	s.mu.Unlock()
	s.observer.AssetRiskUpdated(string(inventory.VenuePrimary), string(asset), risk.Margin, risk.PnL)
}

// GetRiskStats 报价场所汇总、报价场所各资产、对冲场所汇总，只包含已收到的部分。
func (s *Store) GetRiskStats() []RiskRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []RiskRow
	if a, ok := s.accountRisk[inventory.VenuePrimary]; ok {
		rows = append(rows, RiskRow{Venue: inventory.VenuePrimary, RiskStats: a.stats, UpdatedAt: a.at})
	}
	for _, asset := range s.Assets() {
		if a, ok := s.assetRisk[asset]; ok {
			rows = append(rows, RiskRow{
				Venue:     inventory.VenuePrimary,
				Asset:     asset,
				RiskStats: RiskStats{Margin: a.risk.Margin, PnL: a.risk.PnL},
				UpdatedAt: a.at,
			})
		}
	}
	if a, ok := s.accountRisk[inventory.VenueHedge]; ok {
		rows = append(rows, RiskRow{Venue: inventory.VenueHedge, RiskStats: a.stats, UpdatedAt: a.at})
	}
	return rows
}
