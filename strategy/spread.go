package strategy

import "math"

// BPS 基点换算因子。
const BPS = 10000.0

// Quotes 一对买卖报价（尚未分档）。
type Quotes struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// Lean 库存偏移（bps），多头为负，绝对值不超过 spreadBps+leanBps。
// cashLimit <= 0 时不做偏移。
func Lean(theo, spreadBps, baseDelta, cashLimit, leanBps float64) float64 {
	if cashLimit <= 0 {
		return 0
	}
	capBps := spreadBps + leanBps
	notional := baseDelta * theo
	lean := -notional / cashLimit * capBps
	if notional > 0 {
		return math.Max(lean, -capBps)
	}
	return math.Min(lean, capBps)
}

// Spread 以 theo 为中心、带库存偏移的买卖价。
// 多头时两侧同时下移：更愿意卖、更不愿意买。偏移上限保证报价不会交叉。
func Spread(theo, spreadBps, baseDelta, cashLimit, leanBps float64) Quotes {
	lean := Lean(theo, spreadBps, baseDelta, cashLimit, leanBps)
	return Quotes{
		Bid: theo + theo*(-spreadBps+lean)/BPS,
		Ask: theo + theo*(spreadBps+lean)/BPS,
	}
}

// SpreadNoLean 不跟踪库存时的对称报价。
func SpreadNoLean(theo, spreadBps float64) Quotes {
	return Quotes{
		Bid: theo - theo*spreadBps/BPS,
		Ask: theo + theo*spreadBps/BPS,
	}
}
