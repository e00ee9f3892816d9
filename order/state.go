package order

import "hedge-maker-go/market"

// Side 对冲单方向，沿用交易所 BUY/SELL 写法。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// QuoteSide 报价方向；RejectNeither 仅用于风控结果，表示两侧都不拒绝。
type QuoteSide string

const (
	QuoteBid      QuoteSide = "bid"
	QuoteAsk      QuoteSide = "ask"
	RejectNeither QuoteSide = "neither"
)

// Side 将报价方向映射为下单方向。
func (s QuoteSide) Side() Side {
	if s == QuoteBid {
		return SideBuy
	}
	return SideSell
}

// Quote 某一品种某一档位的单边报价。
// ClientOrderID 作为撤改单的幂等键，由执行层与交易所挂单比对。
type Quote struct {
	Asset         market.Asset `json:"asset"`
	Instrument    int          `json:"marketIndex"`
	Level         int          `json:"level"`
	Side          QuoteSide    `json:"side"`
	Price         float64      `json:"price"`
	Size          float64      `json:"size"`
	ClientOrderID uint64       `json:"clientOrderId"`
}

// Slot 报价在阶梯中的位置（品种, 档位, 方向），用于新旧报价比对。
type Slot struct {
	Instrument int
	Level      int
	Side       QuoteSide
}

// Slot 返回报价所在位置。
func (q Quote) Slot() Slot {
	return Slot{Instrument: q.Instrument, Level: q.Level, Side: q.Side}
}

// CancelReplace 第 0 档需要先撤后挂，更高档位为追加。
func (q Quote) CancelReplace() bool {
	return q.Level == 0
}

// HedgeOrder 一次性对冲指令，执行层立即消费，不在状态中保留。
type HedgeOrder struct {
	Asset         market.Asset `json:"asset"`
	Side          Side         `json:"side"`
	Price         float64      `json:"price"`
	BaseAmount    float64      `json:"baseAmount"`
	ClientOrderID uint64       `json:"clientOrderId"`
}
