package engine

import (
	"context"
	"errors"
	"time"

	"hedge-maker-go/internal/store"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

// ErrHedgeBelowMinQty 对冲数量按步长取整后低于场所最小下单量，未发送。
var ErrHedgeBelowMinQty = errors.New("hedge below venue min qty")

// PriceFeed 对冲场所的一档行情。Watch 阻塞直到 ctx 结束或连接出错。
type PriceFeed interface {
	Watch(ctx context.Context, asset market.Asset, onTick func(market.TopOfBook)) error
}

// InstrumentPosition 报价场所上单个品种的仓位
type InstrumentPosition struct {
	Instrument int     `json:"marketIndex"`
	Size       float64 `json:"size"`
}

// PrimarySnapshot 报价场所某资产的挂单、仓位与保证金。
// 未列出的品种视为零仓位。
type PrimarySnapshot struct {
	OpenClientOrderIDs []uint64             `json:"openClientOrderIds"`
	Positions          []InstrumentPosition `json:"positions"`
	Margin             float64              `json:"margin"`
	PnL                float64              `json:"pnl"`
}

// EventKind 报价场所推送的事件类型
type EventKind string

const (
	EventFill    EventKind = "fill"
	EventUser    EventKind = "user"
	EventFunding EventKind = "funding"
)

// VenueEvent 报价场所事件。FundingRate 为单期费率，仅 EventFunding 使用。
type VenueEvent struct {
	Kind        EventKind    `json:"kind"`
	Asset       market.Asset `json:"asset"`
	FundingRate float64      `json:"fundingRate,omitempty"`
}

// PrimaryVenue 报价场所
type PrimaryVenue interface {
	// SendQuotes 以原子的“撤单再挂单”下发一个资产的报价梯度
	SendQuotes(ctx context.Context, asset market.Asset, quotes []order.Quote) error
	Snapshot(ctx context.Context, asset market.Asset) (PrimarySnapshot, error)
	// CancelAll 撤掉所有挂单，返回撤单后仍存在的挂单数
	CancelAll(ctx context.Context) (remaining int, err error)
	// RiskStats 账户汇总的余额、保证金与盈亏
	RiskStats(ctx context.Context) (store.RiskStats, error)
	// Events 订阅事件，返回取消订阅函数
	Events(handler func(VenueEvent)) (unsubscribe func(), err error)
}

// HedgeVenue 对冲场所
type HedgeVenue interface {
	// SendHedgeOrders 数量不足最小下单量的指令跳过，并返回包装 ErrHedgeBelowMinQty 的错误
	SendHedgeOrders(ctx context.Context, orders []order.HedgeOrder) error
	Position(ctx context.Context, asset market.Asset) (float64, error)
	CancelAll(ctx context.Context, asset market.Asset) error
	RiskStats(ctx context.Context) (store.RiskStats, error)
}

// Metrics 引擎自身的指标
type Metrics interface {
	RecordFeedRestart(asset string)
	RecordSendError(venue, op string)
	UpdateTheoAge(asset string, age time.Duration)
}
