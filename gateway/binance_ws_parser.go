package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hedge-maker-go/market"
)

// ErrNotBookTicker 消息不是 bookTicker 推送（订阅回执等）。
var ErrNotBookTicker = errors.New("not a bookTicker message")

// CombinedMessage 对应 binance combined stream 包装。
type CombinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTicker <symbol>@bookTicker 推送的最优买卖一档。
type BookTicker struct {
	EventType string      `json:"e"`
	UpdateID  int64       `json:"u"`
	EventTime int64       `json:"E"`
	TxTime    int64       `json:"T"`
	Symbol    string      `json:"s"`
	BidPrice  json.Number `json:"b"`
	BidQty    json.Number `json:"B"`
	AskPrice  json.Number `json:"a"`
	AskQty    json.Number `json:"A"`
}

// ParseBookTicker 解析单流或 combined stream 的 bookTicker 消息。
func ParseBookTicker(raw []byte) (BookTicker, error) {
	var msg CombinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return BookTicker{}, err
	}
	if len(msg.Data) > 0 {
		raw = msg.Data
	}
	var bt BookTicker
	if err := json.Unmarshal(raw, &bt); err != nil {
		return BookTicker{}, err
	}
	if bt.Symbol == "" || (bt.EventType != "" && bt.EventType != "bookTicker") {
		return BookTicker{}, ErrNotBookTicker
	}
	return bt, nil
}

// TopOfBook 转换为内部盘口；事件时间缺失时使用 now。
func (b BookTicker) TopOfBook(asset market.Asset, now time.Time) (market.TopOfBook, error) {
	var (
		tob  = market.TopOfBook{Asset: asset, Timestamp: now}
		errs []error
	)
	parse := func(name string, n json.Number) float64 {
		v, err := n.Float64()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", name, n, err))
		}
		return v
	}
	tob.Bid.Price = parse("bid price", b.BidPrice)
	tob.Bid.Size = parse("bid qty", b.BidQty)
	tob.Ask.Price = parse("ask price", b.AskPrice)
	tob.Ask.Size = parse("ask qty", b.AskQty)
	if err := errors.Join(errs...); err != nil {
		return market.TopOfBook{}, fmt.Errorf("%s: %w", b.Symbol, err)
	}
	if b.EventTime > 0 {
		tob.Timestamp = time.UnixMilli(b.EventTime)
	}
	return tob, nil
}

// bookTickerStream 单流订阅名
func bookTickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}
