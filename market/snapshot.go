package market

import "time"

// Asset 标的资产标识（BTC、ETH、SOL...），配置期确定，运行期不可变。
type Asset string

func (a Asset) String() string { return string(a) }

// TopOfBook 对冲场所推送的最优买卖档。
type TopOfBook struct {
	Asset     Asset
	Bid       PriceLevel
	Ask       PriceLevel
	Timestamp time.Time
}

// Theo 某一时刻的公允价快照，每次行情整体替换，不做部分更新。
type Theo struct {
	Price     float64    `json:"theo"`
	TopBid    PriceLevel `json:"topBid"`
	TopAsk    PriceLevel `json:"topAsk"`
	Timestamp time.Time  `json:"timestamp"`
}

// Age 返回快照相对 now 的时长。
func (t Theo) Age(now time.Time) time.Duration {
	return now.Sub(t.Timestamp)
}
