package market

// PriceLevel 单一价位：价格与挂单数量。
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Valid 价格与数量均为正。
func (l PriceLevel) Valid() bool {
	return l.Price > 0 && l.Size >= 0
}

// Crossed 买价不低于卖价时认为盘口交叉。
func (t TopOfBook) Crossed() bool {
	return t.Bid.Price >= t.Ask.Price
}
