package strategy

import (
	"errors"

	"hedge-maker-go/market"
)

// ErrEmptyBook 买卖一档数量之和为 0，无法给出加权中间价。
var ErrEmptyBook = errors.New("empty top of book")

// FairPrice 按对手方数量加权的中间价：(pb·qa + pa·qb)/(qa+qb)。
// 卖单越厚，价格越靠近买价。
func FairPrice(bid, ask market.PriceLevel) (float64, error) {
	total := bid.Size + ask.Size
	if total <= 0 {
		return 0, ErrEmptyBook
	}
	return (bid.Price*ask.Size + ask.Price*bid.Size) / total, nil
}
