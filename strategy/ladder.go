package strategy

import (
	"hedge-maker-go/config"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

// BuildLadder 为每个品种的每一档生成一对报价，第 0 档在前。
// 档位越外价格越远：bid = Bid·(1-priceIncr)，ask = Ask·(1+priceIncr)；
// 数量按该档现金名义折算成基础资产后向下取整到 lotSize。
// ClientOrderID 留空，由状态层在真正下发时分配。
func BuildLadder(asset market.Asset, instruments []config.Instrument, theo float64, spread Quotes, lotSize float64) []order.Quote {
	if theo <= 0 {
		return nil
	}
	n := 0
	for _, ins := range instruments {
		n += 2 * len(ins.Levels)
	}
	quotes := make([]order.Quote, 0, n)
	for _, ins := range instruments {
		for lvl, l := range ins.Levels {
			size := RoundLot(l.QuoteCashDelta/theo, lotSize)
			quotes = append(quotes,
				order.Quote{
					Asset:      asset,
					Instrument: ins.MarketIndex,
					Level:      lvl,
					Side:       order.QuoteBid,
					Price:      spread.Bid * (1 - l.PriceIncr),
					Size:       size,
				},
				order.Quote{
					Asset:      asset,
					Instrument: ins.MarketIndex,
					Level:      lvl,
					Side:       order.QuoteAsk,
					Price:      spread.Ask * (1 + l.PriceIncr),
					Size:       size,
				},
			)
		}
	}
	return quotes
}
