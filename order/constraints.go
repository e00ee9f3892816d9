package order

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// SymbolConstraints 描述交易对的步长与名义限制（来自 exchangeInfo）。
type SymbolConstraints struct {
	TickSize    float64
	StepSize    float64
	MinQty      float64
	MaxQty      float64
	MinNotional float64
}

// Validate 检查订单价格/数量是否符合精度与最小名义。
func (c SymbolConstraints) Validate(price, qty float64) error {
	if c.TickSize > 0 && !isMultiple(price, c.TickSize) {
		return fmt.Errorf("price %.8f not aligned to tickSize %.8f", price, c.TickSize)
	}
	if c.StepSize > 0 && !isMultiple(qty, c.StepSize) {
		return fmt.Errorf("qty %.8f not aligned to stepSize %.8f", qty, c.StepSize)
	}
	if c.MinQty > 0 && qty < c.MinQty {
		return fmt.Errorf("qty %.8f < minQty %.8f", qty, c.MinQty)
	}
	if c.MaxQty > 0 && qty > c.MaxQty {
		return fmt.Errorf("qty %.8f > maxQty %.8f", qty, c.MaxQty)
	}
	if c.MinNotional > 0 && price*qty < c.MinNotional {
		return fmt.Errorf("notional %.8f < minNotional %.8f", price*qty, c.MinNotional)
	}
	return nil
}

// RoundQty 数量向下取整到 stepSize，避免对冲超量。
func (c SymbolConstraints) RoundQty(qty float64) float64 {
	if c.StepSize <= 0 {
		return qty
	}
	step := decimal.NewFromFloat(c.StepSize)
	return decimal.NewFromFloat(qty).Div(step).Floor().Mul(step).InexactFloat64()
}

// RoundPrice 价格对齐 tickSize；买单向上、卖单向下取整，保持 IOC 的可成交性。
func (c SymbolConstraints) RoundPrice(price float64, side Side) float64 {
	if c.TickSize <= 0 {
		return price
	}
	tick := decimal.NewFromFloat(c.TickSize)
	ticks := decimal.NewFromFloat(price).Div(tick)
	if side == SideBuy {
		ticks = ticks.Ceil()
	} else {
		ticks = ticks.Floor()
	}
	return ticks.Mul(tick).InexactFloat64()
}

func isMultiple(value, step float64) bool {
	if step <= 0 {
		return true
	}
	ratio := value / step
	return math.Abs(ratio-math.Round(ratio)) <= 1e-8
}
