package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundLot 向下取整到 lot 的整数倍，结果保留 3 位小数。
// lot <= 0 时只按 3 位小数四舍五入。
func RoundLot(size, lot float64) float64 {
	d := decimal.NewFromFloat(size)
	if lot > 0 {
		l := decimal.NewFromFloat(lot)
		d = d.Div(l).Floor().Mul(l)
	}
	v, _ := d.Round(3).Float64()
	return v
}

// DiffBps 新旧价格的相对变化（bps）。old 为 0 时除非 new 也为 0，否则视为无限大。
func DiffBps(oldPrice, newPrice float64) float64 {
	if oldPrice == 0 {
		if newPrice == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(oldPrice-newPrice) / math.Abs(oldPrice) * BPS
}
