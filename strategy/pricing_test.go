package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedge-maker-go/config"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

func TestFairPrice(t *testing.T) {
	theo, err := FairPrice(market.PriceLevel{Price: 100, Size: 2}, market.PriceLevel{Price: 102, Size: 3})
	require.NoError(t, err)
	assert.InDelta(t, 100.8, theo, 1e-9)

	// 只有一侧有量时价格落在另一侧
	theo, err = FairPrice(market.PriceLevel{Price: 100, Size: 0}, market.PriceLevel{Price: 102, Size: 5})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, theo, 1e-9)

	_, err = FairPrice(market.PriceLevel{Price: 100}, market.PriceLevel{Price: 102})
	assert.ErrorIs(t, err, ErrEmptyBook)
}

func TestFairPriceWithinBook(t *testing.T) {
	for _, sizes := range [][2]float64{{1, 1}, {0.001, 900}, {900, 0.001}, {3, 7}} {
		theo, err := FairPrice(market.PriceLevel{Price: 99.5, Size: sizes[0]}, market.PriceLevel{Price: 100.5, Size: sizes[1]})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, theo, 99.5)
		assert.LessOrEqual(t, theo, 100.5)
	}
}

func TestSpreadWithLean(t *testing.T) {
	assert.InDelta(t, -15.0, Lean(100, 20, 5, 1000, 10), 1e-9)

	q := Spread(100, 20, 5, 1000, 10)
	assert.InDelta(t, 99.65, q.Bid, 1e-9)
	assert.InDelta(t, 100.05, q.Ask, 1e-9)
}

func TestSpreadLeanIsCapped(t *testing.T) {
	tests := []struct {
		name      string
		baseDelta float64
		lean      float64
	}{
		{"deep long", 1000, -30},
		{"deep short", -1000, 30},
		{"flat", 0, 0},
		{"small short", -2, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lean := Lean(100, 20, tt.baseDelta, 1000, 10)
			assert.InDelta(t, tt.lean, lean, 1e-9)

			q := Spread(100, 20, tt.baseDelta, 1000, 10)
			assert.Less(t, q.Bid, q.Ask, "quotes must never cross")
		})
	}
}

func TestSpreadWithoutCashLimitHasNoLean(t *testing.T) {
	assert.Equal(t, SpreadNoLean(100, 20), Spread(100, 20, 50, 0, 10))
}

func TestSpreadNoLeanSymmetric(t *testing.T) {
	q := SpreadNoLean(250, 40)
	assert.InDelta(t, 249.0, q.Bid, 1e-9)
	assert.InDelta(t, 251.0, q.Ask, 1e-9)
	assert.InDelta(t, 250-q.Bid, q.Ask-250, 1e-9)

	assert.Equal(t, q, Spread(250, 40, 0, 1000, 0))
}

func TestRoundLot(t *testing.T) {
	tests := []struct {
		size, lot, want float64
	}{
		{1.2345, 0.01, 1.23},
		{1.2399, 0.01, 1.23},
		{0.0009, 0.001, 0},
		{19.84, 0.1, 19.8},
		{7, 2, 6},
		{1.23456, 0, 1.235},
		{0.3, 0.1, 0.3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundLot(tt.size, tt.lot), "size=%v lot=%v", tt.size, tt.lot)
	}
}

func TestDiffBps(t *testing.T) {
	assert.InDelta(t, 10.0, DiffBps(100, 100.1), 1e-9)
	assert.InDelta(t, 10.0, DiffBps(100, 99.9), 1e-9)
	assert.Zero(t, DiffBps(0, 0))
	assert.True(t, math.IsInf(DiffBps(0, 1), 1))
}

func TestBuildLadder(t *testing.T) {
	instruments := []config.Instrument{
		{MarketIndex: 137, Levels: []config.Level{{PriceIncr: 0, QuoteCashDelta: 1000}, {PriceIncr: 0.01, QuoteCashDelta: 2000}}},
		{MarketIndex: 22, Levels: []config.Level{{PriceIncr: 0, QuoteCashDelta: 500}}},
	}
	spread := Quotes{Bid: 99, Ask: 101}

	quotes := BuildLadder("SOL", instruments, 100, spread, 0.1)
	require.Len(t, quotes, 6)

	assert.Equal(t, order.Quote{Asset: "SOL", Instrument: 137, Level: 0, Side: order.QuoteBid, Price: 99, Size: 10}, quotes[0])
	assert.Equal(t, order.Quote{Asset: "SOL", Instrument: 137, Level: 0, Side: order.QuoteAsk, Price: 101, Size: 10}, quotes[1])

	assert.Equal(t, 1, quotes[2].Level)
	assert.InDelta(t, 98.01, quotes[2].Price, 1e-9)
	assert.InDelta(t, 102.01, quotes[3].Price, 1e-9)
	assert.Equal(t, 20.0, quotes[3].Size)

	assert.Equal(t, 22, quotes[4].Instrument)
	assert.Equal(t, 0, quotes[4].Level)
	assert.Equal(t, 5.0, quotes[5].Size)

	for _, q := range quotes {
		assert.Zero(t, q.ClientOrderID)
	}
}

func TestBuildLadderWithoutTheo(t *testing.T) {
	assert.Empty(t, BuildLadder("SOL", []config.Instrument{{Levels: []config.Level{{QuoteCashDelta: 1}}}}, 0, Quotes{}, 0.1))
}
