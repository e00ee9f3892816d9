package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hedge-maker-go/config"
	"hedge-maker-go/internal/engine"
	"hedge-maker-go/internal/store"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

// HedgeVenue 基于 REST 客户端的对冲场所：IOC 限价单、撤单、查仓位。
type HedgeVenue struct {
	client  *BinanceRESTClient
	symbols map[market.Asset]config.HedgeSymbol
	logger  *zap.Logger
}

// NewHedgeVenue 创建对冲场所
func NewHedgeVenue(client *BinanceRESTClient, symbols map[market.Asset]config.HedgeSymbol, logger *zap.Logger) *HedgeVenue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HedgeVenue{client: client, symbols: symbols, logger: logger.Named("hedge_venue")}
}

func (v *HedgeVenue) symbol(asset market.Asset) (config.HedgeSymbol, error) {
	s, ok := v.symbols[asset]
	if !ok {
		return config.HedgeSymbol{}, fmt.Errorf("no hedge symbol for asset %s", asset)
	}
	return s, nil
}

func constraintsOf(s config.HedgeSymbol) order.SymbolConstraints {
	return order.SymbolConstraints{TickSize: s.TickSize, StepSize: s.StepSize, MinQty: s.MinQty}
}

// SendHedgeOrders 逐笔发送；数量按步长向下取整，低于最小数量的跳过并返回 engine.ErrHedgeBelowMinQty。
func (v *HedgeVenue) SendHedgeOrders(ctx context.Context, orders []order.HedgeOrder) error {
	var errs []error
	for _, h := range orders {
		sym, err := v.symbol(h.Asset)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c := constraintsOf(sym)
		qty := c.RoundQty(h.BaseAmount)
		if qty <= 0 || (c.MinQty > 0 && qty < c.MinQty) {
			v.logger.Debug("hedge below min qty, skipped",
				zap.String("asset", string(h.Asset)),
				zap.Float64("base_amount", h.BaseAmount),
				zap.Float64("rounded", qty),
				zap.Float64("min_qty", c.MinQty))
			errs = append(errs, fmt.Errorf("%w: %s %s %v rounds to %v (min %v)",
				engine.ErrHedgeBelowMinQty, h.Side, sym.Symbol, h.BaseAmount, qty, c.MinQty))
			continue
		}
		price := c.RoundPrice(h.Price, h.Side)
		if err := c.Validate(price, qty); err != nil {
			errs = append(errs, fmt.Errorf("hedge %s %s: %w", h.Side, sym.Symbol, err))
			continue
		}
		resp, err := v.client.PlaceIOC(ctx, OrderRequest{
			Symbol:        sym.Symbol,
			Side:          string(h.Side),
			Price:         decimal.NewFromFloat(price).String(),
			Quantity:      decimal.NewFromFloat(qty).String(),
			ClientOrderID: strconv.FormatUint(h.ClientOrderID, 10),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("hedge %s %s: %w", h.Side, sym.Symbol, err))
			continue
		}
		v.logger.Info("hedge order accepted",
			zap.String("symbol", sym.Symbol),
			zap.Int64("order_id", resp.OrderID),
			zap.String("status", resp.Status),
			zap.String("executed_qty", resp.ExecutedQty))
	}
	return errors.Join(errs...)
}

// Position 合约净仓位（双向持仓模式下多空相加）。
func (v *HedgeVenue) Position(ctx context.Context, asset market.Asset) (float64, error) {
	sym, err := v.symbol(asset)
	if err != nil {
		return 0, err
	}
	risks, err := v.client.PositionRisk(ctx, sym.Symbol)
	if err != nil {
		return 0, err
	}
	net := decimal.Zero
	for _, r := range risks {
		if r.Symbol == sym.Symbol {
			net = net.Add(decimal.NewFromFloat(r.PositionAmt))
		}
	}
	return net.InexactFloat64(), nil
}

// CancelAll 撤销资产对应合约的全部挂单
func (v *HedgeVenue) CancelAll(ctx context.Context, asset market.Asset) error {
	sym, err := v.symbol(asset)
	if err != nil {
		return err
	}
	return v.client.CancelAllOpenOrders(ctx, sym.Symbol)
}

// RiskStats 账户余额、初始保证金、可用余额与未实现盈亏
func (v *HedgeVenue) RiskStats(ctx context.Context) (store.RiskStats, error) {
	acct, err := v.client.Account(ctx)
	if err != nil {
		return store.RiskStats{}, err
	}
	return store.RiskStats{
		Balance:          acct.TotalWalletBalance,
		Margin:           acct.TotalInitialMargin,
		AvailableBalance: acct.AvailableBalance,
		PnL:              acct.TotalUnrealizedProfit,
	}, nil
}

// Positions 所有配置资产的仓位，供命令行工具使用
func (v *HedgeVenue) Positions(ctx context.Context) (map[market.Asset]float64, error) {
	out := make(map[market.Asset]float64, len(v.symbols))
	for asset := range v.symbols {
		pos, err := v.Position(ctx, asset)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", asset, err)
		}
		out[asset] = pos
	}
	return out, nil
}
