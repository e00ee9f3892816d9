package config

import (
	"errors"
	"fmt"
	"sort"

	"hedge-maker-go/market"
)

// ErrInvalid 配置校验失败，具体原因见包装信息。
var ErrInvalid = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate ensures required fields are present and ranges are sane.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return invalid("env is required")
	}
	if cfg.QuoteIntervalMs <= 0 {
		return invalid("quoteIntervalMs must be > 0")
	}
	if cfg.PositionRefreshIntervalMs <= 0 {
		return invalid("positionRefreshIntervalMs must be > 0")
	}
	if cfg.MarkPriceStaleIntervalMs <= 0 {
		return invalid("markPriceStaleIntervalMs must be > 0")
	}
	if cfg.LockingIntervalMs < 0 {
		return invalid("lockingIntervalMs must be >= 0")
	}
	if cfg.CashDeltaHedgeThreshold <= 0 {
		return invalid("cashDeltaHedgeThreshold must be > 0")
	}
	if cfg.Hedge.APIKey == "" || cfg.Hedge.APISecret == "" {
		return invalid("hedge.apiKey/apiSecret is required (or env overrides)")
	}
	if cfg.Primary.NatsURL == "" {
		return invalid("primary.natsURL is required (or MM_NATS_URL)")
	}
	if len(cfg.Assets) == 0 {
		return invalid("assets config is required")
	}
	for _, asset := range cfg.AssetList() {
		if err := validateAsset(asset, cfg.Assets[asset]); err != nil {
			return err
		}
		hs, ok := cfg.Hedge.Symbols[asset]
		if !ok || hs.Symbol == "" {
			return invalid("hedge.symbols.%s is required", asset)
		}
		if hs.StepSize <= 0 || hs.TickSize <= 0 {
			return invalid("hedge.symbols.%s tickSize/stepSize must be > 0", asset)
		}
	}
	return nil
}

func validateAsset(asset market.Asset, p AssetParams) error {
	if p.QuoteLotSize <= 0 {
		return invalid("asset %s quoteLotSize must be > 0", asset)
	}
	if p.WidthBps <= 0 {
		return invalid("asset %s widthBps must be > 0", asset)
	}
	if p.LeanBps < 0 {
		return invalid("asset %s leanBps must be >= 0", asset)
	}
	if p.RequoteBps < 0 {
		return invalid("asset %s requoteBps must be >= 0", asset)
	}
	if p.MaxInstrumentCashExposure <= 0 || p.MaxNetCashExposure <= 0 {
		return invalid("asset %s cash exposure limits must be > 0", asset)
	}
	if len(p.Instruments) == 0 {
		return invalid("asset %s needs at least one instrument", asset)
	}
	seen := make(map[int]bool, len(p.Instruments))
	for _, ins := range p.Instruments {
		if seen[ins.MarketIndex] {
			return invalid("asset %s marketIndex %d listed twice", asset, ins.MarketIndex)
		}
		seen[ins.MarketIndex] = true
		if len(ins.Levels) == 0 {
			return invalid("asset %s marketIndex %d has no levels", asset, ins.MarketIndex)
		}
		for i, lv := range ins.Levels {
			// priceIncr >= 1 会让 bid 变成非正数
			if lv.PriceIncr < 0 || lv.PriceIncr >= 1 {
				return invalid("asset %s marketIndex %d level %d priceIncr must be in [0,1)", asset, ins.MarketIndex, i)
			}
			if lv.QuoteCashDelta <= 0 {
				return invalid("asset %s marketIndex %d level %d quoteCashDelta must be > 0", asset, ins.MarketIndex, i)
			}
		}
	}
	return nil
}

func sortAssets(assets []market.Asset) {
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
}
