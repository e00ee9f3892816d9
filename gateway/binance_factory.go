package gateway

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hedge-maker-go/config"
	"hedge-maker-go/market"
)

// BuildHedgeGateway 根据配置构建对冲场所与行情源（不发起连接）。
// observer 可为 nil。
func BuildHedgeGateway(cfg config.HedgeConfig, logger *zap.Logger, observer RESTObserver) (*HedgeVenue, *BookTickerFeed) {
	rest := &BinanceRESTClient{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Secret:       cfg.APISecret,
		RecvWindowMs: int64(cfg.RecvWindowMs),
		HTTPClient:   NewDefaultHTTPClient(),
		Observer:     observer,
	}
	if cfg.RateLimit > 0 {
		rest.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}
	symbols := make(map[market.Asset]string, len(cfg.Symbols))
	for asset, s := range cfg.Symbols {
		symbols[asset] = s.Symbol
	}
	return NewHedgeVenue(rest, cfg.Symbols, logger), NewBookTickerFeed(cfg.WSURL, symbols, logger)
}
