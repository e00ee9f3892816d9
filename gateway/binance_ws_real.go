package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hedge-maker-go/market"
)

// BinanceFuturesWSEndpoint U 本位合约单流地址
const BinanceFuturesWSEndpoint = "wss://fstream.binance.com/ws"

const defaultReadTimeout = 30 * time.Second

// BookTickerFeed 订阅对冲场所 <symbol>@bookTicker，作为做市的价格来源。
// 每次 Watch 是一条连接；断线即返回错误，重连由调用方负责。
type BookTickerFeed struct {
	Endpoint    string
	Symbols     map[market.Asset]string
	Dialer      *websocket.Dialer
	ReadTimeout time.Duration

	logger *zap.Logger
	now    func() time.Time
}

// NewBookTickerFeed 创建行情源
func NewBookTickerFeed(endpoint string, symbols map[market.Asset]string, logger *zap.Logger) *BookTickerFeed {
	if endpoint == "" {
		endpoint = BinanceFuturesWSEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookTickerFeed{
		Endpoint:    strings.TrimRight(endpoint, "/"),
		Symbols:     symbols,
		Dialer:      websocket.DefaultDialer,
		ReadTimeout: defaultReadTimeout,
		logger:      logger.Named("book_ticker"),
		now:         time.Now,
	}
}

// Watch 连接并持续推送 asset 的盘口，直到连接出错或 ctx 结束。
func (f *BookTickerFeed) Watch(ctx context.Context, asset market.Asset, onTick func(market.TopOfBook)) error {
	symbol, ok := f.Symbols[asset]
	if !ok {
		return fmt.Errorf("no hedge symbol for asset %s", asset)
	}
	url := f.Endpoint + "/" + bookTickerStream(symbol)
	conn, _, err := f.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	// ctx 结束时关闭连接以打断阻塞的读
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log := f.logger.With(zap.String("asset", string(asset)), zap.String("symbol", symbol))
	log.Info("book ticker connected", zap.String("url", url))

	_ = conn.SetReadDeadline(f.now().Add(f.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(f.now().Add(f.ReadTimeout))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read %s: %w", symbol, err)
		}
		_ = conn.SetReadDeadline(f.now().Add(f.ReadTimeout))

		bt, err := ParseBookTicker(msg)
		if err != nil {
			if !errors.Is(err, ErrNotBookTicker) {
				log.Warn("parse book ticker", zap.Error(err))
			}
			continue
		}
		if !strings.EqualFold(bt.Symbol, symbol) {
			continue
		}
		tob, err := bt.TopOfBook(asset, f.now())
		if err != nil {
			log.Warn("invalid book ticker", zap.Error(err))
			continue
		}
		onTick(tob)
	}
}
