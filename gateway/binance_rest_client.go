package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// BinanceFuturesRESTEndpoint U 本位合约 REST 地址
const BinanceFuturesRESTEndpoint = "https://fapi.binance.com"

// RESTObserver 记录每次 REST 调用的结果
type RESTObserver interface {
	RecordREST(action string, status int, elapsed time.Duration)
}

// APIError 交易所返回的业务错误
type APIError struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error: status=%d code=%d msg=%s", e.Status, e.Code, e.Msg)
}

// BinanceRESTClient 签名 REST 客户端，HTTPClient 可注入 httptest。
type BinanceRESTClient struct {
	BaseURL      string
	APIKey       string
	Secret       string
	RecvWindowMs int64
	HTTPClient   *http.Client
	Limiter      *rate.Limiter // 可选
	Observer     RESTObserver  // 可选
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// OrderRequest IOC 限价单参数
type OrderRequest struct {
	Symbol        string
	Side          string
	Price         string
	Quantity      string
	ClientOrderID string
}

// OrderResponse /fapi/v1/order 返回中用到的字段
type OrderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
}

// PositionRisk /fapi/v2/positionRisk 单条记录
type PositionRisk struct {
	Symbol           string  `json:"symbol"`
	PositionAmt      float64 `json:"positionAmt,string"`
	EntryPrice       float64 `json:"entryPrice,string"`
	MarkPrice        float64 `json:"markPrice,string"`
	UnrealizedProfit float64 `json:"unRealizedProfit,string"`
	PositionSide     string  `json:"positionSide"`
}

// AccountInfo /fapi/v2/account 的汇总字段（USDT 计价）
type AccountInfo struct {
	TotalWalletBalance    float64 `json:"totalWalletBalance,string"`
	TotalInitialMargin    float64 `json:"totalInitialMargin,string"`
	TotalMaintMargin      float64 `json:"totalMaintMargin,string"`
	TotalUnrealizedProfit float64 `json:"totalUnrealizedProfit,string"`
	TotalMarginBalance    float64 `json:"totalMarginBalance,string"`
	AvailableBalance      float64 `json:"availableBalance,string"`
}

// PlaceIOC 下 IOC 限价单。
func (c *BinanceRESTClient) PlaceIOC(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "IOC")
	params.Set("price", req.Price)
	params.Set("quantity", req.Quantity)
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	var resp OrderResponse
	err := c.do(ctx, "place_order", http.MethodPost, "/fapi/v1/order", params, &resp)
	return resp, err
}

// CancelAllOpenOrders 撤销 symbol 的全部挂单。
func (c *BinanceRESTClient) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	return c.do(ctx, "cancel_all", http.MethodDelete, "/fapi/v1/allOpenOrders", params, nil)
}

// PositionRisk 查询持仓；symbol 为空时返回全部。
func (c *BinanceRESTClient) PositionRisk(ctx context.Context, symbol string) ([]PositionRisk, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	var out []PositionRisk
	if err := c.do(ctx, "position_risk", http.MethodGet, "/fapi/v2/positionRisk", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Account 查询账户汇总。
func (c *BinanceRESTClient) Account(ctx context.Context) (AccountInfo, error) {
	var out AccountInfo
	err := c.do(ctx, "account", http.MethodGet, "/fapi/v2/account", url.Values{}, &out)
	return out, err
}

func (c *BinanceRESTClient) do(ctx context.Context, action, method, path string, params url.Values, out any) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit: %w", action, err)
		}
	}
	query, sig := SignParams(params, c.Secret, c.RecvWindowMs)
	endpoint := strings.TrimRight(c.BaseURL, "/") + path + "?" + query + "&signature=" + sig
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.record(action, 0, start)
		return fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()
	c.record(action, resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", action, err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Msg == "" {
			apiErr.Msg = strconv.Quote(string(body))
		}
		return fmt.Errorf("%s: %w", action, apiErr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %w", action, err)
	}
	return nil
}

func (c *BinanceRESTClient) record(action string, status int, start time.Time) {
	if c.Observer != nil {
		c.Observer.RecordREST(action, status, time.Since(start))
	}
}
