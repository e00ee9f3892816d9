package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hedge-maker-go/infrastructure/logger"
	"hedge-maker-go/market"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env string `yaml:"env"`

	QuoteIntervalMs           int `yaml:"quoteIntervalMs"`           // 报价巡检周期
	PositionRefreshIntervalMs int `yaml:"positionRefreshIntervalMs"` // 仓位刷新周期
	MarkPriceStaleIntervalMs  int `yaml:"markPriceStaleIntervalMs"`  // theo 超过该时长视为失效
	LockingIntervalMs         int `yaml:"lockingIntervalMs"`         // 同一资源两次执行的最小间隔
	RiskStatsFetchIntervalMs  int `yaml:"riskStatsFetchIntervalMs"`  // 保证金与盈亏拉取周期

	// 净现金敞口超过该值触发对冲
	CashDeltaHedgeThreshold float64 `yaml:"cashDeltaHedgeThreshold"`

	StatusAddr       string `yaml:"statusAddr"`
	RestartCountFile string `yaml:"restartCountFile"`

	Log     logger.Config                `yaml:"log"`
	Primary PrimaryConfig                `yaml:"primary"`
	Hedge   HedgeConfig                  `yaml:"hedge"`
	Assets  map[market.Asset]AssetParams `yaml:"assets"`
}

// PrimaryConfig 报价场所通过 NATS 桥接。
type PrimaryConfig struct {
	NatsURL       string `yaml:"natsURL"`
	SubjectPrefix string `yaml:"subjectPrefix"`
	RequestTimeMs int    `yaml:"requestTimeoutMs"`
}

// HedgeConfig 对冲场所（Binance U 本位合约）。
type HedgeConfig struct {
	APIKey       string                       `yaml:"apiKey"`
	APISecret    string                       `yaml:"apiSecret"`
	BaseURL      string                       `yaml:"baseURL"`
	WSURL        string                       `yaml:"wsURL"`
	RecvWindowMs int                          `yaml:"recvWindowMs"`
	RateLimit    float64                      `yaml:"rateLimit"` // 每秒请求数
	Symbols      map[market.Asset]HedgeSymbol `yaml:"symbols"`
}

// HedgeSymbol 资产在对冲场所的合约与精度。
type HedgeSymbol struct {
	Symbol   string  `yaml:"symbol"`
	TickSize float64 `yaml:"tickSize"`
	StepSize float64 `yaml:"stepSize"`
	MinQty   float64 `yaml:"minQty"`
}

// Level 报价梯度的一档：相对价差偏移与该档的现金名义。
type Level struct {
	PriceIncr      float64 `yaml:"priceIncr"`
	QuoteCashDelta float64 `yaml:"quoteCashDelta"`
}

// Instrument 报价场所上的一个合约及其梯度，Levels[0] 为最内档。
type Instrument struct {
	MarketIndex int     `yaml:"marketIndex"`
	Levels      []Level `yaml:"levels"`
}

// AssetParams 单个资产的报价参数，启动后只读。
type AssetParams struct {
	QuoteLotSize              float64      `yaml:"quoteLotSize"`
	WidthBps                  float64      `yaml:"widthBps"`
	LeanBps                   float64      `yaml:"leanBps"`
	RequoteBps                float64      `yaml:"requoteBps"`
	MaxInstrumentCashExposure float64      `yaml:"maxInstrumentCashExposure"`
	MaxNetCashExposure        float64      `yaml:"maxNetCashExposure"`
	Instruments               []Instrument `yaml:"instruments"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// QuoteInterval 报价巡检周期。
func (c AppConfig) QuoteInterval() time.Duration { return ms(c.QuoteIntervalMs) }

// PositionRefreshInterval 仓位刷新周期。
func (c AppConfig) PositionRefreshInterval() time.Duration { return ms(c.PositionRefreshIntervalMs) }

// MarkPriceStaleInterval theo 失效阈值。
func (c AppConfig) MarkPriceStaleInterval() time.Duration { return ms(c.MarkPriceStaleIntervalMs) }

// LockingInterval 锁冷却时间。
func (c AppConfig) LockingInterval() time.Duration { return ms(c.LockingIntervalMs) }

// RiskStatsFetchInterval 保证金与盈亏拉取周期。
func (c AppConfig) RiskStatsFetchInterval() time.Duration { return ms(c.RiskStatsFetchIntervalMs) }

// AssetList 按名称排序的资产列表。
func (c AppConfig) AssetList() []market.Asset {
	out := make([]market.Asset, 0, len(c.Assets))
	for a := range c.Assets {
		out = append(out, a)
	}
	sortAssets(out)
	return out
}

// Load reads YAML config from path, applies defaults and validates.
func Load(path string) (AppConfig, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MM_HEDGE_API_KEY"); v != "" {
		cfg.Hedge.APIKey = v
	}
	if v := os.Getenv("MM_HEDGE_API_SECRET"); v != "" {
		cfg.Hedge.APISecret = v
	}
	if v := os.Getenv("MM_NATS_URL"); v != "" {
		cfg.Primary.NatsURL = v
	}
	return cfg, Validate(cfg)
}

func read(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.RiskStatsFetchIntervalMs <= 0 {
		cfg.RiskStatsFetchIntervalMs = 60000
	}
	if cfg.StatusAddr == "" {
		cfg.StatusAddr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log = logger.DefaultConfig()
	}
	if cfg.Primary.SubjectPrefix == "" {
		cfg.Primary.SubjectPrefix = "primary"
	}
	if cfg.Primary.RequestTimeMs <= 0 {
		cfg.Primary.RequestTimeMs = 2000
	}
	if cfg.Hedge.BaseURL == "" {
		cfg.Hedge.BaseURL = "https://fapi.binance.com"
	}
	if cfg.Hedge.WSURL == "" {
		cfg.Hedge.WSURL = "wss://fstream.binance.com/ws"
	}
	if cfg.Hedge.RecvWindowMs <= 0 {
		cfg.Hedge.RecvWindowMs = 5000
	}
	if cfg.Hedge.RateLimit <= 0 {
		cfg.Hedge.RateLimit = 10
	}
}
