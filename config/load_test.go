package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedge-maker-go/market"
)

const validYAML = `
env: dev
quoteIntervalMs: 5000
positionRefreshIntervalMs: 10000
markPriceStaleIntervalMs: 30000
lockingIntervalMs: 1000
cashDeltaHedgeThreshold: 500
primary:
  natsURL: nats://localhost:4222
hedge:
  apiKey: foo
  apiSecret: bar
  symbols:
    BTC: {symbol: BTCUSDT, tickSize: 0.1, stepSize: 0.001}
assets:
  BTC:
    quoteLotSize: 0.001
    widthBps: 20
    leanBps: 10
    requoteBps: 5
    maxInstrumentCashExposure: 20000
    maxNetCashExposure: 50000
    instruments:
      - marketIndex: 137
        levels:
          - {priceIncr: 0, quoteCashDelta: 2000}
          - {priceIncr: 0.001, quoteCashDelta: 4000}
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, time.Second, cfg.LockingInterval())
	assert.Equal(t, 5*time.Second, cfg.QuoteInterval())
	assert.Equal(t, 500.0, cfg.CashDeltaHedgeThreshold)

	btc, ok := cfg.Assets["BTC"]
	require.True(t, ok)
	require.Len(t, btc.Instruments, 1)
	assert.Equal(t, 137, btc.Instruments[0].MarketIndex)
	assert.Equal(t, []Level{{0, 2000}, {0.001, 4000}}, btc.Instruments[0].Levels)

	// defaults
	assert.Equal(t, ":8080", cfg.StatusAddr)
	assert.Equal(t, "primary", cfg.Primary.SubjectPrefix)
	assert.Equal(t, time.Minute, cfg.RiskStatsFetchInterval())
	assert.Equal(t, "https://fapi.binance.com", cfg.Hedge.BaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadExampleConfig(t *testing.T) {
	t.Setenv("MM_HEDGE_API_KEY", "k")
	t.Setenv("MM_HEDGE_API_SECRET", "s")
	cfg, err := LoadWithEnvOverrides(filepath.Join("..", "configs", "maker.example.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.AssetList(), 2)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("MM_HEDGE_API_KEY", "env-key")
	t.Setenv("MM_HEDGE_API_SECRET", "env-secret")
	t.Setenv("MM_NATS_URL", "nats://nats:4222")

	cfg, err := LoadWithEnvOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Hedge.APIKey)
	assert.Equal(t, "env-secret", cfg.Hedge.APISecret)
	assert.Equal(t, "nats://nats:4222", cfg.Primary.NatsURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load(writeTempConfig(t, validYAML))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *AppConfig)
	}{
		{"empty env", func(c *AppConfig) { c.Env = "" }},
		{"no hedge threshold", func(c *AppConfig) { c.CashDeltaHedgeThreshold = 0 }},
		{"no credentials", func(c *AppConfig) { c.Hedge.APISecret = "" }},
		{"no assets", func(c *AppConfig) { c.Assets = nil }},
		{"no hedge symbol", func(c *AppConfig) { c.Hedge.Symbols = nil }},
		{"zero lot", func(c *AppConfig) {
			p := c.Assets["BTC"]
			p.QuoteLotSize = 0
			c.Assets["BTC"] = p
		}},
		{"priceIncr out of range", func(c *AppConfig) {
			p := c.Assets["BTC"]
			p.Instruments = []Instrument{{MarketIndex: 1, Levels: []Level{{PriceIncr: 1, QuoteCashDelta: 10}}}}
			c.Assets["BTC"] = p
		}},
		{"duplicate instrument", func(c *AppConfig) {
			p := c.Assets["BTC"]
			p.Instruments = append(p.Instruments, p.Instruments[0])
			c.Assets["BTC"] = p
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Assets = cloneAssets(base.Assets)
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
	assert.NoError(t, Validate(base))
}

func cloneAssets(in map[market.Asset]AssetParams) map[market.Asset]AssetParams {
	out := make(map[market.Asset]AssetParams, len(in))
	for k, v := range in {
		v.Instruments = append([]Instrument(nil), v.Instruments...)
		out[k] = v
	}
	return out
}

func TestBumpRestartCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "restart_count")

	n, err := BumpRestartCount(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = BumpRestartCount(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	n, err = BumpRestartCount(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
