package container

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedge-maker-go/config"
	"hedge-maker-go/internal/engine"
)

type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	journal  *[]string
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Start(context.Context) error {
	*f.journal = append(*f.journal, "start "+f.name)
	return f.startErr
}

func (f *fakeComponent) Stop() error {
	*f.journal = append(*f.journal, "stop "+f.name)
	return f.stopErr
}

func (f *fakeComponent) Health() error { return nil }

func TestLifecycleOrder(t *testing.T) {
	var journal []string
	m := NewLifecycleManager()
	m.Register(&fakeComponent{name: "a", journal: &journal})
	m.Register(&fakeComponent{name: "b", journal: &journal, stopErr: errors.New("boom")})

	require.NoError(t, m.StartAll(context.Background()))
	err := m.StopAll()
	assert.ErrorContains(t, err, "stop b: boom")
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, journal)
}

func TestLifecycleRollback(t *testing.T) {
	var journal []string
	m := NewLifecycleManager()
	m.Register(&fakeComponent{name: "a", journal: &journal})
	m.Register(&fakeComponent{name: "b", journal: &journal, startErr: errors.New("port in use")})
	m.Register(&fakeComponent{name: "c", journal: &journal})

	err := m.StartAll(context.Background())
	assert.ErrorContains(t, err, "start b failed: port in use")
	assert.Equal(t, []string{"start a", "start b", "stop a"}, journal)
}

const dryRunConfig = `
env: test
quoteIntervalMs: 50
positionRefreshIntervalMs: 50
markPriceStaleIntervalMs: 30000
lockingIntervalMs: 10
cashDeltaHedgeThreshold: 500
statusAddr: "127.0.0.1:0"
log:
  level: debug
  outputs: [stdout]
  format: console
primary:
  natsURL: nats://127.0.0.1:4222
hedge:
  apiKey: key
  apiSecret: secret
  wsURL: ws://127.0.0.1:1/ws
  symbols:
    BTC: {symbol: BTCUSDT, tickSize: 0.1, stepSize: 0.001, minQty: 0.001}
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
`

func writeConfig(t *testing.T) (configPath, restartPath string) {
	t.Helper()
	dir := t.TempDir()
	restartPath = filepath.Join(dir, "state", "restart_count")
	configPath = filepath.Join(dir, "maker.yaml")
	content := dryRunConfig + "restartCountFile: " + restartPath + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath, restartPath
}

func TestContainerDryRun(t *testing.T) {
	configPath, restartPath := writeConfig(t)

	c, err := New(configPath, Options{DryRun: true})
	require.NoError(t, err)
	require.NoError(t, c.Build())

	assert.Equal(t, 1, c.RestartCount())
	raw, err := os.ReadFile(restartPath)
	require.NoError(t, err)
	assert.Equal(t, "1", string(raw))
	assert.Equal(t, "test", c.Config().Env)
	require.NotNil(t, c.Store())

	w := httptest.NewRecorder()
	c.status.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/restart", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"restartCnt":1`)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, engine.StateRunning, c.Maker().State())
	assert.NoError(t, c.HealthCheck())
	require.Eventually(t, func() bool { return len(c.Store().GetRiskStats()) >= 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Stop())
	assert.Equal(t, engine.StateStopped, c.Maker().State())
}

func TestBuildCoreServicesPropagatesMakerError(t *testing.T) {
	configPath, _ := writeConfig(t)
	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	c := NewWithConfig(cfg, Options{DryRun: true})
	require.NoError(t, c.buildInfrastructure())
	// 未构建场所
	err = c.buildCoreServices()
	assert.ErrorContains(t, err, "create maker failed")
	assert.ErrorContains(t, err, "price feed is required")
	assert.Nil(t, c.maker)
	assert.Nil(t, c.status)
}

func TestContainerRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: test\n"), 0o644))
	_, err := New(path, Options{})
	assert.Error(t, err)
}
