package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"hedge-maker-go/config"
	"hedge-maker-go/infrastructure/monitor"
	"hedge-maker-go/internal/engine"
	"hedge-maker-go/internal/store"
	"hedge-maker-go/inventory"
	"hedge-maker-go/market"
	"hedge-maker-go/order"
)

type fakeHealth struct {
	stale []engine.StaleAsset
}

func (f *fakeHealth) StaleAssets(time.Time) []engine.StaleAsset { return f.stale }
func (f *fakeHealth) Stats() engine.Statistics { return engine.Statistics{State: "RUNNING", Ticks: 3} }

func newTestServer(t *testing.T) (*Server, *store.Store, *fakeHealth) {
	t.Helper()
	params := map[market.Asset]config.AssetParams{
		"BTC": {
			QuoteLotSize:              0.01,
			WidthBps:                  20,
			LeanBps:                   10,
			RequoteBps:                5,
			MaxInstrumentCashExposure: 100_000,
			MaxNetCashExposure:        100_000,
			Instruments:               []config.Instrument{{MarketIndex: 137, Levels: []config.Level{{QuoteCashDelta: 1000}}}},
		},
		"SOL": {
			QuoteLotSize:              0.1,
			WidthBps:                  30,
			RequoteBps:                5,
			MaxInstrumentCashExposure: 100_000,
			MaxNetCashExposure:        100_000,
			Instruments:               []config.Instrument{{MarketIndex: 5, Levels: []config.Level{{QuoteCashDelta: 100}}}},
		},
	}
	st := store.New(params, 500, order.NewIDGenerator(1))
	health := &fakeHealth{}
	s := New(st, health, monitor.New(monitor.DefaultConfig()).Handler(), 7, zaptest.NewLogger(t))
	return s, st, health
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)
	return w
}

func TestPositionRoutes(t *testing.T) {
	s, st, _ := newTestServer(t)
	require.NoError(t, st.SetMarkPriceUpdate(market.TopOfBook{
		Asset: "BTC",
		Bid:   market.PriceLevel{Price: 99, Size: 1},
		Ask:   market.PriceLevel{Price: 101, Size: 1},
	}))
	st.RecordPositionUpdate(inventory.VenuePrimary, "BTC", 137, 2, false)
	st.RecordPositionUpdate(inventory.VenuePrimary, "SOL", 5, 10, false)
	st.RecordPositionUpdate(inventory.VenueHedge, "BTC", 0, -1, false)

	w := get(t, s, "/position/primary")
	require.Equal(t, http.StatusOK, w.Code)
	var view store.PositionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Len(t, view.Entries, 2)
	assert.Equal(t, 12.0, view.NetBase)
	assert.Nil(t, view.NetCash, "SOL has no theo")

	w = get(t, s, "/position/primary/BTC")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Entries, 1)
	require.NotNil(t, view.NetCash)
	assert.Equal(t, 200.0, *view.NetCash)

	w = get(t, s, "/position/hedge/BTC/0")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, -1.0, view.NetBase)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/position/hedge/BTC/3").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/position/hedge/SOL").Code)
}

func TestPositionRoutesRejectBadInput(t *testing.T) {
	s, _, _ := newTestServer(t)
	for _, path := range []string{
		"/position/zeta",
		"/position/primary/DOGE",
		"/position/primary/BTC/abc",
		"/position/primary/BTC/-1",
	} {
		assert.Equal(t, http.StatusBadRequest, get(t, s, path).Code, path)
	}
}

func TestTheoQuotesBreachesFunding(t *testing.T) {
	s, st, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/theo/BTC").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/quotes/BTC").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/funding/BTC").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/theo/DOGE").Code)

	require.NoError(t, st.SetMarkPriceUpdate(market.TopOfBook{
		Asset:     "BTC",
		Bid:       market.PriceLevel{Price: 99, Size: 1},
		Ask:       market.PriceLevel{Price: 101, Size: 1},
		Timestamp: time.Now(),
	}))
	eff := st.ComputeQuotes("BTC")
	require.NotEmpty(t, eff.Quotes)
	st.RecordFundingUpdate("BTC", 3.65)

	w := get(t, s, "/theo/BTC")
	require.Equal(t, http.StatusOK, w.Code)
	var theo struct {
		Theo market.Theo `json:"theo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &theo))
	assert.Equal(t, 100.0, theo.Theo.Price)

	w = get(t, s, "/quotes/BTC")
	require.Equal(t, http.StatusOK, w.Code)
	var quotes []order.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quotes))
	assert.Len(t, quotes, len(eff.Quotes))

	w = get(t, s, "/breaches")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = get(t, s, "/funding/BTC")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"asset":"BTC","annualizedPct":3.65}`, w.Body.String())
}

func TestOrders(t *testing.T) {
	s, st, _ := newTestServer(t)
	assert.JSONEq(t, `{}`, get(t, s, "/orders").Body.String())

	require.NoError(t, st.SetMarkPriceUpdate(market.TopOfBook{
		Asset: "BTC",
		Bid:   market.PriceLevel{Price: 99, Size: 1},
		Ask:   market.PriceLevel{Price: 101, Size: 1},
	}))
	eff := st.ComputeQuotes("BTC")
	require.NotEmpty(t, eff.Quotes)

	w := get(t, s, "/orders")
	require.Equal(t, http.StatusOK, w.Code)
	var orders map[market.Asset][]order.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1, "assets without quotes are omitted")
	assert.Len(t, orders["BTC"], len(eff.Quotes))
}

func TestRisk(t *testing.T) {
	s, st, _ := newTestServer(t)
	assert.JSONEq(t, `[]`, get(t, s, "/risk").Body.String())

	st.RecordRiskStats(inventory.VenuePrimary, store.RiskStats{Balance: 10_000, Margin: 400, AvailableBalance: 9_600, PnL: 15})
	st.RecordAssetRisk("SOL", store.AssetRisk{Margin: 100, PnL: 5})
	st.RecordRiskStats(inventory.VenueHedge, store.RiskStats{Balance: 2_000, Margin: 300, AvailableBalance: 1_700, PnL: -15})

	w := get(t, s, "/risk")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []store.RiskRow
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, inventory.VenuePrimary, rows[0].Venue)
	assert.Equal(t, market.Asset("SOL"), rows[1].Asset)
	assert.Equal(t, 100.0, rows[1].Margin)
	assert.Equal(t, inventory.VenueHedge, rows[2].Venue)
	assert.Equal(t, 1_700.0, rows[2].AvailableBalance)
}

func TestRestart(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := get(t, s, "/restart")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		RestartCnt int    `json:"restartCnt"`
		InstanceID string `json:"instanceId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 7, body.RestartCnt)
	assert.Equal(t, s.InstanceID(), body.InstanceID)
	_, err := uuid.Parse(body.InstanceID)
	assert.NoError(t, err)
}

func TestHealth(t *testing.T) {
	s, _, health := newTestServer(t)
	w := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"RUNNING"`)

	health.stale = []engine.StaleAsset{{Asset: "BTC", Age: "never"}}
	w = get(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"stale"`)

	noHealth := New(s.store, nil, nil, 0, nil)
	assert.Equal(t, http.StatusOK, get(t, noHealth, "/health").Code)
	assert.Equal(t, http.StatusNotFound, get(t, noHealth, "/metrics").Code)
}

func TestMetricsRoute(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}
