package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorRecordsDomainMetrics(t *testing.T) {
	m := New(DefaultConfig())

	m.TheoUpdated("BTC", 65000.5)
	m.QuotesIssued("BTC", 4)
	m.QuotesIssued("BTC", 4)
	m.QuotesSkipped("BTC")
	m.PositionRecorded("primary", "BTC", 137, -0.25)
	m.HedgeTriggered("BTC", "BUY")
	m.LockOutcome("quote:BTC", "rejected", 0)
	m.LockOutcome("quote:BTC", "ran", 900*time.Millisecond)
	m.RecordREST("order", 200, 30*time.Millisecond)

	assert.Equal(t, 65000.5, testutil.ToFloat64(m.theo.WithLabelValues("BTC")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.quotesIssued.WithLabelValues("BTC")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotesSkipped.WithLabelValues("BTC")))
	assert.Equal(t, -0.25, testutil.ToFloat64(m.position.WithLabelValues("primary", "BTC", "137")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hedgeOrders.WithLabelValues("BTC", "BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockOutcomes.WithLabelValues("quote:BTC", "rejected")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait), "one series per resource")
}

func TestMonitorRecordsRiskStats(t *testing.T) {
	m := New(DefaultConfig())

	m.AccountRiskUpdated("hedge", 10_000, 1_200, 8_800, -35.5)
	m.AssetRiskUpdated("primary", "SOL", 300, 12)

	assert.Equal(t, 10_000.0, testutil.ToFloat64(m.balance.WithLabelValues("hedge")))
	assert.Equal(t, 8_800.0, testutil.ToFloat64(m.available.WithLabelValues("hedge")))
	assert.Equal(t, 1_200.0, testutil.ToFloat64(m.margin.WithLabelValues("hedge", "all")))
	assert.Equal(t, -35.5, testutil.ToFloat64(m.pnl.WithLabelValues("hedge", "all")))
	assert.Equal(t, 300.0, testutil.ToFloat64(m.margin.WithLabelValues("primary", "SOL")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.pnl.WithLabelValues("primary", "SOL")))
}

func TestMonitorHandlerExposesRegistry(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordFeedRestart("SOL")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `mm_maker_feed_restarts_total{asset="SOL"} 1`), body)
}
