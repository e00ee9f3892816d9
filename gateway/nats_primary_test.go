package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"hedge-maker-go/internal/engine"
	"hedge-maker-go/internal/store"
	"hedge-maker-go/order"
)

type published struct {
	subject string
	data    []byte
}

type fakeNATS struct {
	mu        sync.Mutex
	published []published
	requests  []published
	replies   map[string]string
	reqErr    error
	subject   string
	handler   nats.MsgHandler
	deadline  bool
}

func (f *fakeNATS) Publish(subj string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{subj, data})
	return nil
}

func (f *fakeNATS) RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.deadline = ctx.Deadline()
	f.requests = append(f.requests, published{subj, data})
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	reply, ok := f.replies[subj]
	if !ok {
		return nil, nats.ErrNoResponders
	}
	return &nats.Msg{Subject: subj, Data: []byte(reply)}, nil
}

func (f *fakeNATS) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subject = subj
	f.handler = cb
	return nil, nil
}

func TestEncodeQuotesLevelZeroFirst(t *testing.T) {
	quotes := []order.Quote{
		{Asset: "BTC", Instrument: 137, Level: 1, Side: order.QuoteBid, Price: 99.5, Size: 0.2, ClientOrderID: 3},
		{Asset: "BTC", Instrument: 137, Level: 0, Side: order.QuoteBid, Price: 99.8, Size: 0.1, ClientOrderID: 1},
		{Asset: "BTC", Instrument: 137, Level: 1, Side: order.QuoteAsk, Price: 100.5, Size: 0.2, ClientOrderID: 4},
		{Asset: "BTC", Instrument: 137, Level: 0, Side: order.QuoteAsk, Price: 100.2, Size: 0.1, ClientOrderID: 2},
	}
	data, err := encodeQuotes("BTC", quotes, time.UnixMilli(1700000000000))
	require.NoError(t, err)

	var batch quoteBatch
	require.NoError(t, json.Unmarshal(data, &batch))
	assert.Equal(t, int64(1700000000000), batch.SentAt)
	ids := make([]uint64, 0, len(batch.Quotes))
	for _, q := range batch.Quotes {
		ids = append(ids, q.ClientOrderID)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, ids)
	assert.True(t, batch.Quotes[0].CancelReplace)
	assert.False(t, batch.Quotes[2].CancelReplace)
	assert.Equal(t, "bid", batch.Quotes[0].Side)
	assert.Equal(t, 137, batch.Quotes[0].MarketIndex)

	// 输入不被修改
	assert.Equal(t, uint64(3), quotes[0].ClientOrderID)
}

func TestNATSPrimarySendQuotes(t *testing.T) {
	conn := &fakeNATS{}
	p := NewNATSPrimary(conn, "mm.primary.", 0, zaptest.NewLogger(t))
	require.NoError(t, p.SendQuotes(context.Background(), "SOL", []order.Quote{{Asset: "SOL", Side: order.QuoteAsk, Price: 1, Size: 1}}))
	require.Len(t, conn.published, 1)
	assert.Equal(t, "mm.primary.quotes.SOL", conn.published[0].subject)
}

func TestNATSPrimarySnapshot(t *testing.T) {
	conn := &fakeNATS{replies: map[string]string{
		"primary.snapshot.BTC": `{"openClientOrderIds":[11,12],"positions":[{"marketIndex":137,"size":-1.5}],"margin":42.5,"pnl":-1.25}`,
		"primary.snapshot.SOL": `{"error":"market not loaded"}`,
	}}
	p := NewNATSPrimary(conn, "", 0, nil)

	snap, err := p.Snapshot(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 12}, snap.OpenClientOrderIDs)
	assert.Equal(t, []engine.InstrumentPosition{{Instrument: 137, Size: -1.5}}, snap.Positions)
	assert.Equal(t, 42.5, snap.Margin)
	assert.Equal(t, -1.25, snap.PnL)
	assert.True(t, conn.deadline, "request timeout applied")
	assert.JSONEq(t, `{"asset":"BTC"}`, string(conn.requests[0].data))

	_, err = p.Snapshot(context.Background(), "SOL")
	assert.ErrorIs(t, err, ErrPrimaryRejected)

	_, err = p.Snapshot(context.Background(), "ETH")
	assert.ErrorIs(t, err, nats.ErrNoResponders)
}

func TestNATSPrimaryCancelAll(t *testing.T) {
	conn := &fakeNATS{replies: map[string]string{"primary.cancel_all": `{"remaining":2}`}}
	p := NewNATSPrimary(conn, "primary", time.Second, nil)
	remaining, err := p.CancelAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	conn.reqErr = errors.New("connection closed")
	_, err = p.CancelAll(context.Background())
	assert.ErrorContains(t, err, "connection closed")
}

func TestNATSPrimaryRiskStats(t *testing.T) {
	conn := &fakeNATS{replies: map[string]string{
		"mm.risk": `{"balance":5000,"margin":750.5,"availableBalance":4249.5,"pnl":12.25}`,
	}}
	p := NewNATSPrimary(conn, "mm", 0, nil)
	stats, err := p.RiskStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.RiskStats{Balance: 5000, Margin: 750.5, AvailableBalance: 4249.5, PnL: 12.25}, stats)

	conn.replies["mm.risk"] = `{"error":"account not loaded"}`
	_, err = p.RiskStats(context.Background())
	assert.ErrorIs(t, err, ErrPrimaryRejected)
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent("primary.events.fill", []byte(`{"asset":"BTC"}`))
	require.NoError(t, err)
	assert.Equal(t, engine.VenueEvent{Kind: engine.EventFill, Asset: "BTC"}, ev)

	ev, err = decodeEvent("primary.events.funding", []byte(`{"asset":"SOL","fundingRate":0.0001}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0001, ev.FundingRate)

	ev, err = decodeEvent("primary.events.user", nil)
	require.NoError(t, err)
	assert.Equal(t, engine.EventUser, ev.Kind)

	_, err = decodeEvent("primary.events.fill", nil)
	assert.ErrorContains(t, err, "without asset")
	_, err = decodeEvent("primary.events.liquidation", []byte(`{}`))
	assert.ErrorContains(t, err, "unknown event kind")
	_, err = decodeEvent("primary.events.fill", []byte(`{`))
	assert.Error(t, err)
}

func TestNATSPrimaryEvents(t *testing.T) {
	conn := &fakeNATS{}
	p := NewNATSPrimary(conn, "primary", 0, zaptest.NewLogger(t))

	var got []engine.VenueEvent
	unsub, err := p.Events(func(ev engine.VenueEvent) { got = append(got, ev) })
	require.NoError(t, err)
	assert.Equal(t, "primary.events.*", conn.subject)

	conn.handler(&nats.Msg{Subject: "primary.events.fill", Data: []byte(`{"asset":"BTC"}`)})
	conn.handler(&nats.Msg{Subject: "primary.events.bogus", Data: []byte(`{}`)})
	require.Len(t, got, 1)
	assert.Equal(t, engine.EventFill, got[0].Kind)

	unsub()
}
