package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedge-maker-go/market"
)

const rawBookTicker = `{"e":"bookTicker","u":400900217,"E":1568014460893,"T":1568014460891,"s":"BTCUSDT","b":"25.35190000","B":"31.21000000","a":"25.36520000","A":"40.66000000"}`

func TestParseBookTicker(t *testing.T) {
	bt, err := ParseBookTicker([]byte(rawBookTicker))
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", bt.Symbol)

	tob, err := bt.TopOfBook("BTC", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, market.Asset("BTC"), tob.Asset)
	assert.Equal(t, 25.3519, tob.Bid.Price)
	assert.Equal(t, 31.21, tob.Bid.Size)
	assert.Equal(t, 25.3652, tob.Ask.Price)
	assert.Equal(t, 40.66, tob.Ask.Size)
	assert.Equal(t, int64(1568014460893), tob.Timestamp.UnixMilli())
}

func TestParseBookTickerCombined(t *testing.T) {
	raw := `{"stream":"btcusdt@bookTicker","data":` + rawBookTicker + `}`
	bt, err := ParseBookTicker([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", bt.Symbol)
}

func TestParseBookTickerRejects(t *testing.T) {
	_, err := ParseBookTicker([]byte(`{"result":null,"id":1}`))
	assert.ErrorIs(t, err, ErrNotBookTicker)

	_, err = ParseBookTicker([]byte(`{"e":"depthUpdate","s":"BTCUSDT"}`))
	assert.ErrorIs(t, err, ErrNotBookTicker)

	_, err = ParseBookTicker([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseBookTicker([]byte(`{"s":"BTCUSDT","b":"x","B":"1","a":"2","A":"1"}`))
	assert.Error(t, err)

	bt, err := ParseBookTicker([]byte(`{"s":"BTCUSDT","B":"1","a":"2","A":"1"}`))
	require.NoError(t, err)
	_, err = bt.TopOfBook("BTC", time.Now())
	assert.ErrorContains(t, err, "bid price")
}

func TestBookTickerStream(t *testing.T) {
	assert.Equal(t, "solusdt@bookTicker", bookTickerStream("SOLUSDT"))
}
