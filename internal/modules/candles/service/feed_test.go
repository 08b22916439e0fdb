package service

import (
	"encoding/json"
	"os"
	"testing"

	market "optionbot/internal/modules/market/service"
	proto "optionbot/internal/modules/protocol/service"
	"optionbot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("fatal"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestFeed() (*Feed, *market.Cache, *Aggregator) {
	mc := market.NewCache(nil)
	agg := NewAggregator(10)
	return &Feed{market: mc, agg: agg}, mc, agg
}

func candleFrame(payload string) proto.Frame {
	return proto.Frame{Name: "candle-generated", Msg: json.RawMessage(payload)}
}

func TestLiveCandleFeedsAggregatorAndQuote(t *testing.T) {
	f, mc, agg := newTestFeed()
	mc.SetName(76, "EURUSD")

	f.onCandleGenerated(candleFrame(
		`{"active_id":76,"size":60,"from":120,"open":1.1,"close":1.2,"min":1.05,"max":1.25,"volume":9}`))

	got := agg.Candles("EURUSD", 60, 0)
	require.Len(t, got, 1)
	assert.Equal(t, int64(120), got[0].Timestamp)
	assert.Equal(t, 1.25, got[0].High)
	assert.Equal(t, 1.05, got[0].Low)

	v, ok := mc.Value(76)
	require.True(t, ok)
	assert.Equal(t, 1.2, v)
}

func TestLiveCandleTracksLatestQuote(t *testing.T) {
	f, mc, _ := newTestFeed()
	mc.SetName(76, "EURUSD")

	f.onCandleGenerated(candleFrame(`{"active_id":76,"size":60,"from":60,"close":1.2}`))
	f.onCandleGenerated(candleFrame(`{"active_id":76,"size":60,"from":120,"close":1.3}`))

	v, ok := mc.Value(76)
	require.True(t, ok)
	assert.Equal(t, 1.3, v)
}

func TestCandleForUnknownActiveDropped(t *testing.T) {
	f, mc, agg := newTestFeed()

	f.onCandleGenerated(candleFrame(`{"active_id":99,"size":60,"from":60,"close":1.2}`))

	assert.Empty(t, agg.Candles("EURUSD", 60, 0))
	_, ok := mc.Value(99)
	assert.False(t, ok)
}
