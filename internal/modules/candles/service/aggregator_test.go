package service

import (
	"testing"

	"optionbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candle(ts int64, close float64) models.Candle {
	return models.Candle{
		Symbol:    "EURUSD",
		Timeframe: 60,
		Timestamp: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
	}
}

func TestAddKeepsAscendingOrder(t *testing.T) {
	a := NewAggregator(100)

	a.Add(candle(300, 3))
	a.Add(candle(100, 1))
	a.Add(candle(200, 2))

	got := a.Candles("EURUSD", 60, 0)
	require.Len(t, got, 3)
	assert.Equal(t, int64(100), got[0].Timestamp)
	assert.Equal(t, int64(200), got[1].Timestamp)
	assert.Equal(t, int64(300), got[2].Timestamp)
}

func TestAddEnforcesCap(t *testing.T) {
	a := NewAggregator(5)

	for ts := int64(1); ts <= 10; ts++ {
		a.Add(candle(ts*60, float64(ts)))
	}

	got := a.Candles("EURUSD", 60, 0)
	require.Len(t, got, 5)
	// oldest entries were evicted
	assert.Equal(t, int64(360), got[0].Timestamp)
	assert.Equal(t, int64(600), got[4].Timestamp)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Timestamp, got[i].Timestamp)
	}
}

func TestAddReplacesSameTimestamp(t *testing.T) {
	a := NewAggregator(100)

	a.Add(candle(60, 1))
	a.Add(candle(60, 9))

	got := a.Candles("EURUSD", 60, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 9.0, got[0].Close)
}

func TestCandlesLimit(t *testing.T) {
	a := NewAggregator(100)
	for ts := int64(1); ts <= 10; ts++ {
		a.Add(candle(ts*60, float64(ts)))
	}

	got := a.Candles("EURUSD", 60, 3)
	require.Len(t, got, 3)
	assert.Equal(t, 8.0, got[0].Close)
	assert.Equal(t, 10.0, got[2].Close)

	assert.Len(t, a.Candles("EURUSD", 60, 0), 10)
	assert.Empty(t, a.Candles("GBPUSD", 60, 5))
}

func TestCurrentPrice(t *testing.T) {
	a := NewAggregator(100)

	_, ok := a.CurrentPrice("EURUSD", 60)
	assert.False(t, ok)

	a.Add(candle(60, 1.1))
	a.Add(candle(120, 1.2))

	px, ok := a.CurrentPrice("EURUSD", 60)
	require.True(t, ok)
	assert.Equal(t, 1.2, px)
}

func TestSynchronousFanOut(t *testing.T) {
	a := NewAggregator(100)

	var calls []string
	a.SubscribeAll(func(models.Candle) { calls = append(calls, "all") })
	a.SubscribePair("EURUSD", 60, func(models.Candle) { calls = append(calls, "pair") })
	a.SubscribeSymbol("EURUSD", func(models.Candle) { calls = append(calls, "symbol") })
	a.SubscribePair("GBPUSD", 60, func(models.Candle) { calls = append(calls, "other-pair") })

	a.Add(candle(60, 1))

	// dispatch is synchronous: everything was called before Add returned
	assert.Equal(t, []string{"all", "pair", "symbol"}, calls)
}

func TestFanOutRegistrationOrder(t *testing.T) {
	a := NewAggregator(100)

	var calls []int
	a.SubscribeAll(func(models.Candle) { calls = append(calls, 1) })
	a.SubscribeAll(func(models.Candle) { calls = append(calls, 2) })
	a.SubscribeAll(func(models.Candle) { calls = append(calls, 3) })

	a.Add(candle(60, 1))
	assert.Equal(t, []int{1, 2, 3}, calls)
}
