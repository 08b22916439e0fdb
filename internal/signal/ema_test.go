package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMASeedIsArithmeticMean(t *testing.T) {
	series := EMA([]float64{1, 2, 3, 4, 5}, 5)
	require.NotNil(t, series)
	assert.Equal(t, 3.0, series[4])
}

func TestEMAInsufficientData(t *testing.T) {
	assert.Nil(t, EMA([]float64{1, 2, 3}, 5))
	assert.Nil(t, EMA(nil, 1))
	assert.Nil(t, EMA([]float64{1, 2, 3}, 0))
}

func TestEMARecurrence(t *testing.T) {
	closes := []float64{2, 2, 2, 10}
	series := EMA(closes, 3)
	require.NotNil(t, series)

	// seed mean(2,2,2)=2, then k=0.5: 10*0.5 + 2*0.5 = 6
	assert.Equal(t, 2.0, series[2])
	assert.Equal(t, 6.0, series[3])
}

func TestEMAUndefinedBeforeSeed(t *testing.T) {
	series := EMA([]float64{1, 2, 3, 4, 5}, 3)
	_, ok := emaAt(series, 3, 1)
	assert.False(t, ok)
	_, ok = emaAt(series, 3, 2)
	assert.True(t, ok)
	_, ok = emaAt(series, 3, 99)
	assert.False(t, ok)
}
