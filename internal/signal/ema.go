package signal

// EMA computes the exponential moving average series for the closes.
// The value at index period-1 is the arithmetic mean of the first period
// closes; later values follow ema = close*k + ema*(1-k), k = 2/(period+1).
// Returns nil when there are fewer closes than the period; indexes below
// period-1 are zero and carry no meaning.
func EMA(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) < period {
		return nil
	}

	ema := make([]float64, len(closes))
	k := 2.0 / (float64(period) + 1.0)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	ema[period-1] = sum / float64(period)

	for i := period; i < len(closes); i++ {
		ema[i] = closes[i]*k + ema[i-1]*(1-k)
	}
	return ema
}

// emaAt returns the series value at i and whether it is defined there.
func emaAt(series []float64, period, i int) (float64, bool) {
	if series == nil || i < period-1 || i >= len(series) {
		return 0, false
	}
	return series[i], true
}
