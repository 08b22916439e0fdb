package models

// Candle is one closed OHLC bar for (Symbol, Timeframe).
// Timeframe is the bar size in seconds (60 for 1m, 300 for 5m).
type Candle struct {
	Symbol    string
	Timeframe int
	Timestamp int64 // bar open time, unix seconds
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
