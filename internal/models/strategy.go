package models

import "time"

type StopType string

const (
	StopValue      StopType = "value"
	StopPercentage StopType = "percentage"
)

// StopConfig limits daily loss/gain for one strategy. In percentage mode
// the limit is computed from the balance snapshot taken when the mode was
// enabled (StopBaseBalance on the strategy), not from the live balance.
type StopConfig struct {
	Type       StopType `json:"type"`
	Value      float64  `json:"value"`
	Enabled    bool     `json:"enabled"`
	DailyReset bool     `json:"dailyReset"`
}

type Strategy struct {
	ID               int64
	Active           bool
	Asset            string
	Timeframe        int
	EntryValue       float64
	AccountType      string // "demo" | "real"
	SignalFunc       string // registry name, case-insensitive
	Stop             StopConfig
	StopBaseBalance  float64
	CurrentDayProfit float64
	TotalProfit      float64
	OperationCount   int
	AccuracyRate     float64
	StopHitDate      *time.Time
	StopHitReason    string
}

// StopLimit is the daily loss/gain magnitude for the strategy. In
// percentage mode it is computed from StopBaseBalance, the snapshot
// taken when percentage mode was enabled.
func (s Strategy) StopLimit() float64 {
	if s.Stop.Type == StopPercentage {
		return s.StopBaseBalance * s.Stop.Value / 100
	}
	return s.Stop.Value
}

// StopBreached checks the strategy's own daily limits against its
// current day profit: loss at -limit, gain symmetric at +limit.
func (s Strategy) StopBreached() (bool, string) {
	if !s.Stop.Enabled {
		return false, ""
	}
	limit := s.StopLimit()
	if limit <= 0 {
		return false, ""
	}
	if s.CurrentDayProfit <= -limit {
		return true, "stop_loss"
	}
	if s.CurrentDayProfit >= limit {
		return true, "stop_gain"
	}
	return false, ""
}

// GlobalStopConfig is the account-wide daily limit checked before any
// per-strategy work runs on a tick.
type GlobalStopConfig struct {
	StopLossEnabled bool    `json:"stopLossEnabled"`
	StopLossValue   float64 `json:"stopLossValue"`
	StopGainEnabled bool    `json:"stopGainEnabled"`
	StopGainValue   float64 `json:"stopGainValue"`
}
