package models

import "time"

// DigitalInstrument is one tradable digital-option contract. The textual
// id follows the broker grammar do{activeId}A{YYYYMMDD}D{HHMMSS}T{duration}M{C|P}SPT.
type DigitalInstrument struct {
	ID        string
	Index     int64
	ActiveID  int
	Expiry    time.Time
	Duration  int // minutes, 1 or 5
	Direction Direction
	Strike    float64
	Suspended bool
}

// InstrumentKey is the composite lookup key for expiry-based resolution.
type InstrumentKey struct {
	ActiveID  int
	Expiry    int64 // unix seconds
	Duration  int
	Direction Direction
}

func (i DigitalInstrument) Key() InstrumentKey {
	return InstrumentKey{
		ActiveID:  i.ActiveID,
		Expiry:    i.Expiry.Unix(),
		Duration:  i.Duration,
		Direction: i.Direction,
	}
}

func (i DigitalInstrument) Expired(now time.Time) bool {
	return !i.Expiry.After(now)
}
