package service

import (
	"sort"
	"sync"

	"optionbot/internal/models"
)

type SubscriberFunc func(models.Candle)

type seriesKey struct {
	symbol    string
	timeframe int
}

// Aggregator keeps a bounded, timestamp-ascending OHLC history per
// (symbol, timeframe) and fans every inserted candle out synchronously
// on three channels: all candles, per pair, per symbol.
type Aggregator struct {
	cap int

	mu         sync.RWMutex
	series     map[seriesKey][]models.Candle
	subsAll    []SubscriberFunc
	subsPair   map[seriesKey][]SubscriberFunc
	subsSymbol map[string][]SubscriberFunc
}

func NewAggregator(historyCap int) *Aggregator {
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &Aggregator{
		cap:        historyCap,
		series:     make(map[seriesKey][]models.Candle),
		subsPair:   make(map[seriesKey][]SubscriberFunc),
		subsSymbol: make(map[string][]SubscriberFunc),
	}
}

// Add inserts one candle, restoring ascending timestamp order for
// out-of-order arrivals and truncating to the newest cap entries. A
// candle with a timestamp already present replaces the stored one.
// Subscribers are then notified synchronously, in registration order.
func (a *Aggregator) Add(c models.Candle) {
	k := seriesKey{symbol: c.Symbol, timeframe: c.Timeframe}

	a.mu.Lock()
	seq := a.series[k]

	replaced := false
	for i := range seq {
		if seq[i].Timestamp == c.Timestamp {
			seq[i] = c
			replaced = true
			break
		}
	}
	if !replaced {
		seq = append(seq, c)
		sort.Slice(seq, func(i, j int) bool { return seq[i].Timestamp < seq[j].Timestamp })
	}
	if len(seq) > a.cap {
		seq = seq[len(seq)-a.cap:]
	}
	a.series[k] = seq

	all := append([]SubscriberFunc(nil), a.subsAll...)
	pair := append([]SubscriberFunc(nil), a.subsPair[k]...)
	symbol := append([]SubscriberFunc(nil), a.subsSymbol[c.Symbol]...)
	a.mu.Unlock()

	for _, fn := range all {
		fn(c)
	}
	for _, fn := range pair {
		fn(c)
	}
	for _, fn := range symbol {
		fn(c)
	}
}

// Candles returns the newest limit entries (the whole history when
// limit <= 0), oldest first.
func (a *Aggregator) Candles(symbol string, timeframe, limit int) []models.Candle {
	k := seriesKey{symbol: symbol, timeframe: timeframe}

	a.mu.RLock()
	defer a.mu.RUnlock()
	seq := a.series[k]
	if limit > 0 && limit < len(seq) {
		seq = seq[len(seq)-limit:]
	}
	out := make([]models.Candle, len(seq))
	copy(out, seq)
	return out
}

// CurrentPrice is the latest close for the pair.
func (a *Aggregator) CurrentPrice(symbol string, timeframe int) (float64, bool) {
	k := seriesKey{symbol: symbol, timeframe: timeframe}

	a.mu.RLock()
	defer a.mu.RUnlock()
	seq := a.series[k]
	if len(seq) == 0 {
		return 0, false
	}
	return seq[len(seq)-1].Close, true
}

func (a *Aggregator) SubscribeAll(fn SubscriberFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subsAll = append(a.subsAll, fn)
}

func (a *Aggregator) SubscribePair(symbol string, timeframe int, fn SubscriberFunc) {
	k := seriesKey{symbol: symbol, timeframe: timeframe}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subsPair[k] = append(a.subsPair[k], fn)
}

func (a *Aggregator) SubscribeSymbol(symbol string, fn SubscriberFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subsSymbol[symbol] = append(a.subsSymbol[symbol], fn)
}
