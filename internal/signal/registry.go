package signal

import (
	"strings"
	"sync"

	"optionbot/internal/models"
)

// Func evaluates a trade signal over a candle lookback window,
// oldest candle first.
type Func func(candles []models.Candle) models.Side

// Registry resolves signal functions by case-insensitive name.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns a registry preloaded with the built-in evaluators.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.Register("emaCrossover", func(candles []models.Candle) models.Side {
		return Crossover2(Closes(candles), 9, 21)
	})
	r.Register("tripleEmaCrossover", func(candles []models.Candle) models.Side {
		return Crossover3(Closes(candles), 5, 10, 20)
	})
	return r
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToLower(name)] = fn
}

func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[strings.ToLower(name)]
	return fn, ok
}

// Closes extracts the close series from a candle window.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
