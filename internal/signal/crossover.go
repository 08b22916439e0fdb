package signal

import (
	"math"

	"optionbot/internal/models"
)

// Crossover2 evaluates a two-EMA crossover on the closes. BUY when the
// short EMA crosses from at-or-below the long EMA to above it between the
// previous and current candle, SELL on the symmetric cross down. When the
// previous EMAs are undefined it falls back to pure current alignment.
// Invalid periods or insufficient history yield HOLD.
func Crossover2(closes []float64, short, long int) models.Side {
	if short <= 0 || long <= 0 || short >= long {
		return models.SideHold
	}
	if len(closes) < long {
		return models.SideHold
	}

	shortSeries := EMA(closes, short)
	longSeries := EMA(closes, long)

	cur := len(closes) - 1
	sc, okS := emaAt(shortSeries, short, cur)
	lc, okL := emaAt(longSeries, long, cur)
	if !okS || !okL || math.IsNaN(sc) || math.IsNaN(lc) {
		return models.SideHold
	}

	sp, okPS := emaAt(shortSeries, short, cur-1)
	lp, okPL := emaAt(longSeries, long, cur-1)
	if okPS && okPL && !math.IsNaN(sp) && !math.IsNaN(lp) {
		prevDiff := sp - lp
		curDiff := sc - lc
		switch {
		case prevDiff <= 0 && curDiff > 0:
			return models.SideBuy
		case prevDiff >= 0 && curDiff < 0:
			return models.SideSell
		default:
			return models.SideHold
		}
	}

	// not enough history for the previous tick: alignment only
	switch {
	case sc > lc:
		return models.SideBuy
	case sc < lc:
		return models.SideSell
	default:
		return models.SideHold
	}
}

// Crossover3 is the three-EMA alignment variant: BUY iff e1>e2>e3,
// SELL iff e1<e2<e3, HOLD otherwise.
func Crossover3(closes []float64, p1, p2, p3 int) models.Side {
	if p1 <= 0 || p2 <= 0 || p3 <= 0 || p1 >= p2 || p2 >= p3 {
		return models.SideHold
	}
	if len(closes) < p3 {
		return models.SideHold
	}

	cur := len(closes) - 1
	e1, ok1 := emaAt(EMA(closes, p1), p1, cur)
	e2, ok2 := emaAt(EMA(closes, p2), p2, cur)
	e3, ok3 := emaAt(EMA(closes, p3), p3, cur)
	if !ok1 || !ok2 || !ok3 || math.IsNaN(e1) || math.IsNaN(e2) || math.IsNaN(e3) {
		return models.SideHold
	}

	switch {
	case e1 > e2 && e2 > e3:
		return models.SideBuy
	case e1 < e2 && e2 < e3:
		return models.SideSell
	default:
		return models.SideHold
	}
}
