package models

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideHold Side = "HOLD"
)

// DirectionFor maps a trade signal to the broker's option direction.
func DirectionFor(s Side) (Direction, bool) {
	switch s {
	case SideBuy:
		return DirectionCall, true
	case SideSell:
		return DirectionPut, true
	default:
		return "", false
	}
}
