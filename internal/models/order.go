package models

import "time"

type Direction string

const (
	DirectionCall Direction = "call"
	DirectionPut  Direction = "put"
)

type OrderStatus string

const (
	OrderOpen OrderStatus = "open"
	OrderWin  OrderStatus = "win"
	OrderLoss OrderStatus = "loss"
)

// Order transitions exactly once: open -> win|loss.
type Order struct {
	ID            int64
	BrokerID      int64  // the broker's own option id, used to match close events
	StrategyID    *int64 // nil for manual orders
	Asset         string
	Direction     Direction
	Amount        float64
	Status        OrderStatus
	Profit        float64
	PayoutPercent float64
	OpenedAt      time.Time
	ClosedAt      *time.Time
}
