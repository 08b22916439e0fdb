package service

import (
	"context"
	"time"

	"optionbot/internal/models"
	proto "optionbot/internal/modules/protocol/service"
	"optionbot/pkg/logger"

	"github.com/bytedance/sonic"
)

// OrderLedger is the slice of the order store settlement needs.
type OrderLedger interface {
	ByBrokerID(ctx context.Context, brokerID int64) (*models.Order, error)
	Settle(ctx context.Context, id int64, status models.OrderStatus, profit float64, at time.Time) error
}

type ResultRecorder interface {
	RecordResult(ctx context.Context, id int64, profit float64, win bool) error
}

type optionClosedMsg struct {
	ID           int64   `json:"id"`
	Win          string  `json:"win"` // "win" | "loose" | "equal"
	ProfitAmount float64 `json:"profit_amount"`
}

// Settlement folds the broker's option close events back into the order
// ledger and the owning strategy's day counters.
type Settlement struct {
	orders     OrderLedger
	strategies ResultRecorder
	now        func() time.Time
}

func NewSettlement(orders OrderLedger, strategies ResultRecorder) *Settlement {
	return &Settlement{orders: orders, strategies: strategies, now: time.Now}
}

func (s *Settlement) RegisterHandlers(client *proto.Client) {
	client.On("option-closed", s.onOptionClosed)
}

func (s *Settlement) onOptionClosed(f proto.Frame) {
	var msg optionClosedMsg
	if err := sonic.Unmarshal(f.Payload(), &msg); err != nil {
		logger.Warn("option-closed: bad payload: %v", err)
		return
	}
	go s.settle(context.Background(), msg)
}

func (s *Settlement) settle(ctx context.Context, msg optionClosedMsg) {
	order, err := s.orders.ByBrokerID(ctx, msg.ID)
	if err != nil {
		logger.Error("settle option %d: %v", msg.ID, err)
		return
	}
	if order == nil {
		logger.Debug("option %d closed but was never persisted, ignoring", msg.ID)
		return
	}

	status := models.OrderLoss
	profit := -order.Amount
	switch msg.Win {
	case "win":
		status = models.OrderWin
		profit = msg.ProfitAmount - order.Amount
	case "equal":
		// the stake comes back at expiry
		profit = 0
	}

	if err := s.orders.Settle(ctx, order.ID, status, profit, s.now()); err != nil {
		logger.Error("settle order %d: %v", order.ID, err)
		return
	}
	if order.StrategyID != nil {
		if err := s.strategies.RecordResult(ctx, *order.StrategyID, profit, status == models.OrderWin); err != nil {
			logger.Error("record result for strategy %d: %v", *order.StrategyID, err)
		}
	}
	logger.Info("order %d settled: %s %.2f", order.ID, status, profit)
}
