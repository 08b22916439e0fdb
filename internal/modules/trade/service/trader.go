package service

import (
	"context"
	"time"

	"optionbot/internal/brokererr"
	"optionbot/internal/models"
	market "optionbot/internal/modules/market/service"
	proto "optionbot/internal/modules/protocol/service"
	"optionbot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// StrategyReader is the slice of the strategy store the trader needs for
// stop checks.
type StrategyReader interface {
	ByID(ctx context.Context, id int64) (models.Strategy, error)
}

type openOptionBody struct {
	UserBalanceID int64   `json:"user_balance_id"`
	ActiveID      int     `json:"active_id"`
	OptionTypeID  int     `json:"option_type_id"`
	Direction     string  `json:"direction"`
	Expired       int64   `json:"expired"`
	Price         float64 `json:"price"`
	ProfitPercent int     `json:"profit_percent"`
}

type openOptionReply struct {
	ID int64 `json:"id"`
}

// option type ids as the broker numbers them
const (
	optionTypeBinary = 1
	optionTypeTurbo  = 3
)

// Trader submits binary-option orders over the protocol client.
type Trader struct {
	client     *proto.Client
	market     *market.Cache
	strategies StrategyReader
	now        func() time.Time
}

func NewTrader(client *proto.Client, mc *market.Cache, strategies StrategyReader) *Trader {
	return &Trader{client: client, market: mc, strategies: strategies, now: time.Now}
}

// nextExpiry is the closing minute boundary for the turbo option: the
// next full minute, skipped forward when fewer than 30s away.
func (t *Trader) nextExpiry() int64 {
	now := t.now()
	exp := now.Truncate(time.Minute).Add(time.Minute)
	if exp.Sub(now) < 30*time.Second {
		exp = exp.Add(time.Minute)
	}
	return exp.Unix()
}

// SubmitOrder opens a binary option. A strategy whose stop conditions
// are already breached is refused with ErrStopConditionReached before
// anything reaches the broker.
func (t *Trader) SubmitOrder(
	ctx context.Context,
	activeID int,
	direction models.Direction,
	price float64,
	balanceID int64,
	profitPercent int,
	strategyID *int64,
) (models.Order, error) {
	if strategyID != nil {
		shouldStop, reason, err := t.CheckStopConditions(ctx, *strategyID)
		if err != nil {
			return models.Order{}, err
		}
		if shouldStop {
			return models.Order{}, errors.Wrapf(brokererr.ErrStopConditionReached, "strategy %d: %s", *strategyID, reason)
		}
	}

	body := openOptionBody{
		UserBalanceID: balanceID,
		ActiveID:      activeID,
		OptionTypeID:  optionTypeTurbo,
		Direction:     string(direction),
		Expired:       t.nextExpiry(),
		Price:         price,
		ProfitPercent: profitPercent,
	}

	frame, err := t.client.Send(ctx, "binary-options.open-option", "1.0", body, "")
	if err != nil {
		return models.Order{}, errors.Wrap(err, "open-option")
	}

	var reply openOptionReply
	if err := sonic.Unmarshal(frame.Payload(), &reply); err != nil {
		return models.Order{}, errors.Wrapf(brokererr.ErrPayloadFormat, "open-option reply: %v", err)
	}

	asset, _ := t.market.Name(activeID)
	order := models.Order{
		BrokerID:      reply.ID,
		StrategyID:    strategyID,
		Asset:         asset,
		Direction:     direction,
		Amount:        price,
		Status:        models.OrderOpen,
		PayoutPercent: float64(profitPercent),
		OpenedAt:      t.now(),
	}
	logger.Info("option %d opened: %s %s %.2f (payout %d%%)", order.BrokerID, asset, direction, price, profitPercent)
	return order, nil
}

// CheckStopConditions evaluates the strategy's own daily limits.
func (t *Trader) CheckStopConditions(ctx context.Context, strategyID int64) (bool, string, error) {
	s, err := t.strategies.ByID(ctx, strategyID)
	if err != nil {
		return false, "", err
	}
	breached, reason := s.StopBreached()
	return breached, reason, nil
}
