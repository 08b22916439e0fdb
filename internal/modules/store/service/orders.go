package service

import (
	"context"
	"fmt"
	"time"

	"optionbot/internal/models"
	"optionbot/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type Orders struct {
	tx db.TxManager
}

func NewOrders(tx db.TxManager) *Orders {
	return &Orders{tx: tx}
}

const orderColumns = `id, broker_id, strategy_id, asset, direction, amount, status, profit, payout_percent, opened_at, closed_at`

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.BrokerID, &o.StrategyID, &o.Asset, &o.Direction, &o.Amount,
		&o.Status, &o.Profit, &o.PayoutPercent, &o.OpenedAt, &o.ClosedAt,
	)
	return o, err
}

// OpenForStrategy returns the strategy's open order, or nil when it has
// none. The engine uses this to enforce at most one open order per
// strategy.
func (r *Orders) OpenForStrategy(ctx context.Context, strategyID int64) (o *models.Order, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Orders.OpenForStrategy(%d): %w", strategyID, err)
		}
	}()

	row := r.tx.Conn().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE strategy_id = $1 AND status = 'open' LIMIT 1`,
		strategyID)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Orders) Insert(ctx context.Context, o *models.Order) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Orders.Insert: %w", err)
		}
	}()

	return r.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctxTx, `
			INSERT INTO orders (broker_id, strategy_id, asset, direction, amount, status, payout_percent, opened_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			o.BrokerID, o.StrategyID, o.Asset, o.Direction, o.Amount, o.Status, o.PayoutPercent, o.OpenedAt,
		).Scan(&o.ID)
	})
}

// ByBrokerID finds the order opened for the given broker option id, or
// nil when the close event belongs to an order we never persisted.
func (r *Orders) ByBrokerID(ctx context.Context, brokerID int64) (o *models.Order, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Orders.ByBrokerID(%d): %w", brokerID, err)
		}
	}()

	row := r.tx.Conn().QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE broker_id = $1 ORDER BY id DESC LIMIT 1`,
		brokerID)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Settle closes an open order as win or loss. The status guard in the
// WHERE clause makes the open -> win|loss transition happen exactly once;
// settling a non-open order is an error.
func (r *Orders) Settle(ctx context.Context, id int64, status models.OrderStatus, profit float64, at time.Time) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Orders.Settle(%d): %w", id, err)
		}
	}()

	if status != models.OrderWin && status != models.OrderLoss {
		return errors.Errorf("invalid terminal status %q", status)
	}

	return r.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctxTx,
			`UPDATE orders SET status = $2, profit = $3, closed_at = $4 WHERE id = $1 AND status = 'open'`,
			id, status, profit, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errors.Errorf("order %d is not open", id)
		}
		return nil
	})
}
