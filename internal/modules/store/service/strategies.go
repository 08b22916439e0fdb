package service

import (
	"context"
	"fmt"
	"time"

	"optionbot/internal/models"
	"optionbot/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

// Strategies implements the strategy persistence collaborator on
// postgres. The stop config lives in a jsonb column.
type Strategies struct {
	tx db.TxManager
}

func NewStrategies(tx db.TxManager) *Strategies {
	return &Strategies{tx: tx}
}

const strategyColumns = `id, active, asset, timeframe, entry_value, account_type, signal_func,
	stop_config, stop_base_balance, current_day_profit, total_profit,
	operation_count, accuracy_rate, stop_hit_date, stop_hit_reason`

func scanStrategy(row pgx.Row) (models.Strategy, error) {
	var (
		s       models.Strategy
		stopRaw []byte
	)
	err := row.Scan(
		&s.ID, &s.Active, &s.Asset, &s.Timeframe, &s.EntryValue, &s.AccountType, &s.SignalFunc,
		&stopRaw, &s.StopBaseBalance, &s.CurrentDayProfit, &s.TotalProfit,
		&s.OperationCount, &s.AccuracyRate, &s.StopHitDate, &s.StopHitReason,
	)
	if err != nil {
		return models.Strategy{}, err
	}
	if len(stopRaw) > 0 {
		if err := sonic.Unmarshal(stopRaw, &s.Stop); err != nil {
			return models.Strategy{}, err
		}
	}
	return s, nil
}

// Active returns active strategies in ascending id order; the engine
// relies on that ordering for its sequential pass.
func (r *Strategies) Active(ctx context.Context) (out []models.Strategy, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.Active: %w", err)
		}
	}()

	rows, err := r.tx.Conn().Query(ctx,
		`SELECT `+strategyColumns+` FROM strategies WHERE active ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Strategies) All(ctx context.Context) (out []models.Strategy, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.All: %w", err)
		}
	}()

	rows, err := r.tx.Conn().Query(ctx,
		`SELECT `+strategyColumns+` FROM strategies ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Strategies) ByID(ctx context.Context, id int64) (s models.Strategy, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.ByID(%d): %w", id, err)
		}
	}()

	return scanStrategy(r.tx.Conn().QueryRow(ctx,
		`SELECT `+strategyColumns+` FROM strategies WHERE id = $1`, id))
}

// Deactivate flips the strategy inactive and stamps when and why.
func (r *Strategies) Deactivate(ctx context.Context, id int64, reason string, at time.Time) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.Deactivate(%d): %w", id, err)
		}
	}()

	return r.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`UPDATE strategies SET active = false, stop_hit_date = $2, stop_hit_reason = $3 WHERE id = $1`,
			id, at, reason)
		return err
	})
}

// RecordResult folds one settled order into the strategy counters.
func (r *Strategies) RecordResult(ctx context.Context, id int64, profit float64, win bool) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.RecordResult(%d): %w", id, err)
		}
	}()

	return r.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		wins := 0
		if win {
			wins = 1
		}
		_, err := tx.Exec(ctxTx, `
			UPDATE strategies SET
				current_day_profit = current_day_profit + $2,
				total_profit       = total_profit + $2,
				operation_count    = operation_count + 1,
				accuracy_rate      = (accuracy_rate * operation_count + $3 * 100) / (operation_count + 1)
			WHERE id = $1`,
			id, profit, wins)
		return err
	})
}

func (r *Strategies) Insert(ctx context.Context, s *models.Strategy) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.Insert: %w", err)
		}
	}()

	stopRaw, err := sonic.Marshal(s.Stop)
	if err != nil {
		return err
	}

	return r.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctxTx, `
			INSERT INTO strategies (active, asset, timeframe, entry_value, account_type,
				signal_func, stop_config, stop_base_balance)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			s.Active, s.Asset, s.Timeframe, s.EntryValue, s.AccountType,
			s.SignalFunc, stopRaw, s.StopBaseBalance,
		).Scan(&s.ID)
	})
}
