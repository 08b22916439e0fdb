package service

import (
	"context"
	"fmt"

	"optionbot/internal/models"
	"optionbot/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const globalStopKey = "global_stop"

// Configs stores account-level configuration records as jsonb values
// keyed by name.
type Configs struct {
	tx db.TxManager
}

func NewConfigs(tx db.TxManager) *Configs {
	return &Configs{tx: tx}
}

// GlobalStop returns the account-wide stop config; a missing row means
// no global limits are configured.
func (r *Configs) GlobalStop(ctx context.Context) (cfg models.GlobalStopConfig, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Configs.GlobalStop: %w", err)
		}
	}()

	var raw []byte
	err = r.tx.Conn().QueryRow(ctx,
		`SELECT value FROM configs WHERE key = $1`, globalStopKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.GlobalStopConfig{}, nil
	}
	if err != nil {
		return models.GlobalStopConfig{}, err
	}
	if err = sonic.Unmarshal(raw, &cfg); err != nil {
		return models.GlobalStopConfig{}, err
	}
	return cfg, nil
}

func (r *Configs) SetGlobalStop(ctx context.Context, cfg models.GlobalStopConfig) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Configs.SetGlobalStop: %w", err)
		}
	}()

	raw, err := sonic.Marshal(cfg)
	if err != nil {
		return err
	}

	return r.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO configs (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			globalStopKey, raw)
		return err
	})
}
