// seed loads strategy presets from configs/presets.yaml and inserts them
// into the strategies table. Meant for bootstrapping a fresh database.
package main

import (
	"context"
	"fmt"
	"os"

	"optionbot/internal/models"
	store "optionbot/internal/modules/store/service"
	"optionbot/pkg/db"
	"optionbot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type preset struct {
	Asset       string  `mapstructure:"asset"`
	Timeframe   int     `mapstructure:"timeframe"`
	EntryValue  float64 `mapstructure:"entry_value"`
	AccountType string  `mapstructure:"account_type"`
	SignalFunc  string  `mapstructure:"signal_func"`
	Active      bool    `mapstructure:"active"`
	Stop        struct {
		Type       string  `mapstructure:"type"`
		Value      float64 `mapstructure:"value"`
		Enabled    bool    `mapstructure:"enabled"`
		DailyReset bool    `mapstructure:"daily_reset"`
	} `mapstructure:"stop"`
	BaseBalance float64 `mapstructure:"base_balance"`
}

func loadPresets() ([]preset, error) {
	viper.SetConfigName("presets")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read presets config")
	}

	var presets []preset
	if err := viper.UnmarshalKey("strategies", &presets); err != nil {
		return nil, errors.Wrap(err, "decode strategies")
	}
	if len(presets) == 0 {
		return nil, errors.New("has no strategies in presets config")
	}
	return presets, nil
}

func main() {
	if _, err := logger.Init("info"); err != nil {
		panic(err)
	}
	logger.SetServiceName("seed")

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		panic("env DATABASE_DSN is required")
	}

	presets, err := loadPresets()
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	if err != nil {
		panic(fmt.Errorf("create pool: %w", err))
	}
	manager := db.NewPgTxManager(pool)
	defer manager.Close()

	strategies := store.NewStrategies(manager)
	for _, p := range presets {
		s := models.Strategy{
			Active:      p.Active,
			Asset:       p.Asset,
			Timeframe:   p.Timeframe,
			EntryValue:  p.EntryValue,
			AccountType: p.AccountType,
			SignalFunc:  p.SignalFunc,
			Stop: models.StopConfig{
				Type:       models.StopType(p.Stop.Type),
				Value:      p.Stop.Value,
				Enabled:    p.Stop.Enabled,
				DailyReset: p.Stop.DailyReset,
			},
			StopBaseBalance: p.BaseBalance,
		}
		if err := strategies.Insert(ctx, &s); err != nil {
			logger.Error("insert %s: %v", p.Asset, err)
			continue
		}
		logger.Info("seeded strategy %d: %s %s", s.ID, s.Asset, s.SignalFunc)
	}
}
