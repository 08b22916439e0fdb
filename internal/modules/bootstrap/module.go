package bootstrap

import (
	"context"

	"optionbot/internal/models"
	"optionbot/internal/modules/bootstrap/service"
	candles "optionbot/internal/modules/candles/service"
	"optionbot/internal/modules/config"
	store "optionbot/internal/modules/store/service"
	subs "optionbot/internal/modules/subscriptions/service"

	"go.uber.org/fx"
)

type strategyAssets struct {
	strategies *store.Strategies
}

func (s strategyAssets) Active(ctx context.Context) ([]service.Asset, error) {
	rows, err := s.strategies.Active(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]service.Asset, 0, len(rows))
	for _, st := range rows {
		out = append(out, assetOf(st))
	}
	return out, nil
}

func assetOf(s models.Strategy) service.Asset {
	return service.Asset{Symbol: s.Asset, Timeframe: s.Timeframe}
}

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(cfg *config.Config, feed *candles.Feed, sm *subs.Manager, strategies *store.Strategies) *service.Warmup {
				return service.NewWarmup(cfg, feed, sm, strategyAssets{strategies: strategies})
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, w *service.Warmup, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go w.Run(ctx)
					return nil
				},
			})
		}),
	)
}
