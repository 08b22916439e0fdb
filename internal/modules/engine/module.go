package engine

import (
	"context"

	candles "optionbot/internal/modules/candles/service"
	"optionbot/internal/modules/config"
	"optionbot/internal/modules/engine/service"
	market "optionbot/internal/modules/market/service"
	store "optionbot/internal/modules/store/service"
	trade "optionbot/internal/modules/trade/service"
	"optionbot/internal/notify"
	"optionbot/internal/signal"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			signal.NewRegistry,
			func(
				cfg *config.Config,
				strategies *store.Strategies,
				orders *store.Orders,
				configs *store.Configs,
				trader *trade.Trader,
				agg *candles.Aggregator,
				mc *market.Cache,
				registry *signal.Registry,
				n notify.Notifier,
			) *service.Engine {
				return service.NewEngine(cfg, strategies, orders, configs, trader, agg, mc, registry, n)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, e *service.Engine, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					e.Start(ctx)
					return nil
				},
				OnStop: func(_ context.Context) error {
					e.Stop()
					return nil
				},
			})
		}),
	)
}
