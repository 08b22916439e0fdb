package digital

import (
	"context"

	"optionbot/internal/modules/config"
	"optionbot/internal/modules/digital/service"
	proto "optionbot/internal/modules/protocol/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("digital",
		fx.Provide(
			func(cfg *config.Config) *service.Cache {
				return service.NewCache(cfg.IngestBatchSize)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, cache *service.Cache, client *proto.Client) {
			cache.RegisterHandlers(client)
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					cache.StartSweeper(cfg.InstrumentSweep)
					return nil
				},
				OnStop: func(_ context.Context) error {
					cache.Stop()
					return nil
				},
			})
		}),
	)
}
