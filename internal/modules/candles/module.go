package candles

import (
	"optionbot/internal/modules/candles/service"
	"optionbot/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("candles",
		fx.Provide(
			func(cfg *config.Config) *service.Aggregator {
				return service.NewAggregator(cfg.CandleHistoryCap)
			},
			service.NewFeed,
		),
	)
}
