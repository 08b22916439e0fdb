package market

import (
	digital "optionbot/internal/modules/digital/service"
	"optionbot/internal/modules/market/service"
	proto "optionbot/internal/modules/protocol/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("market",
		fx.Provide(
			func(index *digital.Cache) *service.Cache {
				return service.NewCache(index)
			},
		),
		fx.Invoke(func(cache *service.Cache, client *proto.Client) {
			cache.RegisterHandlers(client)
		}),
	)
}
