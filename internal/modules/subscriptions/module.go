package subscriptions

import (
	"optionbot/internal/modules/config"
	proto "optionbot/internal/modules/protocol/service"
	"optionbot/internal/modules/subscriptions/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("subscriptions",
		fx.Provide(
			func(cfg *config.Config, c *proto.Client) *service.Manager {
				return service.NewManager(cfg, c)
			},
		),
	)
}
