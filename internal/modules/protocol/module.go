package protocol

import (
	"context"

	"optionbot/internal/modules/protocol/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("protocol",
		fx.Provide(
			service.NewClient,
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return c.Connect(ctx)
				},
				OnStop: func(_ context.Context) error {
					c.Close()
					return nil
				},
			})
		}),
	)
}
