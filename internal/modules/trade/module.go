package trade

import (
	market "optionbot/internal/modules/market/service"
	proto "optionbot/internal/modules/protocol/service"
	store "optionbot/internal/modules/store/service"
	"optionbot/internal/modules/trade/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("trade",
		fx.Provide(
			func(client *proto.Client, mc *market.Cache, strategies *store.Strategies) *service.Trader {
				return service.NewTrader(client, mc, strategies)
			},
			func(orders *store.Orders, strategies *store.Strategies) *service.Settlement {
				return service.NewSettlement(orders, strategies)
			},
		),
		fx.Invoke(func(s *service.Settlement, client *proto.Client) {
			s.RegisterHandlers(client)
		}),
	)
}
