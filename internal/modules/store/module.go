package store

import (
	"optionbot/internal/modules/store/service"
	"optionbot/pkg/db"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			func(tx *db.PgTxManager) *service.Strategies { return service.NewStrategies(tx) },
			func(tx *db.PgTxManager) *service.Orders { return service.NewOrders(tx) },
			func(tx *db.PgTxManager) *service.Configs { return service.NewConfigs(tx) },
		),
	)
}
