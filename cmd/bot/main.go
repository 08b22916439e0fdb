package main

import (
	"context"
	"log"

	"optionbot/internal/modules/bootstrap"
	"optionbot/internal/modules/candles"
	"optionbot/internal/modules/config"
	"optionbot/internal/modules/digital"
	"optionbot/internal/modules/engine"
	"optionbot/internal/modules/market"
	"optionbot/internal/modules/postgres"
	"optionbot/internal/modules/protocol"
	"optionbot/internal/modules/store"
	"optionbot/internal/modules/subscriptions"
	"optionbot/internal/modules/trade"
	"optionbot/internal/notify"
	"optionbot/pkg/logger"
	"optionbot/pkg/tracing"

	"go.uber.org/fx"
)

const serviceName = "optionbot"

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			newNotifier,
		),
		config.Module(),
		fx.Invoke(initLogger, initTracing),
		postgres.Module(),
		store.Module(),
		protocol.Module(),
		subscriptions.Module(),
		digital.Module(),
		market.Module(),
		candles.Module(),
		trade.Module(),
		bootstrap.Module(),
		engine.Module(),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func initLogger(lc fx.Lifecycle, cfg *config.Config) error {
	logger.SetServiceName(serviceName)
	flush, err := logger.Init(cfg.LogLevel)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			flush()
			return nil
		},
	})
	return nil
}

func initTracing(lc fx.Lifecycle, cfg *config.Config) error {
	if cfg.Jaeger.Host == "" {
		return nil
	}
	tracing.SetServiceName(serviceName)
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			closeTracer()
			return nil
		},
	})
	return nil
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Telegram.Token == "" {
		return notify.Noop{}
	}
	t, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		log.Printf("telegram notifier disabled: %v", err)
		return notify.Noop{}
	}
	return t
}
