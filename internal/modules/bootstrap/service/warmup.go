package service

import (
	"context"
	"time"

	"optionbot/internal/brokererr"
	candles "optionbot/internal/modules/candles/service"
	"optionbot/internal/modules/config"
	subs "optionbot/internal/modules/subscriptions/service"
	"optionbot/pkg/logger"

	"github.com/pkg/errors"
)

// StrategySource lists the strategies whose assets need market data.
type StrategySource interface {
	Active(ctx context.Context) ([]Asset, error)
}

type Asset struct {
	Symbol    string
	Timeframe int
}

// Warmup brings the market view up before the engine's first useful
// tick: a live candle subscription plus a history backfill per asset,
// then the subscription set is marked initialized so reconnects
// resubscribe automatically.
type Warmup struct {
	cfg        *config.Config
	feed       *candles.Feed
	subs       *subs.Manager
	strategies StrategySource
}

func NewWarmup(cfg *config.Config, feed *candles.Feed, sm *subs.Manager, strategies StrategySource) *Warmup {
	return &Warmup{cfg: cfg, feed: feed, subs: sm, strategies: strategies}
}

func (w *Warmup) Run(ctx context.Context) {
	assets, err := w.strategies.Active(ctx)
	if err != nil {
		logger.Error("warmup: load strategies: %v", err)
		return
	}

	seen := make(map[Asset]struct{})
	for _, a := range assets {
		if a.Timeframe <= 0 {
			a.Timeframe = 60
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		w.warmAsset(ctx, a)
	}

	w.subs.Initialize()
	logger.Info("warmup done: %d assets", len(seen))
}

// warmAsset retries while the market tables are still filling from
// initialization-data; anything else is logged and skipped.
func (w *Warmup) warmAsset(ctx context.Context, a Asset) {
	for attempt := 0; attempt < 10; attempt++ {
		err := w.feed.SubscribeToLiveCandles(a.Symbol, a.Timeframe)
		if errors.Is(err, brokererr.ErrCacheMiss) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if err != nil {
			logger.Error("warmup %s/%ds: subscribe: %v", a.Symbol, a.Timeframe, err)
			return
		}
		if err := w.feed.RequestHistoricalCandles(ctx, a.Symbol, a.Timeframe, w.cfg.LookbackCandles); err != nil {
			logger.Warn("warmup %s/%ds: backfill: %v", a.Symbol, a.Timeframe, err)
		}
		return
	}
	logger.Warn("warmup %s/%ds: asset never appeared in market cache", a.Symbol, a.Timeframe)
}
