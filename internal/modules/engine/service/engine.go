package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"optionbot/internal/models"
	"optionbot/internal/modules/config"
	"optionbot/internal/notify"
	"optionbot/internal/signal"
	"optionbot/pkg/logger"
)

// Consumer-side slices of the collaborators the engine drives.

type StrategyStore interface {
	Active(ctx context.Context) ([]models.Strategy, error)
	All(ctx context.Context) ([]models.Strategy, error)
	Deactivate(ctx context.Context, id int64, reason string, at time.Time) error
}

type OrderStore interface {
	OpenForStrategy(ctx context.Context, strategyID int64) (*models.Order, error)
	Insert(ctx context.Context, o *models.Order) error
}

type ConfigStore interface {
	GlobalStop(ctx context.Context) (models.GlobalStopConfig, error)
}

type Submitter interface {
	SubmitOrder(ctx context.Context, activeID int, direction models.Direction, price float64,
		balanceID int64, profitPercent int, strategyID *int64) (models.Order, error)
}

type CandleSource interface {
	Candles(symbol string, timeframe, limit int) []models.Candle
}

type MarketView interface {
	ActiveIDByName(name string) (int, bool)
	BinaryPayout(activeID int) (int, bool)
}

type EngineStats struct {
	Ticks             int64
	SkippedTicks      int64
	OrdersSubmitted   int64
	StrategiesStopped int64
	LastTick          time.Time
}

// Engine runs the fixed-interval strategy pass: global stop first, then
// every active strategy strictly in ascending id order. A tick that
// finds the previous one still running is skipped, not overlapped.
type Engine struct {
	cfg       *config.Config
	strats    StrategyStore
	orders    OrderStore
	configs   ConfigStore
	submitter Submitter
	candles   CandleSource
	market    MarketView
	registry  *signal.Registry
	n         notify.Notifier

	busy atomic.Bool

	ticks             atomic.Int64
	skippedTicks      atomic.Int64
	ordersSubmitted   atomic.Int64
	strategiesStopped atomic.Int64

	mu       sync.Mutex
	lastTick time.Time
	cancel   context.CancelFunc

	now func() time.Time
}

func NewEngine(
	cfg *config.Config,
	strats StrategyStore,
	orders OrderStore,
	configs ConfigStore,
	submitter Submitter,
	candles CandleSource,
	market MarketView,
	registry *signal.Registry,
	n notify.Notifier,
) *Engine {
	return &Engine{
		cfg:       cfg,
		strats:    strats,
		orders:    orders,
		configs:   configs,
		submitter: submitter,
		candles:   candles,
		market:    market,
		registry:  registry,
		n:         n,
		now:       time.Now,
	}
}

// Start launches the scheduler loop. The timer fires unconditionally
// every TickInterval; slow ticks are skipped rather than stacked.
func (e *Engine) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)

	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		cancel()
		return
	}
	e.cancel = cancel
	e.mu.Unlock()

	logger.Info("strategy engine started, tick interval %s", e.cfg.TickInterval)
	go func() {
		t := time.NewTicker(e.cfg.TickInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if !e.busy.CompareAndSwap(false, true) {
					e.skippedTicks.Add(1)
					continue
				}
				e.runTick(ctx)
				e.busy.Store(false)
			}
		}
	}()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		logger.Info("strategy engine stopped")
	}
}

func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	last := e.lastTick
	e.mu.Unlock()
	return EngineStats{
		Ticks:             e.ticks.Load(),
		SkippedTicks:      e.skippedTicks.Load(),
		OrdersSubmitted:   e.ordersSubmitted.Load(),
		StrategiesStopped: e.strategiesStopped.Load(),
		LastTick:          last,
	}
}
