package service

import (
	"context"

	"optionbot/internal/brokererr"
	"optionbot/internal/models"
	"optionbot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

func (e *Engine) runTick(ctx context.Context) {
	span := opentracing.StartSpan("engine.tick")
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	e.ticks.Add(1)
	e.mu.Lock()
	e.lastTick = e.now()
	e.mu.Unlock()

	if stopped := e.checkGlobalStop(ctx); stopped {
		// breach, or the limit could not be verified: no per-strategy
		// work runs this tick
		return
	}

	active, err := e.strats.Active(ctx)
	if err != nil {
		logger.Error("tick: load active strategies: %v", err)
		return
	}

	for _, s := range active {
		e.processStrategy(ctx, s)
	}
}

// checkGlobalStop compares the aggregate day profit of all strategies
// against the account-wide limits. On a breach every active strategy is
// deactivated and true is returned. A load failure also returns true:
// no orders go out while the account-wide limit cannot be verified.
func (e *Engine) checkGlobalStop(ctx context.Context) bool {
	cfg, err := e.configs.GlobalStop(ctx)
	if err != nil {
		logger.Error("tick: load global stop config: %v", err)
		return true
	}
	if !cfg.StopLossEnabled && !cfg.StopGainEnabled {
		return false
	}

	all, err := e.strats.All(ctx)
	if err != nil {
		logger.Error("tick: load strategies: %v", err)
		return true
	}

	var total float64
	for _, s := range all {
		total += s.CurrentDayProfit
	}

	var reason string
	switch {
	case cfg.StopLossEnabled && total <= -cfg.StopLossValue:
		reason = "global_stop_loss"
	case cfg.StopGainEnabled && total >= cfg.StopGainValue:
		reason = "global_stop_gain"
	default:
		return false
	}

	now := e.now()
	stopped := 0
	for _, s := range all {
		if !s.Active {
			continue
		}
		if err := e.strats.Deactivate(ctx, s.ID, reason, now); err != nil {
			logger.Error("deactivate strategy %d: %v", s.ID, err)
			continue
		}
		stopped++
	}
	e.strategiesStopped.Add(int64(stopped))
	logger.Warn("%s hit (day profit %.2f): deactivated %d strategies", reason, total, stopped)
	e.n.Sendf("⛔ %s: day profit %.2f, %d strategies deactivated", reason, total, stopped)
	return true
}

// processStrategy runs one strategy's slice of the tick. Failures are
// logged and isolated: they never abort the remaining strategies.
func (e *Engine) processStrategy(ctx context.Context, s models.Strategy) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("strategy %d: panic in tick: %v", s.ID, p)
		}
	}()

	open, err := e.orders.OpenForStrategy(ctx, s.ID)
	if err != nil {
		logger.Error("strategy %d: open-order check: %v", s.ID, err)
		return
	}
	if open != nil {
		return // at most one open order per strategy
	}

	if breached, reason := s.StopBreached(); breached {
		e.deactivate(ctx, s.ID, reason)
		return
	}

	timeframe := s.Timeframe
	if timeframe <= 0 {
		timeframe = 60
	}
	window := e.candles.Candles(s.Asset, timeframe, e.cfg.LookbackCandles)
	if len(window) == 0 {
		return // no market data yet for this asset
	}

	fn, ok := e.registry.Lookup(s.SignalFunc)
	if !ok {
		logger.Warn("strategy %d: unknown signal function %q", s.ID, s.SignalFunc)
		return
	}

	side := fn(window)
	direction, ok := models.DirectionFor(side)
	if !ok {
		return
	}

	activeID, ok := e.market.ActiveIDByName(s.Asset)
	if !ok {
		logger.Warn("strategy %d: asset %q not in market cache", s.ID, s.Asset)
		return
	}
	payout, _ := e.market.BinaryPayout(activeID)

	order, err := e.submitter.SubmitOrder(ctx, activeID, direction, s.EntryValue, e.cfg.BalanceID, payout, &s.ID)
	if err != nil {
		if errors.Is(err, brokererr.ErrStopConditionReached) {
			// safety net: the submitter saw a stop the engine missed
			e.deactivate(ctx, s.ID, "stop_condition")
			return
		}
		logger.Error("strategy %d: submit order: %v", s.ID, err)
		return
	}

	if err := e.orders.Insert(ctx, &order); err != nil {
		logger.Error("strategy %d: persist order %d: %v", s.ID, order.ID, err)
	}
	e.ordersSubmitted.Add(1)
	logger.Info("strategy %d: %s %s %.2f (order %d)", s.ID, s.Asset, direction, s.EntryValue, order.ID)
}

func (e *Engine) deactivate(ctx context.Context, id int64, reason string) {
	if err := e.strats.Deactivate(ctx, id, reason, e.now()); err != nil {
		logger.Error("deactivate strategy %d: %v", id, err)
		return
	}
	e.strategiesStopped.Add(1)
	logger.Warn("strategy %d deactivated: %s", id, reason)
	e.n.Sendf("🛑 strategy %d deactivated: %s", id, reason)
}
