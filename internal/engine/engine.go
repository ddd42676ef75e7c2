package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"cross-arb-bot/internal/config"
	"cross-arb-bot/internal/exec"
	"cross-arb-bot/internal/ledger"
	"cross-arb-bot/internal/marketdata"
	"cross-arb-bot/internal/metrics"
	"cross-arb-bot/internal/state"
	"cross-arb-bot/internal/stats"
	"cross-arb-bot/internal/venue"

	"go.uber.org/zap"
)

// Engine is the arbitrage decision loop. A single goroutine runs the cycle
// and is the only writer of position and hedge state; market data arrives
// through the cache's own stream goroutines.
type Engine struct {
	cfg     config.StrategyConfig
	cache   *marketdata.Cache
	coord   *exec.Coordinator
	ledger  *ledger.Ledger
	sink    *stats.Sink
	sm      *StateMachine
	store   state.Store
	log     *zap.Logger
	metrics *metrics.Metrics

	venueA string
	venueB string
	paused atomic.Bool
}

func New(cfg config.StrategyConfig, cache *marketdata.Cache, coord *exec.Coordinator, led *ledger.Ledger, sink *stats.Sink, store state.Store, m *metrics.Metrics, log *zap.Logger, venueA, venueB string) *Engine {
	return &Engine{
		cfg:     cfg,
		cache:   cache,
		coord:   coord,
		ledger:  led,
		sink:    sink,
		sm:      NewStateMachine(),
		store:   store,
		log:     log,
		metrics: m,
		venueA:  venueA,
		venueB:  venueB,
	}
}

func (e *Engine) State() State { return e.sm.Current() }

// SetPaused gates new hedge opens only; an open hedge keeps being managed.
func (e *Engine) SetPaused(paused bool) bool {
	e.paused.Store(paused)
	return paused
}

func (e *Engine) Paused() bool { return e.paused.Load() }

// Restore resumes a Holding state persisted by a previous run.
func (e *Engine) Restore(ctx context.Context) error {
	snap, ok, err := state.LoadHedgeSnapshot(ctx, e.store)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	h := ledger.Hedge{
		EntryPriceA: snap.EntryPriceA,
		EntryPriceB: snap.EntryPriceB,
		SideA:       venue.Side(snap.SideA),
		SideB:       venue.Side(snap.SideB),
		Size:        snap.Size,
		OpenedAt:    time.UnixMilli(snap.OpenedAtMS).UTC(),
	}
	e.ledger.OpenHedge(h)
	e.ledger.ApplyAck(e.venueA, h.SideA, false)
	e.ledger.ApplyAck(e.venueB, h.SideB, false)
	e.sm.SetState(StateHolding)
	e.log.Info("restored open hedge",
		zap.String("direction", string(DirectionOf(h))),
		zap.Float64("entry_a", h.EntryPriceA),
		zap.Float64("entry_b", h.EntryPriceB),
	)
	e.sink.Record("info", fmt.Sprintf("restored open hedge (%s), resuming holding", DirectionOf(h)))
	return nil
}

// Run drives the decision loop until the context ends. A failed cycle never
// stops the loop: it is logged, all exposure is flattened, and the engine
// resets to Idle.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.cycle(ctx); err != nil {
			e.log.Error("decision cycle failed, flattening", zap.Error(err))
			e.sink.Record("error", fmt.Sprintf("cycle failed: %v", err))
			e.sink.EmitLog(fmt.Sprintf("[cycle error] %v, flattening all positions", err))
			e.coord.FlattenAll(ctx)
			e.ledger.ClearHedge()
			if err := state.ClearHedgeSnapshot(ctx, e.store); err != nil {
				e.log.Warn("failed to clear hedge snapshot", zap.Error(err))
			}
			e.sm.SetState(StateIdle)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.TickInterval):
		}
	}
}

func (e *Engine) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	topA, okA := e.cache.Top(e.venueA)
	topB, okB := e.cache.Top(e.venueB)
	if !okA || !okB {
		return nil
	}
	fwd := DirectionForward.OpenSpread(topA, topB)
	rev := DirectionReverse.OpenSpread(topA, topB)
	e.sink.EmitTick(stats.Tick{TopA: topA, TopB: topB, DiffForward: fwd, DiffReverse: rev})

	switch e.sm.Current() {
	case StateIdle:
		return e.idleCycle(ctx, topA, topB, fwd, rev)
	case StateHolding:
		return e.holdingCycle(ctx, topA, topB)
	}
	return nil
}

func (e *Engine) idleCycle(ctx context.Context, topA, topB venue.BookTop, fwd, rev float64) error {
	if e.paused.Load() {
		return nil
	}
	var dir Direction
	switch {
	case fwd > e.cfg.OpenThreshold:
		dir = DirectionForward
	case rev > e.cfg.OpenThreshold:
		dir = DirectionReverse
	default:
		return nil
	}
	legA, legB := dir.OpenLegs(e.cfg.Symbol, e.cfg.TradeAmount, topA, topB)
	if err := e.coord.OpenHedge(ctx, exec.OpenPlan{LegA: legA, LegB: legB}); err != nil {
		e.log.Warn("hedge open failed", zap.String("direction", string(dir)), zap.Error(err))
		e.sink.Record("error", fmt.Sprintf("hedge open failed: %v", err))
		e.sink.EmitLog(fmt.Sprintf("[open failed] %v, exposure flattened", err))
		return nil
	}
	h := ledger.Hedge{
		EntryPriceA: legA.LimitPrice,
		EntryPriceB: legB.LimitPrice,
		SideA:       legA.Side,
		SideB:       legB.Side,
		Size:        e.cfg.TradeAmount,
		OpenedAt:    time.Now().UTC(),
	}
	e.ledger.OpenHedge(h)
	e.sm.Apply(EventOpened)
	e.sink.RecordOpen(ctx, h.Size)
	e.sink.Record("open", fmt.Sprintf("%s %s %v @ %v, %s %s %v @ %v",
		e.venueA, legA.Side, legA.Size, legA.LimitPrice,
		e.venueB, legB.Side, legB.Size, legB.LimitPrice,
	))
	e.sink.EmitTrade(stats.TradeEvent{Venue: e.venueA, Side: legA.Side, Size: legA.Size, Price: legA.LimitPrice, Kind: stats.TradeOpen})
	e.sink.EmitTrade(stats.TradeEvent{Venue: e.venueB, Side: legB.Side, Size: legB.Size, Price: legB.LimitPrice, Kind: stats.TradeOpen})
	e.sink.EmitLog("[arb] hedge opened, waiting for a close window")
	e.sink.EmitStats()
	e.metrics.HedgesOpened.Inc()
	e.saveHedge(ctx, dir, h)
	e.log.Info("hedge opened",
		zap.String("direction", string(dir)),
		zap.Float64("entry_a", h.EntryPriceA),
		zap.Float64("entry_b", h.EntryPriceB),
		zap.Float64("size", h.Size),
	)
	return nil
}

func (e *Engine) holdingCycle(ctx context.Context, topA, topB venue.BookTop) error {
	h, ok := e.ledger.Hedge()
	if !ok {
		return errors.New("holding state without an open hedge record")
	}
	dir := DirectionOf(h)
	closeSpread := dir.CloseSpread(topA, topB)
	markA, markB := dir.MarkProfits(topA, topB, h)
	divergence := math.Abs(markA - markB)
	forced := divergence > e.cfg.ProfitDivergenceLimit
	if closeSpread >= e.cfg.CloseThreshold && !forced {
		return nil
	}
	profit := dir.RealizedProfit(topA, topB, h)
	e.sink.RecordClose(ctx, profit)
	for _, leg := range []struct {
		venue string
		side  venue.Side
	}{
		{e.venueA, h.SideA},
		{e.venueB, h.SideB},
	} {
		e.sink.EmitTrade(stats.TradeEvent{Venue: leg.venue, Side: leg.side, Size: h.Size, Kind: stats.TradeClose, Profit: profit})
	}
	e.coord.FlattenAll(ctx)
	e.ledger.ClearHedge()
	if err := state.ClearHedgeSnapshot(ctx, e.store); err != nil {
		e.log.Warn("failed to clear hedge snapshot", zap.Error(err))
	}
	e.sm.Apply(EventClosed)
	suffix := ""
	if forced {
		suffix = " (profit divergence over limit, forced unwind)"
		e.metrics.ForcedUnwinds.Inc()
	}
	e.sink.Record("close", fmt.Sprintf("closed, profit %.2f USDT%s", profit, suffix))
	e.sink.EmitLog(fmt.Sprintf("[close] both legs closed, profit %.2f USDT%s", profit, suffix))
	e.sink.EmitStats()
	e.metrics.HedgesClosed.Inc()
	e.log.Info("hedge closed",
		zap.String("direction", string(dir)),
		zap.Float64("profit", profit),
		zap.Float64("close_spread", closeSpread),
		zap.Float64("divergence", divergence),
		zap.Bool("forced", forced),
	)
	return nil
}

func (e *Engine) saveHedge(ctx context.Context, dir Direction, h ledger.Hedge) {
	snap := state.HedgeSnapshot{
		Direction:   string(dir),
		EntryPriceA: h.EntryPriceA,
		EntryPriceB: h.EntryPriceB,
		SideA:       string(h.SideA),
		SideB:       string(h.SideB),
		Size:        h.Size,
		OpenedAtMS:  h.OpenedAt.UnixMilli(),
	}
	if err := state.SaveHedgeSnapshot(ctx, e.store, snap); err != nil {
		e.log.Warn("failed to persist hedge snapshot", zap.Error(err))
	}
}
