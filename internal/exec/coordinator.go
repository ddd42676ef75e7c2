package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cross-arb-bot/internal/ledger"
	"cross-arb-bot/internal/metrics"
	"cross-arb-bot/internal/stats"
	"cross-arb-bot/internal/venue"

	"go.uber.org/zap"
)

var (
	ErrLegRejected = errors.New("leg placement rejected")
	ErrFillTimeout = errors.New("fill confirmation timed out")
)

// OpenPlan is a two-leg hedge open: leg A is placed and confirmed before leg
// B is touched, so a leg A failure never leaves hidden leg B exposure.
type OpenPlan struct {
	LegA venue.OrderRequest
	LegB venue.OrderRequest
}

// Coordinator sequences two-leg order placement with fill confirmation and
// guarantees a flat book via FlattenAll before reporting any leg failure.
type Coordinator struct {
	gwA     venue.Gateway
	gwB     venue.Gateway
	ledger  *ledger.Ledger
	sink    *stats.Sink
	log     *zap.Logger
	metrics *metrics.Metrics

	symbol       string
	size         float64
	pollAttempts int
	pollInterval time.Duration
}

func New(gwA, gwB venue.Gateway, led *ledger.Ledger, sink *stats.Sink, m *metrics.Metrics, log *zap.Logger, symbol string, size float64, pollAttempts int, pollInterval time.Duration) *Coordinator {
	return &Coordinator{
		gwA:          gwA,
		gwB:          gwB,
		ledger:       led,
		sink:         sink,
		log:          log,
		metrics:      m,
		symbol:       symbol,
		size:         size,
		pollAttempts: pollAttempts,
		pollInterval: pollInterval,
	}
}

// OpenHedge places both legs strictly in order. Any failure flattens all
// exposure before the error is returned; the caller stays Idle.
func (c *Coordinator) OpenHedge(ctx context.Context, plan OpenPlan) error {
	if err := c.openLeg(ctx, c.gwA, plan.LegA); err != nil {
		c.metrics.LegsFailed.Inc()
		c.FlattenAll(ctx)
		return fmt.Errorf("leg %s: %w", c.gwA.Name(), err)
	}
	if err := c.openLeg(ctx, c.gwB, plan.LegB); err != nil {
		c.metrics.LegsFailed.Inc()
		c.FlattenAll(ctx)
		return fmt.Errorf("leg %s: %w", c.gwB.Name(), err)
	}
	return nil
}

func (c *Coordinator) openLeg(ctx context.Context, gw venue.Gateway, req venue.OrderRequest) error {
	orderID, err := gw.PlaceOrder(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLegRejected, err)
	}
	if orderID == "" {
		return fmt.Errorf("%w: empty order id", ErrLegRejected)
	}
	c.ledger.ApplyAck(gw.Name(), req.Side, false)
	c.metrics.OrdersPlaced.Inc()
	return c.waitFilled(ctx, gw, req.Symbol, orderID)
}

// waitFilled polls order status with a bounded attempt budget. Poll errors
// are swallowed and retried; a terminal canceled/rejected status fails
// immediately without exhausting the budget.
func (c *Coordinator) waitFilled(ctx context.Context, gw venue.Gateway, symbol, orderID string) error {
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		status, err := gw.OrderStatus(ctx, symbol, orderID)
		if err == nil {
			switch status {
			case venue.StatusFilled:
				return nil
			case venue.StatusCanceled, venue.StatusRejected:
				return fmt.Errorf("%w: order %s %s", ErrLegRejected, orderID, status)
			}
		} else {
			c.log.Debug("order status poll failed", zap.String("venue", gw.Name()), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return fmt.Errorf("%w: order %s", ErrFillTimeout, orderID)
}

// FlattenAll issues a reduce-only order against every venue with open
// exposure. Best-effort: a failure on one venue is logged and the other is
// still attempted. The ledger position resets to none on ack; confirmation
// is not awaited.
func (c *Coordinator) FlattenAll(ctx context.Context) {
	c.metrics.Flattens.Inc()
	for _, gw := range []venue.Gateway{c.gwA, c.gwB} {
		pos := c.ledger.Position(gw.Name())
		if pos == ledger.PositionNone {
			continue
		}
		side := venue.SideSell
		if pos == ledger.PositionShort {
			side = venue.SideBuy
		}
		req := venue.OrderRequest{
			Symbol:     c.symbol,
			Side:       side,
			Size:       c.size,
			ReduceOnly: true,
		}
		if _, err := gw.PlaceOrder(ctx, req); err != nil {
			c.log.Warn("flatten order failed, residual exposure may remain",
				zap.String("venue", gw.Name()),
				zap.String("side", string(side)),
				zap.Error(err),
			)
			c.sink.Record("error", fmt.Sprintf("[%s] flatten %s failed: %v", gw.Name(), side, err))
			continue
		}
		c.metrics.OrdersPlaced.Inc()
		c.ledger.ApplyAck(gw.Name(), side, true)
	}
}
