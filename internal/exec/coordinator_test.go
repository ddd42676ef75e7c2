package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cross-arb-bot/internal/ledger"
	"cross-arb-bot/internal/metrics"
	"cross-arb-bot/internal/stats"
	"cross-arb-bot/internal/venue"

	"go.uber.org/zap"
)

type fakeGateway struct {
	name string

	mu       sync.Mutex
	placed   []venue.OrderRequest
	placeErr error
	emptyID  bool
	pollErrs int
	statuses []venue.OrderStatus
	seq      int
}

func (f *fakeGateway) Name() string { return f.name }

func (f *fakeGateway) PlaceOrder(_ context.Context, req venue.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	if f.placeErr != nil {
		return "", f.placeErr
	}
	if f.emptyID {
		return "", nil
	}
	f.seq++
	return fmt.Sprintf("%s-%d", f.name, f.seq), nil
}

func (f *fakeGateway) OrderStatus(_ context.Context, _, _ string) (venue.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErrs > 0 {
		f.pollErrs--
		return venue.StatusPending, errors.New("poll failed")
	}
	if len(f.statuses) == 0 {
		return venue.StatusFilled, nil
	}
	status := f.statuses[0]
	f.statuses = f.statuses[1:]
	return status, nil
}

func (f *fakeGateway) StreamOrderBook(ctx context.Context, _ string, _ func(venue.BookTop)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeGateway) placedOrders() []venue.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]venue.OrderRequest, len(f.placed))
	copy(out, f.placed)
	return out
}

func newCoordinator(gwA, gwB *fakeGateway, pollAttempts int) (*Coordinator, *ledger.Ledger, *stats.Sink) {
	log := zap.NewNop()
	led := ledger.New(gwA.name, gwB.name)
	sink := stats.New(log, nil)
	c := New(gwA, gwB, led, sink, metrics.NewNoop(), log, "BTCUSDT", 0.01, pollAttempts, time.Millisecond)
	return c, led, sink
}

func testPlan() OpenPlan {
	return OpenPlan{
		LegA: venue.OrderRequest{Symbol: "BTCUSDT", Side: venue.SideBuy, Size: 0.01, LimitPrice: 100.0},
		LegB: venue.OrderRequest{Symbol: "BTCUSDT", Side: venue.SideSell, Size: 0.01, LimitPrice: 100.6},
	}
}

func TestOpenHedgePlacesBothLegsInOrder(t *testing.T) {
	gwA := &fakeGateway{name: "aster"}
	gwB := &fakeGateway{name: "bitget"}
	c, led, _ := newCoordinator(gwA, gwB, 3)
	if err := c.OpenHedge(context.Background(), testPlan()); err != nil {
		t.Fatalf("open hedge failed: %v", err)
	}
	if len(gwA.placedOrders()) != 1 || len(gwB.placedOrders()) != 1 {
		t.Fatalf("expected one order per venue")
	}
	if led.Position("aster") != ledger.PositionLong || led.Position("bitget") != ledger.PositionShort {
		t.Fatalf("unexpected positions: %s/%s", led.Position("aster"), led.Position("bitget"))
	}
}

func TestOpenHedgeLegAPlacementError(t *testing.T) {
	gwA := &fakeGateway{name: "aster", placeErr: errors.New("boom")}
	gwB := &fakeGateway{name: "bitget"}
	c, led, _ := newCoordinator(gwA, gwB, 3)
	err := c.OpenHedge(context.Background(), testPlan())
	if !errors.Is(err, ErrLegRejected) {
		t.Fatalf("expected ErrLegRejected, got %v", err)
	}
	if len(gwB.placedOrders()) != 0 {
		t.Fatalf("leg B must not be placed after a leg A failure")
	}
	if !led.Flat() {
		t.Fatalf("expected flat ledger")
	}
}

func TestOpenHedgeEmptyOrderIDRejected(t *testing.T) {
	gwA := &fakeGateway{name: "aster", emptyID: true}
	gwB := &fakeGateway{name: "bitget"}
	c, _, _ := newCoordinator(gwA, gwB, 3)
	err := c.OpenHedge(context.Background(), testPlan())
	if !errors.Is(err, ErrLegRejected) {
		t.Fatalf("expected ErrLegRejected for empty order id, got %v", err)
	}
	if len(gwB.placedOrders()) != 0 {
		t.Fatalf("leg B must not be placed after a leg A failure")
	}
}

func TestOpenHedgeLegBCanceledFlattensBoth(t *testing.T) {
	gwA := &fakeGateway{name: "aster"}
	gwB := &fakeGateway{name: "bitget", statuses: []venue.OrderStatus{venue.StatusCanceled}}
	c, led, _ := newCoordinator(gwA, gwB, 3)
	err := c.OpenHedge(context.Background(), testPlan())
	if !errors.Is(err, ErrLegRejected) {
		t.Fatalf("expected ErrLegRejected, got %v", err)
	}
	placedA := gwA.placedOrders()
	placedB := gwB.placedOrders()
	if len(placedA) != 2 || len(placedB) != 2 {
		t.Fatalf("expected open plus flatten per venue, got %d/%d", len(placedA), len(placedB))
	}
	if !placedA[1].ReduceOnly || placedA[1].Side != venue.SideSell {
		t.Fatalf("expected reduce-only sell on aster, got %+v", placedA[1])
	}
	if !placedB[1].ReduceOnly || placedB[1].Side != venue.SideBuy {
		t.Fatalf("expected reduce-only buy on bitget, got %+v", placedB[1])
	}
	if !led.Flat() {
		t.Fatalf("expected flat ledger after flatten")
	}
}

func TestOpenHedgeFillTimeout(t *testing.T) {
	gwA := &fakeGateway{name: "aster", statuses: []venue.OrderStatus{venue.StatusPending, venue.StatusPending}}
	gwB := &fakeGateway{name: "bitget"}
	c, led, _ := newCoordinator(gwA, gwB, 2)
	err := c.OpenHedge(context.Background(), testPlan())
	if !errors.Is(err, ErrFillTimeout) {
		t.Fatalf("expected ErrFillTimeout, got %v", err)
	}
	placedA := gwA.placedOrders()
	if len(placedA) != 2 || !placedA[1].ReduceOnly {
		t.Fatalf("expected flatten after timeout, got %+v", placedA)
	}
	if len(gwB.placedOrders()) != 0 {
		t.Fatalf("leg B must not be placed after a leg A timeout")
	}
	if !led.Flat() {
		t.Fatalf("expected flat ledger after timeout")
	}
}

func TestWaitFilledRetriesAfterPollError(t *testing.T) {
	gwA := &fakeGateway{name: "aster", pollErrs: 1}
	gwB := &fakeGateway{name: "bitget"}
	c, _, _ := newCoordinator(gwA, gwB, 3)
	if err := c.OpenHedge(context.Background(), testPlan()); err != nil {
		t.Fatalf("expected success after transient poll error, got %v", err)
	}
}

func TestFlattenAllIsBestEffort(t *testing.T) {
	gwA := &fakeGateway{name: "aster", placeErr: errors.New("venue down")}
	gwB := &fakeGateway{name: "bitget"}
	c, led, sink := newCoordinator(gwA, gwB, 3)
	led.ApplyAck("aster", venue.SideBuy, false)
	led.ApplyAck("bitget", venue.SideSell, false)
	c.FlattenAll(context.Background())
	if led.Position("aster") != ledger.PositionLong {
		t.Fatalf("aster must keep its position when the flatten order fails")
	}
	if led.Position("bitget") != ledger.PositionNone {
		t.Fatalf("bitget must be flat after its flatten order")
	}
	placedB := gwB.placedOrders()
	if len(placedB) != 1 || !placedB[0].ReduceOnly || placedB[0].Side != venue.SideBuy {
		t.Fatalf("expected reduce-only buy on bitget, got %+v", placedB)
	}
	var sawError bool
	for _, entry := range sink.Logs() {
		if entry.Category == "error" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected an error log entry for the failed flatten")
	}
}
