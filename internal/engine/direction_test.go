package engine

import (
	"math"
	"testing"

	"cross-arb-bot/internal/ledger"
	"cross-arb-bot/internal/venue"
)

func top(name string, bid, ask float64) venue.BookTop {
	return venue.BookTop{Venue: name, BidPrice: bid, BidSize: 1, AskPrice: ask, AskSize: 1}
}

func TestDirectionOf(t *testing.T) {
	if got := DirectionOf(ledger.Hedge{SideA: venue.SideBuy, SideB: venue.SideSell}); got != DirectionForward {
		t.Fatalf("expected forward, got %s", got)
	}
	if got := DirectionOf(ledger.Hedge{SideA: venue.SideSell, SideB: venue.SideBuy}); got != DirectionReverse {
		t.Fatalf("expected reverse, got %s", got)
	}
}

func TestOpenSpread(t *testing.T) {
	a := top("a", 99.9, 100.0)
	b := top("b", 100.6, 100.7)
	if got := DirectionForward.OpenSpread(a, b); math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("expected forward spread 0.6, got %v", got)
	}
	if got := DirectionReverse.OpenSpread(a, b); math.Abs(got-(-0.8)) > 1e-9 {
		t.Fatalf("expected reverse spread -0.8, got %v", got)
	}
}

func TestOpenLegs(t *testing.T) {
	a := top("a", 99.9, 100.0)
	b := top("b", 100.6, 100.7)
	legA, legB := DirectionForward.OpenLegs("BTCUSDT", 0.01, a, b)
	if legA.Side != venue.SideBuy || legA.LimitPrice != 100.0 {
		t.Fatalf("unexpected forward leg A: %+v", legA)
	}
	if legB.Side != venue.SideSell || legB.LimitPrice != 100.6 {
		t.Fatalf("unexpected forward leg B: %+v", legB)
	}
	legA, legB = DirectionReverse.OpenLegs("BTCUSDT", 0.01, a, b)
	if legA.Side != venue.SideSell || legA.LimitPrice != 99.9 {
		t.Fatalf("unexpected reverse leg A: %+v", legA)
	}
	if legB.Side != venue.SideBuy || legB.LimitPrice != 100.7 {
		t.Fatalf("unexpected reverse leg B: %+v", legB)
	}
}

func TestCloseSpread(t *testing.T) {
	a := top("a", 100.5, 100.55)
	b := top("b", 100.6, 100.65)
	if got := DirectionForward.CloseSpread(a, b); math.Abs(got-0.05) > 1e-9 {
		t.Fatalf("expected forward close spread 0.05, got %v", got)
	}
	if got := DirectionReverse.CloseSpread(a, b); math.Abs(got-0.15) > 1e-9 {
		t.Fatalf("expected reverse close spread 0.15, got %v", got)
	}
}

func TestMarkProfits(t *testing.T) {
	h := ledger.Hedge{EntryPriceA: 100.0, EntryPriceB: 100.6, Size: 0.01}
	a := top("a", 100.5, 100.55)
	b := top("b", 100.4, 100.45)
	markA, markB := DirectionForward.MarkProfits(a, b, h)
	if math.Abs(markA-0.0055) > 1e-9 {
		t.Fatalf("expected forward mark A 0.0055, got %v", markA)
	}
	if math.Abs(markB-0.002) > 1e-9 {
		t.Fatalf("expected forward mark B 0.002, got %v", markB)
	}
	markA, markB = DirectionReverse.MarkProfits(a, b, h)
	if math.Abs(markA-(-0.005)) > 1e-9 {
		t.Fatalf("expected reverse mark A -0.005, got %v", markA)
	}
	if math.Abs(markB-(-0.0015)) > 1e-9 {
		t.Fatalf("expected reverse mark B -0.0015, got %v", markB)
	}
}

func TestRealizedProfit(t *testing.T) {
	h := ledger.Hedge{EntryPriceA: 100.0, EntryPriceB: 100.6, Size: 0.01}
	a := top("a", 100.5, 100.55)
	b := top("b", 100.4, 100.45)
	// (100.4-100.6)*0.01 - (100.55-100.0)*0.01
	if got := DirectionForward.RealizedProfit(a, b, h); math.Abs(got-(-0.0075)) > 1e-9 {
		t.Fatalf("expected forward profit -0.0075, got %v", got)
	}
	// (100.6-100.4)*0.01 - (100.0-100.55)*0.01
	if got := DirectionReverse.RealizedProfit(a, b, h); math.Abs(got-0.0075) > 1e-9 {
		t.Fatalf("expected reverse profit 0.0075, got %v", got)
	}
}
