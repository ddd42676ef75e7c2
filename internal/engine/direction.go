package engine

import (
	"math"

	"cross-arb-bot/internal/ledger"
	"cross-arb-bot/internal/venue"
)

// Direction identifies which way a hedge leans: forward buys venue A at its
// ask and sells venue B at its bid; reverse is the mirror. All open/close
// arithmetic hangs off the direction so both sides share one code path.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// DirectionOf recovers the direction from an open hedge's venue A side.
func DirectionOf(h ledger.Hedge) Direction {
	if h.SideA == venue.SideBuy {
		return DirectionForward
	}
	return DirectionReverse
}

// OpenSpread is the arbitrage signal: the sell venue's bid minus the buy
// venue's ask.
func (d Direction) OpenSpread(a, b venue.BookTop) float64 {
	if d == DirectionForward {
		return b.BidPrice - a.AskPrice
	}
	return a.BidPrice - b.AskPrice
}

// OpenLegs builds both marketable limit orders at the current touch.
func (d Direction) OpenLegs(symbol string, size float64, a, b venue.BookTop) (venue.OrderRequest, venue.OrderRequest) {
	if d == DirectionForward {
		legA := venue.OrderRequest{Symbol: symbol, Side: venue.SideBuy, Size: size, LimitPrice: a.AskPrice}
		legB := venue.OrderRequest{Symbol: symbol, Side: venue.SideSell, Size: size, LimitPrice: b.BidPrice}
		return legA, legB
	}
	legA := venue.OrderRequest{Symbol: symbol, Side: venue.SideSell, Size: size, LimitPrice: a.BidPrice}
	legB := venue.OrderRequest{Symbol: symbol, Side: venue.SideBuy, Size: size, LimitPrice: b.AskPrice}
	return legA, legB
}

// CloseSpread is the absolute spread across the legs needed to unwind the
// hedge at the current touch.
func (d Direction) CloseSpread(a, b venue.BookTop) float64 {
	if d == DirectionForward {
		return math.Abs(a.AskPrice - b.BidPrice)
	}
	return math.Abs(a.BidPrice - b.AskPrice)
}

// MarkProfits is the mark-to-market profit of each leg against its entry,
// signed by the open direction.
func (d Direction) MarkProfits(a, b venue.BookTop, h ledger.Hedge) (float64, float64) {
	if d == DirectionForward {
		return (a.AskPrice - h.EntryPriceA) * h.Size, (h.EntryPriceB - b.BidPrice) * h.Size
	}
	return (h.EntryPriceA - a.BidPrice) * h.Size, (b.AskPrice - h.EntryPriceB) * h.Size
}

// RealizedProfit is the signed round-trip P&L across both legs at the
// current touch.
func (d Direction) RealizedProfit(a, b venue.BookTop, h ledger.Hedge) float64 {
	if d == DirectionForward {
		return (b.BidPrice-h.EntryPriceB)*h.Size - (a.AskPrice-h.EntryPriceA)*h.Size
	}
	return (h.EntryPriceB-b.BidPrice)*h.Size - (h.EntryPriceA-a.AskPrice)*h.Size
}
