package venue

import (
	"context"
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusFilled   OrderStatus = "filled"
	StatusCanceled OrderStatus = "canceled"
	StatusRejected OrderStatus = "rejected"
)

func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected
}

// OrderRequest describes one order on one venue. A zero LimitPrice means a
// market order; a non-zero LimitPrice is placed as an immediate-or-cancel
// (FOK) limit at that price.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Size       float64
	LimitPrice float64
	ReduceOnly bool
}

// BookTop is the latest best bid/ask for one venue. Superseded wholesale by
// the next update; no depth or history is kept.
type BookTop struct {
	Venue    string
	BidPrice float64
	BidSize  float64
	AskPrice float64
	AskSize  float64
	Time     time.Time
}

// Gateway is the per-venue client surface consumed by the controller.
// StreamOrderBook blocks, invoking fn for every book update, and returns only
// on stream failure or context cancellation; the caller owns reconnection.
type Gateway interface {
	Name() string
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	OrderStatus(ctx context.Context, symbol, orderID string) (OrderStatus, error)
	StreamOrderBook(ctx context.Context, symbol string, fn func(BookTop)) error
}
