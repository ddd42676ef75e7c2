package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	HedgesOpened  Counter
	HedgesClosed  Counter
	ForcedUnwinds Counter
	OrdersPlaced  Counter
	LegsFailed    Counter
	Flattens      Counter
	StreamErrors  Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		HedgesOpened:  n,
		HedgesClosed:  n,
		ForcedUnwinds: n,
		OrdersPlaced:  n,
		LegsFailed:    n,
		Flattens:      n,
		StreamErrors:  n,
	}
}
