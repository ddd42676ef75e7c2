package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "cross_arb_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	newCounter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}
	m := &Metrics{
		HedgesOpened:  promCounter{newCounter("hedges_opened_total", "Total number of hedges opened.")},
		HedgesClosed:  promCounter{newCounter("hedges_closed_total", "Total number of hedges closed.")},
		ForcedUnwinds: promCounter{newCounter("forced_unwinds_total", "Total number of risk-driven forced unwinds.")},
		OrdersPlaced:  promCounter{newCounter("orders_placed_total", "Total number of orders acknowledged by a venue.")},
		LegsFailed:    promCounter{newCounter("legs_failed_total", "Total number of failed hedge legs.")},
		Flattens:      promCounter{newCounter("flattens_total", "Total number of flattening passes issued.")},
		StreamErrors:  promCounter{newCounter("stream_errors_total", "Total number of order book stream failures.")},
	}
	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
