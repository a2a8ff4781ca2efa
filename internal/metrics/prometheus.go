package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "chart_feed"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Inc()          { p.gauge.Inc() }
func (p promGauge) Dec()          { p.gauge.Dec() }
func (p promGauge) Set(v float64) { p.gauge.Set(v) }

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	ticksApplied := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "ticks_applied_total",
		Help:      "Total number of live candle updates merged into a series.",
	})
	messagesIgnored := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "messages_ignored_total",
		Help:      "Total number of stream messages without a candle payload.",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "reconnects_total",
		Help:      "Total number of scheduled reconnect attempts.",
	})
	historyLoadsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "history_loads_failed_total",
		Help:      "Total number of failed historical candle loads.",
	})
	feedsLive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "feeds_live",
		Help:      "Number of feeds with a live upstream connection.",
	})
	hubClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "hub_clients",
		Help:      "Number of connected downstream websocket clients.",
	})

	registry.MustRegister(ticksApplied, messagesIgnored, reconnects, historyLoadsFailed, feedsLive, hubClients)

	m := &Metrics{
		TicksApplied:       promCounter{ticksApplied},
		MessagesIgnored:    promCounter{messagesIgnored},
		Reconnects:         promCounter{reconnects},
		HistoryLoadsFailed: promCounter{historyLoadsFailed},
		FeedsLive:          promGauge{feedsLive},
		HubClients:         promGauge{hubClients},
	}

	return &Prometheus{
		Metrics:  m,
		registry: registry,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
