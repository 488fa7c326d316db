package membership

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Rounds is the total number of outgoing gossip rounds started.
	Rounds prometheus.Counter

	// Exchanges is the total number of completed view exchanges, labelled
	// by direction (inbound/outbound) and kind (view/heartbeat).
	Exchanges *prometheus.CounterVec

	// ExchangeFailures is the total number of failed exchanges, labelled
	// by reason (unreachable/malformed).
	ExchangeFailures *prometheus.CounterVec

	// Merges is the total number of remote views merged into local state.
	Merges prometheus.Counter

	// Members is the current number of known members per status.
	Members *prometheus.GaugeVec

	// Suspected is the current number of locally suspected members.
	Suspected prometheus.Gauge

	// EventsDropped counts status change events dropped because the
	// subscriber was not draining the channel.
	EventsDropped prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		Rounds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "plenum",
				Subsystem: "membership",
				Name:      "gossip_rounds_total",
				Help:      "Total number of outgoing gossip rounds started",
			},
		),
		Exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plenum",
				Subsystem: "membership",
				Name:      "exchanges_total",
				Help:      "Total number of completed view exchanges",
			},
			[]string{"direction", "kind"},
		),
		ExchangeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "plenum",
				Subsystem: "membership",
				Name:      "exchange_failures_total",
				Help:      "Total number of failed exchanges",
			},
			[]string{"reason"},
		),
		Merges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "plenum",
				Subsystem: "membership",
				Name:      "merges_total",
				Help:      "Total number of remote views merged into local state",
			},
		),
		Members: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "plenum",
				Subsystem: "membership",
				Name:      "members",
				Help:      "Current number of known members per status",
			},
			[]string{"status"},
		),
		Suspected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "plenum",
				Subsystem: "membership",
				Name:      "suspected_members",
				Help:      "Current number of locally suspected members",
			},
		),
		EventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "plenum",
				Subsystem: "membership",
				Name:      "events_dropped_total",
				Help:      "Status change events dropped due to a slow subscriber",
			},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.Rounds,
		m.Exchanges,
		m.ExchangeFailures,
		m.Merges,
		m.Members,
		m.Suspected,
		m.EventsDropped,
	)
}
