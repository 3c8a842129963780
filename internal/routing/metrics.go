package routing

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the routing collectors. A nil *Metrics records nothing.
type Metrics struct {
	dispatches   *prometheus.CounterVec
	rounds       prometheus.Counter
	peerFailures prometheus.Counter
	learned      prometheus.Counter
	entries      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when non-nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overlay",
			Name:      "dispatch_total",
			Help:      "Forwarding envelopes handled, by outcome.",
		}, []string{"outcome"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlay",
			Name:      "updater_rounds_total",
			Help:      "Completed gossip rounds.",
		}),
		peerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlay",
			Name:      "updater_peer_failures_total",
			Help:      "Peer table fetches that failed or timed out.",
		}),
		learned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlay",
			Name:      "updater_entries_learned_total",
			Help:      "Entries added or improved from peer tables.",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "overlay",
			Name:      "routing_entries",
			Help:      "Entries currently in the routing table.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.dispatches, m.rounds, m.peerFailures, m.learned, m.entries)
	}
	return m
}

func (m *Metrics) observeDispatch(outcome Outcome) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(outcome.String()).Inc()
}

func (m *Metrics) observeRound(report UpdateReport) {
	if m == nil {
		return
	}
	m.rounds.Inc()
	m.peerFailures.Add(float64(report.Failed))
	m.learned.Add(float64(report.EntriesChanged))
}

func (m *Metrics) setEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}
