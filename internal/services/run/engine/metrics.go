package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/louisbranch/dungeonrun/internal/services/run/domain/transition"
)

const metricsNamespace = "dungeonrun"

// Signal outcomes reported by Metrics.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
)

// Metrics holds the Prometheus collectors of the engine. A nil *Metrics
// records nothing.
type Metrics struct {
	signals         *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	regressions     prometheus.Counter
	overrides       prometheus.Counter
	dispatched      *prometheus.CounterVec
	dispatchDropped prometheus.Counter
	recordDropped   prometheus.Counter
	recordFailed    prometheus.Counter
	activeRuns      prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "signals_total",
				Help:      "Signals received, by type and outcome",
			},
			[]string{"signal", "outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "transitions_total",
				Help:      "Phase changes, by target phase",
			},
			[]string{"phase"},
		),
		regressions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "regressions_total",
			Help:      "Recoveries after the key actor died",
		}),
		overrides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "overrides_total",
			Help:      "Jumps that bypassed the forward guards",
		}),
		dispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "actions_dispatched_total",
				Help:      "Actions handed to the dispatcher, by kind",
			},
			[]string{"kind"},
		),
		dispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "actions_dropped_total",
			Help:      "Actions a slow subscriber could not take",
		}),
		recordDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_dropped_total",
			Help:      "Transition records dropped because the recorder queue was full",
		}),
		recordFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_failed_total",
			Help:      "Transition records the store failed to save",
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "runs_active",
			Help:      "Runs currently owned by this process",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.signals, m.transitions, m.regressions, m.overrides, m.dispatched,
			m.dispatchDropped, m.recordDropped, m.recordFailed, m.activeRuns,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) signal(typ, outcome string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(typ, outcome).Inc()
}

func (m *Metrics) decision(d transition.Decision) {
	if m == nil || !d.Accepted {
		return
	}
	if d.Transitioned() {
		m.transitions.WithLabelValues(d.To.String()).Inc()
	}
	if d.Regressed {
		m.regressions.Inc()
	}
	if d.Overridden {
		m.overrides.Inc()
	}
}

func (m *Metrics) action(kind string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(kind).Inc()
}

// DispatchDropped counts one action lost to a slow subscriber.
func (m *Metrics) DispatchDropped() {
	if m == nil {
		return
	}
	m.dispatchDropped.Inc()
}

func (m *Metrics) recordLost(failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.recordFailed.Inc()
		return
	}
	m.recordDropped.Inc()
}

func (m *Metrics) runs(delta float64) {
	if m == nil {
		return
	}
	m.activeRuns.Add(delta)
}
