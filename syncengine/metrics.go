package syncengine

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instrumentation for the sync engine. It is
// constructed against a caller-supplied Registerer so the engine never
// touches the global default registry.
type Metrics struct {
	phaseActions *prometheus.CounterVec
}

// NewMetrics registers and returns the sync engine's metrics against reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		phaseActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_phase_actions_total",
				Help: "Total number of change-report actions emitted by the sync engine, by phase and action.",
			},
			[]string{"phase", "action"},
		),
	}
	if err := reg.Register(m.phaseActions); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAction increments the counter for one report entry.
func (m *Metrics) RecordAction(phase, action string) {
	if m == nil {
		return
	}
	m.phaseActions.WithLabelValues(phase, action).Inc()
}
