package indicator

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
	"github.com/relabs-tech/gesture_lock/internal/session"
)

// Metrics counts signals and verdicts and keeps the last correlation per
// axis.
type Metrics struct {
	diagnosticsOnly

	signals     *prometheus.CounterVec
	verdicts    *prometheus.CounterVec
	correlation *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gesture_lock_signals_total",
			Help: "Indicator signals by kind.",
		}, []string{"signal"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gesture_lock_attempts_total",
			Help: "Completed unlock attempts by verdict.",
		}, []string{"verdict"}),
		correlation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gesture_lock_last_correlation",
			Help: "Per axis correlation of the last attempt, NaN when undefined.",
		}, []string{"axis"}),
	}
	for _, c := range []prometheus.Collector{m.signals, m.verdicts, m.correlation} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) SetState(sig session.Signal) {
	m.signals.WithLabelValues(sig.String()).Inc()
}

func (m *Metrics) Correlation(c gesture.CorrelationVector, v gesture.Verdict) {
	m.verdicts.WithLabelValues(v.String()).Inc()
	for a, ac := range c {
		r := ac.R
		if !ac.Defined {
			r = math.NaN()
		}
		m.correlation.WithLabelValues(gesture.Axis(a).String()).Set(r)
	}
}
