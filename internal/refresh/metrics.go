package refresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"embedauth/pkg/problems"
)

// Metrics records refresh outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		total: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embedauth",
			Name:      "refresh_total",
			Help:      "Token refresh requests by plugin and outcome.",
		}, []string{"plugin", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "embedauth",
			Name:      "refresh_duration_seconds",
			Help:      "Latency of token refresh requests, including the provider exchange.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observe(plugin string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = problems.KindOf(err).String()
	}
	m.total.WithLabelValues(plugin, outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
}
