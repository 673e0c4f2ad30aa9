// Package metrics exposes Prometheus counters for fixture generation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "binfixture"

// Metrics groups the collectors updated by the device registry.
type Metrics struct {
	DevicesCreated     prometheus.Counter
	ScansRefreshed     prometheus.Counter
	RefreshMisses      prometheus.Counter
	ValidationRejected prometheus.Counter
	EncryptionFailures *prometheus.CounterVec
	LastUniqueCode     prometheus.Gauge
}

// New builds the collectors and registers them on r. A nil r leaves them unregistered.
func New(r prometheus.Registerer) *Metrics {
	m := &Metrics{
		DevicesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_created_total",
			Help:      "Number of simulated devices created.",
		}),
		ScansRefreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_refreshed_total",
			Help:      "Number of scan payload refreshes.",
		}),
		RefreshMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_misses_total",
			Help:      "Refresh requests for unknown device ids.",
		}),
		ValidationRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejected_total",
			Help:      "Creation requests rejected by identifier validation.",
		}),
		EncryptionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encryption_failures_total",
			Help:      "Scan payload encode failures by operation.",
		}, []string{"op"}),
		LastUniqueCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_unique_code",
			Help:      "Most recently issued unique code.",
		}),
	}
	if r != nil {
		r.MustRegister(
			m.DevicesCreated,
			m.ScansRefreshed,
			m.RefreshMisses,
			m.ValidationRejected,
			m.EncryptionFailures,
			m.LastUniqueCode,
		)
	}
	return m
}
