package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments a proxy's registry. Several proxies may share one
// registerer if each is wrapped with a distinguishing label, e.g.
// prometheus.WrapRegistererWith(prometheus.Labels{"proxy": "filter"}, reg).
type Metrics struct {
	// items is the number of live registry Items
	items prometheus.Gauge

	// shifts counts registry shifts by orientation and direction
	shifts *prometheus.CounterVec

	// evictions counts Items destroyed by removals, layouts and resets
	evictions prometheus.Counter

	// unresolved counts accessor calls on indexes the proxy could not map
	unresolved *prometheus.CounterVec
}

// NewMetrics creates the proxy collectors and registers them with reg.
// A nil reg yields working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		items: f.NewGauge(prometheus.GaugeOpts{
			Name: "lens_proxy_registry_items",
			Help: "Live proxy registry items",
		}),
		shifts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lens_proxy_shifts_total",
			Help: "Registry shifts applied, by orientation and direction",
		}, []string{"orientation", "direction"}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "lens_proxy_evictions_total",
			Help: "Registry items evicted",
		}),
		unresolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lens_proxy_unresolved_total",
			Help: "Accessor calls on indexes that did not map to the source, by operation",
		}, []string{"op"}),
	}
}
