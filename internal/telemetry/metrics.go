package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FixesDelivered counts positions handed to caller success callbacks
	FixesDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geoloc",
			Name:      "fixes_delivered_total",
			Help:      "Total number of positions delivered to callers",
		},
		[]string{"source"},
	)

	// PositionErrors counts failures delivered to callers, by error code
	PositionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geoloc",
			Name:      "position_errors_total",
			Help:      "Total number of position errors reported to callers",
		},
		[]string{"source", "code"},
	)

	// UpdatesFiltered counts raw watch updates suppressed by gating
	UpdatesFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geoloc",
			Name:      "updates_filtered_total",
			Help:      "Total number of raw updates suppressed before delivery",
		},
		[]string{"reason"},
	)

	// CacheHits counts single-shot requests satisfied from a cached fix
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geoloc",
			Name:      "cache_hits_total",
			Help:      "Total number of requests satisfied by a cached position",
		},
		[]string{"cache"},
	)

	// ActiveWatches tracks currently registered watches
	ActiveWatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "geoloc",
			Name:      "active_watches",
			Help:      "Number of currently active watch registrations",
		},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		// Already-registered errors are ignored
		prometheus.DefaultRegisterer.Register(FixesDelivered)
		prometheus.DefaultRegisterer.Register(PositionErrors)
		prometheus.DefaultRegisterer.Register(UpdatesFiltered)
		prometheus.DefaultRegisterer.Register(CacheHits)
		prometheus.DefaultRegisterer.Register(ActiveWatches)
	})
}
