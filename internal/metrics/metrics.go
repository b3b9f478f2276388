// Package metrics exposes Prometheus instrumentation for canvass.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Geocoder calls by op ("forward", "reverse") and result
	GeocodeRequests *prometheus.CounterVec

	// Registry mutations by op and result
	RegistryOps *prometheus.CounterVec

	// Addresses currently held in memory
	Addresses prometheus.Gauge

	// Startup load including legacy migration and backfill
	LoadDuration prometheus.Histogram
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GeocodeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canvass_geocode_requests_total",
			Help: "Geocoding requests by operation and result",
		}, []string{"op", "result"}),

		RegistryOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "canvass_registry_operations_total",
			Help: "Address registry operations by operation and result",
		}, []string{"op", "result"}),

		Addresses: f.NewGauge(prometheus.GaugeOpts{
			Name: "canvass_addresses",
			Help: "Number of addresses in the registry",
		}),

		LoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "canvass_load_duration_seconds",
			Help:    "Duration of the registry load at startup",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

// ObserveGeocode counts one geocoder call.
func (m *Metrics) ObserveGeocode(op, result string) {
	if m != nil {
		m.GeocodeRequests.WithLabelValues(op, result).Inc()
	}
}

// ObserveRegistryOp counts one registry operation.
func (m *Metrics) ObserveRegistryOp(op, result string) {
	if m != nil {
		m.RegistryOps.WithLabelValues(op, result).Inc()
	}
}

// SetAddresses records the current registry size.
func (m *Metrics) SetAddresses(n int) {
	if m != nil {
		m.Addresses.Set(float64(n))
	}
}

// ObserveLoad records how long the startup load took.
func (m *Metrics) ObserveLoad(d time.Duration) {
	if m != nil {
		m.LoadDuration.Observe(d.Seconds())
	}
}
