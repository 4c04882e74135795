// Package metrics wires Prometheus instrumentation for driver operations,
// HTTP serving, and registry state. Metrics are opt-in: until Init is
// called, every recording function is a no-op, so an embedder that never
// wants Prometheus pays nothing beyond a nil check per call.
//
// The teacher splits this concern into pkg/metrics (interfaces + no-op
// guards) and pkg/metrics/prometheus (concrete promauto collectors), wired
// together by a constructor registered into a package-level function
// variable to dodge an import cycle between the two packages. That split
// exists because the teacher's concrete store packages (pkg/content/store/s3,
// pkg/cache) are imported BY pkg/metrics/prometheus but must not import it
// back, while pkg/metrics itself sits below both. depot has no equivalent
// cycle: pkg/metrics imports no other depot package, so pkg/httpserve and
// pkg/driver/instrument import it directly and call GetRecorder, and the
// collectors live directly in this one package.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry
	recorder *Recorder
)

// Init enables metrics collection and registers depot's collectors into a
// fresh Prometheus registry. Calling Init more than once replaces the
// previous registry and recorder.
func Init() *Recorder {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	enabled = true
	recorder = newRecorder(registry)
	return recorder
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the active Prometheus registry, or nil if metrics
// are not enabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// GetRecorder returns the active Recorder, or nil if metrics are not
// enabled. Every Recorder method is nil-receiver safe, so callers can hold
// on to a nil *Recorder and call its methods unconditionally.
func GetRecorder() *Recorder {
	mu.RLock()
	defer mu.RUnlock()
	return recorder
}

// Recorder owns every collector depot registers. A nil *Recorder behaves
// as a no-op for all methods, so instrumented code can do:
//
//	rec := metrics.GetRecorder()
//	rec.ObserveDriverOp(...) // safe even if rec is nil
type Recorder struct {
	driverOpsTotal    *prometheus.CounterVec
	driverOpDuration  *prometheus.HistogramVec
	driverBytesTotal  *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	registryStores    *prometheus.GaugeVec
}

func newRecorder(reg *prometheus.Registry) *Recorder {
	return &Recorder{
		driverOpsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "depot_driver_operations_total",
				Help: "Total number of storage driver operations by store, operation and result",
			},
			[]string{"store", "operation", "result"},
		),
		driverOpDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "depot_driver_operation_duration_milliseconds",
				Help: "Duration of storage driver operations in milliseconds",
				Buckets: []float64{
					1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000,
				},
			},
			[]string{"store", "operation"},
		),
		driverBytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "depot_driver_bytes_total",
				Help: "Total bytes transferred through storage drivers by store and direction",
			},
			[]string{"store", "direction"}, // direction: "read", "write"
		),
		httpRequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "depot_http_requests_total",
				Help: "Total number of HTTP serving requests by store and status",
			},
			[]string{"store", "status"},
		),
		httpDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "depot_http_request_duration_milliseconds",
				Help: "Duration of HTTP serving requests in milliseconds",
				Buckets: []float64{
					1, 5, 10, 50, 100, 500, 1000, 5000,
				},
			},
			[]string{"store"},
		),
		registryStores: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "depot_registry_stores",
				Help: "Current number of stores configured in the registry",
			},
			[]string{"kind"}, // kind: "store", "alias"
		),
	}
}

// ObserveDriverOp records a completed driver operation: its store, kind
// (create/get/replace/delete/exists/list), duration, and outcome.
func (r *Recorder) ObserveDriverOp(store, operation string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.driverOpsTotal.WithLabelValues(store, operation, result).Inc()
	r.driverOpDuration.WithLabelValues(store, operation).Observe(float64(duration.Milliseconds()))
}

// RecordDriverBytes records bytes moved through a driver in a direction
// ("read" or "write").
func (r *Recorder) RecordDriverBytes(store, direction string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.driverBytesTotal.WithLabelValues(store, direction).Add(float64(n))
}

// ObserveHTTPServe records a completed HTTP serving request: its store,
// status code, and duration.
func (r *Recorder) ObserveHTTPServe(store string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.httpRequestsTotal.WithLabelValues(store, statusClass(status)).Inc()
	r.httpDuration.WithLabelValues(store).Observe(float64(duration.Milliseconds()))
}

// SetRegistryStoreCount reports the current number of configured stores
// and aliases. config.BuildRegistry calls it once the registry is built;
// later Configure or Alias calls on a Registry do not update it.
func (r *Recorder) SetRegistryStoreCount(stores, aliases int) {
	if r == nil {
		return
	}
	r.registryStores.WithLabelValues("store").Set(float64(stores))
	r.registryStores.WithLabelValues("alias").Set(float64(aliases))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
