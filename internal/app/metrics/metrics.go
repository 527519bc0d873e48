package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobboard",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobboard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jobboard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobboard",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of events published to the broadcast hub.",
		},
		[]string{"type"},
	)

	dbRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "jobboard",
			Subsystem: "db",
			Name:      "rows",
			Help:      "Current row count per table.",
		},
		[]string{"table"},
	)

	diskFree = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobboard",
			Name:      "data_disk_free_bytes",
			Help:      "Free bytes on the filesystem holding the data directory.",
		},
	)

	memoryPercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobboard",
			Name:      "process_memory_percent",
			Help:      "Resident memory of this process as a percentage of total.",
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "jobboard",
			Name:      "build_info",
			Help:      "Build metadata; the value is always 1.",
		},
		[]string{"version"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		eventsPublished,
		dbRows,
		diskFree,
		memoryPercent,
		buildInfo,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics
// collection. Attach it as router middleware so the mux route template
// is available as the path label.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := routePath(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// EventPublished counts one published hub event.
func EventPublished(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	eventsPublished.WithLabelValues(eventType).Inc()
}

// SetRowCounts refreshes the per-table row gauges.
func SetRowCounts(users, jobs, applications int64) {
	dbRows.WithLabelValues("users").Set(float64(users))
	dbRows.WithLabelValues("jobs").Set(float64(jobs))
	dbRows.WithLabelValues("applications").Set(float64(applications))
}

// SetDiskFree records free space on the data volume.
func SetDiskFree(bytes uint64) {
	diskFree.Set(float64(bytes))
}

// SetMemoryPercent records process memory pressure.
func SetMemoryPercent(pct float64) {
	memoryPercent.Set(pct)
}

// SetBuildInfo publishes the running version label.
func SetBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades pass through the wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// routePath prefers the mux route template (e.g. /v1/jobs/{id}) so
// label cardinality stays bounded; unmatched requests collapse to
// their first path segment.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil && tpl != "" {
			return tpl
		}
	}
	trimmed := strings.Trim(r.URL.Path, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.SplitN(trimmed, "/", 2)
	return "/" + parts[0]
}
