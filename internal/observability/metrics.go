package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	syncRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embersync",
			Subsystem: "sync",
			Name:      "requests_total",
			Help:      "Total SetLocation calls by outcome.",
		},
		[]string{"status"},
	)
	syncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "embersync",
			Subsystem: "sync",
			Name:      "request_duration_seconds",
			Help:      "SetLocation handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	uiNavigations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embersync",
			Subsystem: "sync",
			Name:      "ui_navigations_total",
			Help:      "Location changes observed from host UI navigation.",
		},
	)
	activeClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "embersync",
			Subsystem: "server",
			Name:      "active_clients",
			Help:      "Companion connections currently open.",
		},
	)
	drainTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "embersync",
			Subsystem: "server",
			Name:      "drain_timeouts_total",
			Help:      "Shutdowns that abandoned in-flight calls at the drain deadline.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embersync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "embersync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			syncRequests,
			syncDuration,
			uiNavigations,
			activeClients,
			drainTimeouts,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordSetLocation(status string, duration time.Duration) {
	RegisterMetrics()
	syncRequests.WithLabelValues(status).Inc()
	syncDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordUINavigation() {
	RegisterMetrics()
	uiNavigations.Inc()
}

func ClientConnected() {
	RegisterMetrics()
	activeClients.Inc()
}

func ClientDisconnected() {
	RegisterMetrics()
	activeClients.Dec()
}

func RecordDrainTimeout() {
	RegisterMetrics()
	drainTimeouts.Inc()
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}
