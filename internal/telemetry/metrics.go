package telemetry

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics definitions, generalized from the teacher's recac_* gauges and
// counters (metrics.go) to the four signals this spec calls out: how many
// agent sessions are live, what events the bus has emitted, how long
// merge-lock waits take, and how many tasks sit in each lifecycle status.
var (
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bloom_active_sessions",
		Help: "Number of currently running agent subprocess sessions.",
	}, []string{"agent"})

	EventsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloom_events_emitted_total",
		Help: "Total events published to the event bus, by kind.",
	}, []string{"kind"})

	MergeLockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bloom_merge_lock_wait_seconds",
		Help:    "Time agents spend waiting to acquire the merge lock.",
		Buckets: prometheus.DefBuckets,
	}, []string{"repo"})

	TasksByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bloom_tasks_by_status",
		Help: "Number of tasks currently in each lifecycle status.",
	}, []string{"status"})
)

var (
	metricsOnce    sync.Once
	metricsMu      sync.Mutex
	metricsRunning bool
)

// StartMetricsServer starts an HTTP server exposing Prometheus metrics. It
// attempts to bind basePort, trying up to 9 subsequent ports (10 in all) if
// it is already taken.
func StartMetricsServer(basePort int) error {
	metricsMu.Lock()
	if metricsRunning {
		metricsMu.Unlock()
		return nil
	}
	metricsRunning = true
	metricsMu.Unlock()

	metricsOnce.Do(func() {
		http.Handle("/metrics", promhttp.Handler())
	})

	var listener net.Listener
	var err error
	for i := 0; i < 10; i++ {
		port := basePort + i
		addr := ":" + strconv.Itoa(port)
		listener, err = net.Listen("tcp", addr)
		if err == nil {
			fmt.Fprintf(os.Stderr, "Starting metrics server on %s\n", addr)
			return http.Serve(listener, nil)
		}
	}

	metricsMu.Lock()
	metricsRunning = false
	metricsMu.Unlock()
	return fmt.Errorf("failed to find available port starting from %d: %w", basePort, err)
}

// TrackEvent increments the events-emitted counter for kind. ObserveBus
// calls it for each event its bus subscription receives, so the bus itself
// never depends on telemetry.
func TrackEvent(kind string) {
	EventsEmittedTotal.WithLabelValues(kind).Inc()
}

// SetActiveSessions reports how many sessions agent currently has running
// (0 or 1 in the current single-session-per-agent design, but labeled by
// agent so a future multi-session agent doesn't need a metric rename).
func SetActiveSessions(agent string, count int) {
	ActiveSessions.WithLabelValues(agent).Set(float64(count))
}

// ObserveMergeLockWait records how long an agent waited to acquire repo's
// merge lock.
func ObserveMergeLockWait(repo string, seconds float64) {
	MergeLockWaitSeconds.WithLabelValues(repo).Observe(seconds)
}

// SetTasksByStatus overwrites the per-status task gauge. Callers pass the
// full status->count map so stale statuses are reset to zero rather than
// lingering from a prior scrape.
func SetTasksByStatus(counts map[string]int) {
	for status, n := range counts {
		TasksByStatus.WithLabelValues(status).Set(float64(n))
	}
}
