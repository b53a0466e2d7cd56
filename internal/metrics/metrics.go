package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sangha",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sangha",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sangha",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	presenceConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sangha",
			Subsystem: "presence",
			Name:      "connections",
			Help:      "Connections currently registered for presence.",
		},
	)

	presenceSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sangha",
			Subsystem: "presence",
			Name:      "sessions",
			Help:      "Sessions currently registered for presence, virtual included.",
		},
	)

	presenceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sangha",
			Subsystem: "presence",
			Name:      "events_total",
			Help:      "Presence events handled, by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	virtualRegistrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sangha",
			Subsystem: "presence",
			Name:      "virtual_sessions_total",
			Help:      "Virtual sessions purchased by circle creators.",
		},
	)

	spiritBankJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sangha",
			Subsystem: "spirit_bank",
			Name:      "jobs_total",
			Help:      "Deferred spirit bank entries processed by workers.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		presenceConnections,
		presenceSessions,
		presenceEvents,
		virtualRegistrations,
		spiritBankJobs,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
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

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// SetPresence publishes the registry's current size.
func SetPresence(connections, sessions int) {
	presenceConnections.Set(float64(connections))
	presenceSessions.Set(float64(sessions))
}

func RecordPresenceEvent(event, outcome string) {
	if event == "" {
		event = "unknown"
	}
	presenceEvents.WithLabelValues(event, outcome).Inc()
}

func RecordVirtualRegistration(count int) {
	if count > 0 {
		virtualRegistrations.Add(float64(count))
	}
}

func RecordSpiritBankJob(success bool) {
	spiritBankJobs.WithLabelValues(strconv.FormatBool(success)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// canonicalPath collapses ids so label cardinality stays bounded:
// /api/v1/practitioners/abc/circles/xyz/join -> /api/v1/practitioners/:id/circles/:circle/join
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) < 3 || parts[0] != "api" {
		return "/" + parts[0]
	}
	if parts[2] != "practitioners" || len(parts) == 3 {
		return "/" + strings.Join(parts, "/")
	}

	out := []string{"api", parts[1], "practitioners", ":id"}
	rest := parts[4:]
	if len(rest) > 0 {
		out = append(out, rest[0])
		switch rest[0] {
		case "circles":
			if len(rest) > 1 {
				out = append(out, ":circle")
			}
			if len(rest) > 2 {
				out = append(out, rest[2])
			}
		case "donate":
			if len(rest) > 1 {
				out = append(out, ":to")
			}
		case "sessions", "companions":
			if len(rest) > 1 {
				out = append(out, rest[1])
			}
		}
	}
	return "/" + strings.Join(out, "/")
}
