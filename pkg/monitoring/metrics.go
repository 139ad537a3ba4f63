// Package monitoring exposes Prometheus metrics and health endpoints for the
// ecotrip MCP server.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "ecotripmcp"
)

var (
	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotripmcp_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecotripmcp_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// Estimation metrics
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotripmcp_estimates_total",
			Help: "Total number of emission estimates by transport mode and outcome",
		},
		[]string{"mode", "status"},
	)

	EstimatedCO2Kg = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecotripmcp_estimated_co2_kg",
			Help:    "Distribution of estimated trip emissions in kg CO2",
			Buckets: prometheus.ExponentialBuckets(1, 2.5, 10),
		},
		[]string{"mode"},
	)

	DistanceLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotripmcp_distance_lookups_total",
			Help: "Total number of trip distance lookups by source and outcome",
		},
		[]string{"source", "status"},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotripmcp_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecotripmcp_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecotripmcp_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for upstream rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Connection metrics
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecotripmcp_active_connections",
			Help: "Number of active connections",
		},
		[]string{"transport", "type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotripmcp_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecotripmcp_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecotripmcp_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecotripmcp_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

// TransportInfo holds transport configuration and status
type TransportInfo struct {
	Type           string `json:"type"`                      // "http" or "stdio"
	HTTPAddr       string `json:"http_addr,omitempty"`       // HTTP address if enabled
	ActiveSessions int    `json:"active_sessions,omitempty"` // Active SSE sessions
}

// ServiceHealth is the body of /health.
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time"`
	Connections   map[string]ConnStatus  `json:"connections"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
	Transport     *TransportInfo         `json:"transport,omitempty"`
}

// ConnStatus is the last observed state of an upstream dependency.
type ConnStatus struct {
	Status    string    `json:"status"`               // "connected", "degraded", "error"
	Latency   int64     `json:"latency_ms,omitempty"` // Optional latency in milliseconds
	LastError string    `json:"last_error,omitempty"` // Last error message if any
	CheckedAt time.Time `json:"checked_at"`
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordMCPRequest counts one tool invocation.
func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordEstimate counts one estimation. co2Kg is observed only on success.
func RecordEstimate(mode string, co2Kg float64, success bool) {
	EstimatesTotal.WithLabelValues(mode, statusLabel(success)).Inc()
	if success {
		EstimatedCO2Kg.WithLabelValues(mode).Observe(co2Kg)
	}
}

// RecordDistanceLookup counts one distance lookup.
func RecordDistanceLookup(source string, success bool) {
	DistanceLookupsTotal.WithLabelValues(source, statusLabel(success)).Inc()
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, statusLabel(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func UpdateActiveConnections(transport, connType string, count int) {
	ActiveConnections.WithLabelValues(transport, connType).Set(float64(count))
}
