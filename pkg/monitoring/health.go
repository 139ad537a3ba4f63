package monitoring

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/NERVsystems/ecotripmcp/pkg/version"
)

// Connection states
const (
	ConnConnected = "connected"
	ConnDegraded  = "degraded"
	ConnError     = "error"
)

// HealthChecker tracks upstream dependency state and serves the health
// endpoints. Shutdown stops its background collection.
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time

	mu          sync.RWMutex
	connections map[string]*ConnStatus
	transport   *TransportInfo

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthChecker creates a health checker and starts collecting runtime gauges.
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]*ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}

	hc.wg.Add(1)
	go hc.collectSystemMetrics()

	return hc
}

// SetTransport records how the server is reachable.
func (h *HealthChecker) SetTransport(info TransportInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = &info
}

// UpdateConnection updates the status of a connection
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn := &ConnStatus{
		Status:    status,
		Latency:   latencyMs,
		CheckedAt: time.Now(),
	}
	if err != nil {
		conn.LastError = err.Error()
	}
	h.connections[name] = conn
}

// RemoveConnection removes a connection from monitoring
func (h *HealthChecker) RemoveConnection(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, name)
}

// GetHealth returns the current health status. The estimator itself has no
// dependencies, so upstream failures degrade rather than fail the service
// unless most of them are down.
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var degraded, failed int
	connections := make(map[string]ConnStatus, len(h.connections))
	for name, conn := range h.connections {
		connections[name] = *conn
		switch conn.Status {
		case ConnError, "disconnected":
			failed++
		case ConnDegraded:
			degraded++
		}
	}

	status := "healthy"
	switch {
	case failed > len(h.connections)/2:
		status = "unhealthy"
	case failed > 0 || degraded > 0:
		status = "degraded"
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	health := ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		StartTime:     h.startTime,
		Connections:   connections,
		Metrics: map[string]interface{}{
			"goroutines":      runtime.NumGoroutine(),
			"memory_alloc_mb": m.Alloc / 1024 / 1024,
			"gc_runs":         m.NumGC,
			"version_info":    version.Info(),
		},
	}
	if h.transport != nil {
		t := *h.transport
		health.Transport = &t
	}
	return health
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode health response", "error", err)
	}
}

// HealthHandler serves the full health document; 503 when unhealthy.
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		status := http.StatusOK
		if health.Status == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	}
}

// ReadinessHandler returns a simple readiness check
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		ready := health.Status != "unhealthy"
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]interface{}{
			"ready":  ready,
			"status": health.Status,
		})
	}
}

// LivenessHandler returns a simple liveness check
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Round(time.Second).String(),
		})
	}
}

func (h *HealthChecker) collectSystemMetrics() {
	defer h.wg.Done()

	h.updateSystemMetrics()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))

	info := version.Info()
	SystemInfo.WithLabelValues(info["version"], info["go_version"], info["commit"], info["build_date"]).Set(1)
}

// Shutdown stops background collection and waits for it to exit.
func (h *HealthChecker) Shutdown() {
	h.cancel()
	h.wg.Wait()
}

// ConnectionMonitor periodically probes one upstream and reports into a HealthChecker.
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	checkFunc     func(context.Context) error
	interval      time.Duration
	slowThreshold time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConnectionMonitor creates a new connection monitor
func NewConnectionMonitor(name string, hc *HealthChecker, checkFunc func(context.Context) error, interval time.Duration) *ConnectionMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		checkFunc:     checkFunc,
		interval:      interval,
		slowThreshold: 5 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Name returns the upstream this monitor reports as.
func (cm *ConnectionMonitor) Name() string {
	return cm.name
}

// Start begins monitoring the connection
func (cm *ConnectionMonitor) Start() {
	go cm.monitor()
}

// Stop halts the probe loop and waits for it to exit. Start must have been called.
func (cm *ConnectionMonitor) Stop() {
	cm.cancel()
	<-cm.done
}

func (cm *ConnectionMonitor) monitor() {
	defer close(cm.done)

	cm.performCheck()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

func (cm *ConnectionMonitor) performCheck() {
	start := time.Now()
	err := cm.checkFunc(cm.ctx)
	latency := time.Since(start)

	status := ConnConnected
	switch {
	case err != nil:
		status = ConnError
	case latency > cm.slowThreshold:
		status = ConnDegraded
	}

	cm.healthChecker.UpdateConnection(cm.name, status, latency.Milliseconds(), err)
}
