package osm

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// MonitoringHooks defines hooks for monitoring HTTP requests
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called when a request waited on its limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called for transport-level failures, not HTTP error statuses
	OnError func(service, errorType string)
}

var (
	globalHooks *MonitoringHooks
	hooksMutex  sync.RWMutex
)

// SetMonitoringHooks sets global monitoring hooks
func SetMonitoringHooks(hooks *MonitoringHooks) {
	hooksMutex.Lock()
	defer hooksMutex.Unlock()
	globalHooks = hooks
}

func getMonitoringHooks() *MonitoringHooks {
	hooksMutex.RLock()
	defer hooksMutex.RUnlock()
	return globalHooks
}

// MonitoredDoRequest is DoRequest with the monitoring hooks fired around it.
func MonitoredDoRequest(ctx context.Context, req *http.Request, service, operation string) (*http.Response, error) {
	hooks := getMonitoringHooks()
	if hooks == nil {
		hooks = &MonitoringHooks{}
	}

	if hooks.OnRequest != nil {
		hooks.OnRequest(service, operation)
	}

	start := time.Now()
	if err := waitForRateLimit(ctx, service); err != nil {
		if hooks.OnError != nil {
			hooks.OnError(service, "rate_limit_wait_error")
		}
		return nil, err
	}

	// Only significant waits are reported
	if wait := time.Since(start); wait > 100*time.Millisecond && hooks.OnRateLimit != nil {
		hooks.OnRateLimit(service, wait)
	}

	req.Header.Set("User-Agent", GetUserAgent())

	requestStart := time.Now()
	resp, err := httpClient.Do(req)
	duration := time.Since(requestStart)

	if hooks.OnResponse != nil {
		hooks.OnResponse(service, operation, duration, err == nil && resp.StatusCode < 400)
	}
	if err != nil && hooks.OnError != nil {
		hooks.OnError(service, "request_error")
	}

	return resp, err
}
