// Package osm talks to the OpenStreetMap services the distance lookups
// depend on: Nominatim for geocoding and OSRM for road routing.
package osm

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/ecotripmcp/pkg/tracing"
)

var (
	httpClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 30 * time.Second,
	}

	limiterMu sync.RWMutex
	// Nominatim's policy allows at most one request per second
	limiters = map[string]*rate.Limiter{
		ServiceNominatim: rate.NewLimiter(rate.Limit(1), 1),
		ServiceOSRM:      rate.NewLimiter(rate.Limit(1), 1),
	}

	userAgent     = DefaultUserAgent
	userAgentLock sync.RWMutex
)

// UpdateNominatimRateLimits updates the Nominatim rate limiter
func UpdateNominatimRateLimits(rps float64, burst int) {
	setLimiter(ServiceNominatim, rps, burst)
}

// UpdateOSRMRateLimits updates the OSRM rate limiter
func UpdateOSRMRateLimits(rps float64, burst int) {
	setLimiter(ServiceOSRM, rps, burst)
}

func setLimiter(service string, rps float64, burst int) {
	limiterMu.Lock()
	defer limiterMu.Unlock()
	limiters[service] = rate.NewLimiter(rate.Limit(rps), burst)
}

func limiterFor(service string) *rate.Limiter {
	limiterMu.RLock()
	defer limiterMu.RUnlock()
	return limiters[service]
}

// SetUserAgent sets the User-Agent string
func SetUserAgent(ua string) {
	userAgentLock.Lock()
	defer userAgentLock.Unlock()
	userAgent = ua
}

// GetUserAgent returns the current User-Agent string
func GetUserAgent() string {
	userAgentLock.RLock()
	defer userAgentLock.RUnlock()
	return userAgent
}

// waitForRateLimit blocks until the service's limiter admits a request.
// Unknown services are not limited.
func waitForRateLimit(ctx context.Context, service string) error {
	limiter := limiterFor(service)
	if limiter == nil || limiter.Allow() {
		return nil
	}

	start := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(tracing.AttrRateLimitService, service)),
	)

	err := limiter.Wait(ctx)

	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, service),
		attribute.Int64(tracing.AttrRateLimitWaitMs, time.Since(start).Milliseconds()),
	)
	return err
}

// DoRequest performs a rate-limited request against service.
func DoRequest(ctx context.Context, req *http.Request, service string) (*http.Response, error) {
	req.Header.Set("User-Agent", GetUserAgent())

	if err := waitForRateLimit(ctx, service); err != nil {
		return nil, err
	}
	return httpClient.Do(req)
}

type limitedTransport struct {
	service string
	base    http.RoundTripper
}

func (t limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := waitForRateLimit(req.Context(), t.service); err != nil {
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", GetUserAgent())
	return t.base.RoundTrip(req)
}

// NewRateLimitedClient returns a client whose requests pass through the
// named service's limiter and carry the configured User-Agent. It lets
// callers outside this package, such as the OSRM client, share the limits.
func NewRateLimitedClient(service string, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: limitedTransport{service: service, base: httpClient.Transport},
		Timeout:   timeout,
	}
}

func checkEndpoint(ctx context.Context, service, endpoint string, healthy func(status int) bool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s health check request: %w", service, err)
	}

	resp, err := DoRequest(ctx, req, service)
	if err != nil {
		return fmt.Errorf("%s health check failed: %w", service, err)
	}
	defer resp.Body.Close()

	if !healthy(resp.StatusCode) {
		return fmt.Errorf("%s health check returned status %d", service, resp.StatusCode)
	}
	return nil
}

// CheckNominatimHealth probes the Nominatim status endpoint under baseURL.
func CheckNominatimHealth(ctx context.Context, baseURL string) error {
	return checkEndpoint(ctx, ServiceNominatim, baseURL+"/status", func(status int) bool {
		return status == http.StatusOK
	})
}

// CheckOSRMHealth probes OSRM with a trivial nearest query. Any non-5xx
// answer means the router is up.
func CheckOSRMHealth(ctx context.Context, baseURL string) error {
	return checkEndpoint(ctx, ServiceOSRM, baseURL+"/nearest/v1/driving/0,0", func(status int) bool {
		return status < 500
	})
}
