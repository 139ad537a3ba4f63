package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/NERVsystems/ecotripmcp/pkg/geo"
)

const (
	// DefaultOSRMBaseURL is the public OSRM demo server
	DefaultOSRMBaseURL = "https://router.project-osrm.org"

	defaultRouteCacheSize = 256
)

var (
	routeCache     *lru.Cache[string, *OSRMRoute]
	routeCacheOnce sync.Once
)

// OSRMOptions defines options for OSRM route requests
type OSRMOptions struct {
	// Base URL for the OSRM service
	BaseURL string

	// Profile to use (car, bike, foot)
	Profile string

	// UserAgent sent with each request
	UserAgent string

	// Client is the HTTP client to use for requests
	Client *http.Client

	// RetryOptions controls retry behavior
	RetryOptions RetryOptions
}

// DefaultOSRMOptions returns reasonable defaults for OSRM requests
func DefaultOSRMOptions() OSRMOptions {
	return OSRMOptions{
		BaseURL:      DefaultOSRMBaseURL,
		Profile:      "car",
		Client:       &http.Client{Timeout: 10 * time.Second},
		RetryOptions: DefaultRetryOptions,
	}
}

// OSRMRoute is the best route OSRM found between two points.
type OSRMRoute struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
}

// DistanceKm converts the route distance to kilometers.
func (r OSRMRoute) DistanceKm() float64 {
	return r.Distance / 1000
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []OSRMRoute `json:"routes"`
}

func initRouteCache() {
	routeCacheOnce.Do(func() {
		var err error
		routeCache, err = lru.New[string, *OSRMRoute](defaultRouteCacheSize)
		if err != nil {
			routeCache, _ = lru.New[string, *OSRMRoute](16)
		}
	})
}

func routeCacheKey(from, to geo.Location, profile string) string {
	return fmt.Sprintf("%s|%s|%s", profile, from, to)
}

// GetRoute fetches the driving route between two locations. Results are
// cached per profile and coordinate pair.
func GetRoute(ctx context.Context, from, to geo.Location, options OSRMOptions) (*OSRMRoute, error) {
	logger := slog.Default().With("service", "osrm")
	initRouteCache()

	if options.Profile == "" {
		options.Profile = "car"
	}
	key := routeCacheKey(from, to, options.Profile)
	if cached, found := routeCache.Get(key); found {
		logger.Debug("route cache hit", "key", key)
		return cached, nil
	}

	if options.BaseURL == "" {
		options.BaseURL = DefaultOSRMBaseURL
	}
	if options.Client == nil {
		options.Client = &http.Client{Timeout: 10 * time.Second}
	}

	// OSRM expects longitude,latitude pairs
	coords := fmt.Sprintf("%.6f,%.6f;%.6f,%.6f", from.Longitude, from.Latitude, to.Longitude, to.Latitude)
	reqURL, err := url.Parse(fmt.Sprintf("%s/route/v1/%s/%s",
		strings.TrimRight(options.BaseURL, "/"), url.PathEscape(options.Profile), coords))
	if err != nil {
		return nil, NewError(ErrInternalError, fmt.Sprintf("invalid OSRM URL: %v", err))
	}
	query := reqURL.Query()
	query.Set("overview", "false")
	query.Set("alternatives", "false")
	query.Set("steps", "false")
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, NewError(ErrInternalError, fmt.Sprintf("failed to create OSRM request: %v", err))
	}
	if options.UserAgent != "" {
		req.Header.Set("User-Agent", options.UserAgent)
	}

	resp, err := WithRetry(ctx, req, options.Client, options.RetryOptions)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, NewError(ErrParseError, fmt.Sprintf("failed to decode OSRM response: %v", err))
	}
	if result.Code != "Ok" {
		return nil, NewError(ErrNoResults, fmt.Sprintf("OSRM error %s: %s", result.Code, result.Message))
	}
	if len(result.Routes) == 0 {
		return nil, NewError(ErrNoResults, "no route found").
			WithGuidance("The two places may not be connected by road")
	}

	route := result.Routes[0]
	routeCache.Add(key, &route)
	logger.Debug("route fetched", "distance_m", route.Distance, "profile", options.Profile)

	return &route, nil
}
