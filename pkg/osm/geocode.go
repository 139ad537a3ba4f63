package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecotripmcp/pkg/cache"
	"github.com/NERVsystems/ecotripmcp/pkg/core"
	"github.com/NERVsystems/ecotripmcp/pkg/geo"
	"github.com/NERVsystems/ecotripmcp/pkg/tracing"
)

const (
	defaultGeocodeTTL       = 24 * time.Hour
	defaultGeocodeCacheSize = 1000
)

// Place is a resolved geocoding result.
type Place struct {
	Name     string       `json:"name"`
	Location geo.Location `json:"location"`
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocoder resolves free-text place names through Nominatim.
type Geocoder struct {
	baseURL string
	cache   *cache.TTLCache[Place]
	logger  *slog.Logger
}

// GeocoderOption configures a Geocoder.
type GeocoderOption func(*Geocoder)

// WithBaseURL points the geocoder at another Nominatim instance.
func WithBaseURL(baseURL string) GeocoderOption {
	return func(g *Geocoder) {
		g.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the geocoder's logger.
func WithLogger(logger *slog.Logger) GeocoderOption {
	return func(g *Geocoder) {
		g.logger = logger
	}
}

// NewGeocoder creates a geocoder with a one-day result cache. Close releases
// the cache janitor.
func NewGeocoder(opts ...GeocoderOption) *Geocoder {
	g := &Geocoder{
		baseURL: NominatimBaseURL,
		cache:   cache.NewTTLCache[Place](defaultGeocodeTTL, time.Hour, defaultGeocodeCacheSize),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("service", ServiceNominatim)
	return g
}

// BaseURL returns the Nominatim endpoint in use.
func (g *Geocoder) BaseURL() string {
	return g.baseURL
}

// Close stops background cache maintenance.
func (g *Geocoder) Close() {
	g.cache.Stop()
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// Geocode returns the best match for query. Failures are *core.MCPError
// values: NO_RESULTS when nothing matched, a service code otherwise.
func (g *Geocoder) Geocode(ctx context.Context, query string) (Place, error) {
	key := normalizeQuery(query)
	if key == "" {
		return Place{}, core.NewValidationError(core.ErrMissingParameter, "place name must not be empty")
	}

	ctx, span := tracing.StartSpan(ctx, "osm.geocode",
		trace.WithAttributes(attribute.String(tracing.AttrServiceName, ServiceNominatim)),
	)
	defer span.End()

	if place, ok := g.cache.Get(key); ok {
		span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeGeocode, true, key)...)
		return place, nil
	}
	span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeGeocode, false, key)...)

	params := url.Values{}
	params.Set("q", strings.TrimSpace(query))
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return Place{}, core.NewError(core.ErrInternalError, fmt.Sprintf("failed to create request: %v", err))
	}

	resp, err := MonitoredDoRequest(ctx, req, ServiceNominatim, "geocode")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		g.logger.Error("geocode request failed", "query", query, "error", err)
		return Place{}, core.NewError(core.ErrNetworkError, fmt.Sprintf("failed to reach Nominatim: %v", err)).
			WithQuery(query)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return Place{}, core.ServiceError("Nominatim", resp.StatusCode, fmt.Sprintf("HTTP status %d", resp.StatusCode)).
			WithQuery(query)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Place{}, core.NewError(core.ErrParseError, fmt.Sprintf("failed to decode Nominatim response: %v", err)).
			WithQuery(query)
	}
	if len(results) == 0 {
		return Place{}, core.NewError(core.ErrNoResults, fmt.Sprintf("no location found for %q", query)).
			WithQuery(query).
			WithGuidance("Try a more specific place name, such as a city with its country")
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return Place{}, core.NewError(core.ErrParseError, "Nominatim returned malformed coordinates").
			WithQuery(query)
	}
	if err := core.ValidateCoords(lat, lon); err != nil {
		return Place{}, err
	}

	place := Place{
		Name:     results[0].DisplayName,
		Location: geo.Location{Latitude: lat, Longitude: lon},
	}
	g.cache.Set(key, place)
	g.logger.Debug("geocoded place", "query", query, "location", place.Location.String())

	return place, nil
}
