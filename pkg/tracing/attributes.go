package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// Estimation attributes
	AttrTripMode       = "ecotrip.trip.mode"
	AttrTripDistanceKm = "ecotrip.trip.distance_km"
	AttrTripPassengers = "ecotrip.trip.passengers"
	AttrTripRoundTrip  = "ecotrip.trip.round_trip"
	AttrTripCO2Kg      = "ecotrip.trip.co2_kg"

	// Distance lookup attributes
	AttrDistanceSource = "ecotrip.distance.source"

	// External service attributes
	AttrServiceName = "osm.service.name"

	// Cache attributes
	AttrCacheType = "ecotrip.cache.type"
	AttrCacheHit  = "ecotrip.cache.hit"
	AttrCacheKey  = "ecotrip.cache.key"

	// Rate limiting attributes
	AttrRateLimitService = "osm.ratelimit.service"
	AttrRateLimitWaitMs  = "osm.ratelimit.wait_ms"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPRequestID  = "http.request_id"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Cache types
const (
	CacheTypeGeocode  = "geocode"
	CacheTypeDistance = "distance"
)

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// TripAttributes describes an estimation request.
func TripAttributes(mode string, distanceKm float64, passengers int, roundTrip bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTripMode, mode),
		attribute.Float64(AttrTripDistanceKm, distanceKm),
		attribute.Int(AttrTripPassengers, passengers),
		attribute.Bool(AttrTripRoundTrip, roundTrip),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
