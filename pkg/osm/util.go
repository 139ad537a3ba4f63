package osm

import "github.com/NERVsystems/ecotripmcp/pkg/core"

const (
	// API endpoints
	NominatimBaseURL = "https://nominatim.openstreetmap.org"
	OSRMBaseURL      = core.DefaultOSRMBaseURL

	// DefaultUserAgent identifies this server to Nominatim, whose usage
	// policy requires a descriptive User-Agent.
	DefaultUserAgent = "ecotripmcp/0.1.0"
)

// Service names used for rate limiting and metrics labels
const (
	ServiceNominatim = "nominatim"
	ServiceOSRM      = "osrm"
)
