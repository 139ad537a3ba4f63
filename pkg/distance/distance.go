// Package distance resolves the kilometers between two named places. The
// estimator itself never does I/O; everything that needs the network to
// turn place names into a distance lives here.
package distance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
	"github.com/NERVsystems/ecotripmcp/pkg/geo"
	"github.com/NERVsystems/ecotripmcp/pkg/osm"
)

// ErrMissingEndpoint is returned when either trip endpoint is blank.
var ErrMissingEndpoint = errors.New("trip origin and destination are required")

// DefaultFixedKm is the placeholder distance the original calculator used
// for every trip.
const DefaultFixedKm = 500.0

// Lookup turns a pair of place names into a trip distance.
type Lookup interface {
	LookupDistanceKm(ctx context.Context, from, to string) (float64, error)
}

// Geocoder resolves a place name. *osm.Geocoder satisfies it.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (osm.Place, error)
}

// Source names accepted by NewLookup
const (
	SourceFixed       = "fixed"
	SourceGreatCircle = "great_circle"
	SourceRoad        = "road"
)

// Sources lists the accepted source names.
func Sources() []string {
	return []string{SourceFixed, SourceGreatCircle, SourceRoad}
}

func checkEndpoints(from, to string) error {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return ErrMissingEndpoint
	}
	return nil
}

// Fixed ignores the endpoints and always answers Km.
type Fixed struct {
	Km float64
}

// LookupDistanceKm implements Lookup.
func (f Fixed) LookupDistanceKm(_ context.Context, from, to string) (float64, error) {
	if err := checkEndpoints(from, to); err != nil {
		return 0, err
	}
	return f.Km, nil
}

// geocodePair resolves both endpoints concurrently.
func geocodePair(ctx context.Context, g Geocoder, from, to string) (geo.Location, geo.Location, error) {
	var a, b osm.Place
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		a, err = g.Geocode(ctx, from)
		return err
	})
	eg.Go(func() error {
		var err error
		b, err = g.Geocode(ctx, to)
		return err
	})
	if err := eg.Wait(); err != nil {
		return geo.Location{}, geo.Location{}, unavailable(err)
	}
	return a.Location, b.Location, nil
}

// unavailable marks upstream failures as DISTANCE_UNAVAILABLE while keeping
// the original cause in the message. Errors caused by the place names
// themselves keep their code.
func unavailable(err error) error {
	var mcpErr *core.MCPError
	if errors.As(err, &mcpErr) {
		switch core.ErrorCode(mcpErr.Code) {
		case core.ErrDistanceUnavailable, core.ErrNoResults,
			core.ErrInvalidParameter, core.ErrMissingParameter,
			core.ErrInvalidLatitude, core.ErrInvalidLongitude:
			return err
		}
	}
	wrapped := core.NewError(core.ErrDistanceUnavailable, fmt.Sprintf("could not determine trip distance: %v", err))
	if mcpErr != nil {
		wrapped.Query = mcpErr.Query
		wrapped.Guidance = mcpErr.Guidance
	}
	if wrapped.Guidance == "" {
		wrapped.Guidance = "Pass distance_km explicitly to skip the lookup"
	}
	return wrapped
}

// GreatCircle geocodes both places and measures the haversine distance.
type GreatCircle struct {
	geocoder Geocoder
}

// NewGreatCircle returns a great-circle lookup backed by g.
func NewGreatCircle(g Geocoder) *GreatCircle {
	return &GreatCircle{geocoder: g}
}

// LookupDistanceKm implements Lookup.
func (l *GreatCircle) LookupDistanceKm(ctx context.Context, from, to string) (float64, error) {
	if err := checkEndpoints(from, to); err != nil {
		return 0, err
	}
	a, b, err := geocodePair(ctx, l.geocoder, from, to)
	if err != nil {
		return 0, err
	}
	return geo.DistanceKm(a, b), nil
}

// Road geocodes both places and asks OSRM for the road distance.
type Road struct {
	geocoder Geocoder
	options  core.OSRMOptions
}

// NewRoad returns a road lookup backed by g and OSRM.
func NewRoad(g Geocoder, options core.OSRMOptions) *Road {
	return &Road{geocoder: g, options: options}
}

// LookupDistanceKm implements Lookup.
func (l *Road) LookupDistanceKm(ctx context.Context, from, to string) (float64, error) {
	if err := checkEndpoints(from, to); err != nil {
		return 0, err
	}
	a, b, err := geocodePair(ctx, l.geocoder, from, to)
	if err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}

	route, err := core.GetRoute(ctx, a, b, l.options)
	if err != nil {
		return 0, unavailable(err)
	}
	return route.DistanceKm(), nil
}

// Config carries what NewLookup needs for any source.
type Config struct {
	FixedKm     float64
	Geocoder    Geocoder
	OSRMBaseURL string
	OSRMProfile string
	CacheSize   int
}

// NewLookup builds the lookup for source. Network-backed sources are
// wrapped in a Cached decorator when CacheSize is positive.
func NewLookup(source string, cfg Config) (Lookup, error) {
	var lookup Lookup
	switch source {
	case SourceFixed:
		km := cfg.FixedKm
		if km == 0 {
			km = DefaultFixedKm
		}
		if err := core.ValidateDistanceKm(km); err != nil {
			return nil, fmt.Errorf("fixed distance: %w", err)
		}
		return Fixed{Km: km}, nil
	case SourceGreatCircle:
		if cfg.Geocoder == nil {
			return nil, fmt.Errorf("distance source %q needs a geocoder", source)
		}
		lookup = NewGreatCircle(cfg.Geocoder)
	case SourceRoad:
		if cfg.Geocoder == nil {
			return nil, fmt.Errorf("distance source %q needs a geocoder", source)
		}
		options := core.DefaultOSRMOptions()
		if cfg.OSRMBaseURL != "" {
			options.BaseURL = cfg.OSRMBaseURL
		}
		if cfg.OSRMProfile != "" {
			options.Profile = cfg.OSRMProfile
		}
		options.Client = osm.NewRateLimitedClient(osm.ServiceOSRM, 10*time.Second)
		lookup = NewRoad(cfg.Geocoder, options)
	default:
		return nil, fmt.Errorf("unknown distance source %q (want one of %s)", source, strings.Join(Sources(), ", "))
	}

	if cfg.CacheSize > 0 {
		return NewCached(lookup, cfg.CacheSize)
	}
	return lookup, nil
}
