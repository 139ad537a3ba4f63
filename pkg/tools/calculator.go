// Package tools provides the ecotrip MCP tool implementations.
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
	"github.com/NERVsystems/ecotripmcp/pkg/distance"
	"github.com/NERVsystems/ecotripmcp/pkg/emissions"
	"github.com/NERVsystems/ecotripmcp/pkg/monitoring"
	"github.com/NERVsystems/ecotripmcp/pkg/tracing"
)

// DefaultMaxPassengers matches the passenger selector of the calculator form.
const DefaultMaxPassengers = 10

// SourceExplicit labels distances supplied by the caller instead of looked up.
const SourceExplicit = "explicit"

// Calculator resolves trip distances and runs the estimator. It is shared by
// the MCP tools and the HTTP API.
type Calculator struct {
	estimator     *emissions.Estimator
	distances     distance.Lookup
	source        string
	maxPassengers int
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithDistanceLookup sets how place names become kilometers. source is the
// name reported alongside looked-up distances.
func WithDistanceLookup(lookup distance.Lookup, source string) CalculatorOption {
	return func(c *Calculator) {
		c.distances = lookup
		c.source = source
	}
}

// WithMaxPassengers bounds the passenger count; 0 removes the bound.
func WithMaxPassengers(n int) CalculatorOption {
	return func(c *Calculator) {
		c.maxPassengers = n
	}
}

// NewCalculator returns a calculator over estimator. Without options it uses
// the fixed placeholder distance.
func NewCalculator(estimator *emissions.Estimator, opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		estimator:     estimator,
		distances:     distance.Fixed{Km: distance.DefaultFixedKm},
		source:        distance.SourceFixed,
		maxPassengers: DefaultMaxPassengers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Estimator returns the underlying estimator.
func (c *Calculator) Estimator() *emissions.Estimator {
	return c.estimator
}

// DistanceSource names the configured distance lookup.
func (c *Calculator) DistanceSource() string {
	return c.source
}

// MaxPassengers returns the configured passenger bound.
func (c *Calculator) MaxPassengers() int {
	return c.maxPassengers
}

// TripInput is the argument shape shared by the carbon tool and the HTTP API.
type TripInput struct {
	From       string   `json:"from,omitempty"`
	To         string   `json:"to,omitempty"`
	Mode       string   `json:"mode"`
	Passengers *int     `json:"passengers,omitempty"`
	RoundTrip  bool     `json:"round_trip,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// AlternativeView is one ranked alternative with its display fields.
type AlternativeView struct {
	Mode            emissions.TransportMode `json:"mode"`
	TotalCO2Kg      float64                 `json:"total_co2_kg"`
	TotalCO2Display string                  `json:"total_co2_display"`
	SavingsKg       float64                 `json:"savings_kg"`
	SavingsDisplay  string                  `json:"savings_display"`
	PercentChange   float64                 `json:"percent_change"`
	Direction       string                  `json:"direction"`
}

// CarbonFootprint is the result of calculate_carbon_footprint.
type CarbonFootprint struct {
	From               string                  `json:"from,omitempty"`
	To                 string                  `json:"to,omitempty"`
	DistanceKm         float64                 `json:"distance_km"`
	DistanceSource     string                  `json:"distance_source"`
	Mode               emissions.TransportMode `json:"mode"`
	Passengers         int                     `json:"passengers"`
	RoundTrip          bool                    `json:"round_trip"`
	TotalCO2Kg         float64                 `json:"total_co2_kg"`
	TotalCO2Display    string                  `json:"total_co2_display"`
	Alternatives       []AlternativeView       `json:"alternatives"`
	TreesToOffset      int                     `json:"trees_to_offset"`
	OffsetCostEstimate int                     `json:"offset_cost_estimate"`
}

func newCarbonFootprint(in TripInput, source string, est *emissions.EmissionEstimate) *CarbonFootprint {
	alternatives := make([]AlternativeView, len(est.Alternatives))
	for i, alt := range est.Alternatives {
		alternatives[i] = AlternativeView{
			Mode:            alt.Mode,
			TotalCO2Kg:      alt.TotalCO2Kg,
			TotalCO2Display: emissions.FormatKg(alt.TotalCO2Kg),
			SavingsKg:       alt.SavingsKg,
			SavingsDisplay:  emissions.FormatKg(math.Abs(alt.SavingsKg)),
			PercentChange:   alt.PercentChange(est.TotalCO2Kg),
			Direction:       alt.Direction(),
		}
	}

	return &CarbonFootprint{
		From:               strings.TrimSpace(in.From),
		To:                 strings.TrimSpace(in.To),
		DistanceKm:         est.DistanceKm,
		DistanceSource:     source,
		Mode:               est.Mode,
		Passengers:         est.Passengers,
		RoundTrip:          est.RoundTrip,
		TotalCO2Kg:         est.TotalCO2Kg,
		TotalCO2Display:    emissions.FormatKg(est.TotalCO2Kg),
		Alternatives:       alternatives,
		TreesToOffset:      est.TreesToOffset,
		OffsetCostEstimate: est.OffsetCostEstimate,
	}
}

// Calculate validates in, resolves the trip distance and estimates emissions.
// Every returned error is a *core.MCPError.
func (c *Calculator) Calculate(ctx context.Context, in TripInput) (*CarbonFootprint, error) {
	ctx, span := tracing.StartSpan(ctx, "ecotrip.estimate")
	defer span.End()

	catalog := c.estimator.Catalog()
	mode := strings.TrimSpace(in.Mode)

	// Unknown modes share one metric label
	modeLabel := mode
	if _, ok := catalog.Lookup(mode); !ok {
		modeLabel = "unknown"
	}
	fail := func(err *core.MCPError) (*CarbonFootprint, error) {
		monitoring.RecordEstimate(modeLabel, 0, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Message)
		return nil, err
	}

	if mode == "" {
		return fail(core.NewError(core.ErrInvalidRequest, "mode is required").
			WithSuggestions(catalog.IDs()...).
			WithGuidance(GuidanceModes))
	}
	if modeLabel == "unknown" {
		return fail(core.FromEstimateError(fmt.Errorf("%w: %q", emissions.ErrUnknownMode, mode), catalog.IDs()...))
	}

	passengers := 1
	if in.Passengers != nil {
		passengers = *in.Passengers
	}
	if err := core.ValidatePassengers(passengers, c.maxPassengers); err != nil {
		return fail(core.FromEstimateError(err))
	}

	km, source, err := c.resolveDistance(ctx, in)
	if err != nil {
		return fail(core.FromEstimateError(err))
	}

	req := emissions.TripRequest{
		DistanceKm: km,
		ModeID:     mode,
		Passengers: passengers,
		RoundTrip:  in.RoundTrip,
	}
	span.SetAttributes(tracing.TripAttributes(req.ModeID, req.DistanceKm, req.Passengers, req.RoundTrip)...)
	span.SetAttributes(attribute.String(tracing.AttrDistanceSource, source))

	est, err := c.estimator.Estimate(req)
	if err != nil {
		return fail(core.FromEstimateError(err, catalog.IDs()...))
	}

	span.SetAttributes(attribute.Float64(tracing.AttrTripCO2Kg, est.TotalCO2Kg))
	monitoring.RecordEstimate(mode, est.TotalCO2Kg, true)

	return newCarbonFootprint(in, source, est), nil
}

func (c *Calculator) resolveDistance(ctx context.Context, in TripInput) (float64, string, error) {
	if in.DistanceKm != nil {
		if err := core.ValidateDistanceKm(*in.DistanceKm); err != nil {
			return 0, "", err
		}
		return *in.DistanceKm, SourceExplicit, nil
	}

	km, err := c.LookupDistance(ctx, in.From, in.To)
	if err != nil {
		return 0, "", err
	}
	return km, c.source, nil
}

// LookupDistance resolves the kilometers between two place names with the
// configured lookup. Every returned error is a *core.MCPError.
func (c *Calculator) LookupDistance(ctx context.Context, from, to string) (float64, error) {
	if err := core.ValidatePlace("from", from); err != nil {
		return 0, err
	}
	if err := core.ValidatePlace("to", to); err != nil {
		return 0, err
	}

	ctx, span := tracing.StartSpan(ctx, "distance.lookup",
		trace.WithAttributes(attribute.String(tracing.AttrDistanceSource, c.source)),
	)
	defer span.End()

	km, err := c.distances.LookupDistanceKm(ctx, strings.TrimSpace(from), strings.TrimSpace(to))
	monitoring.RecordDistanceLookup(c.source, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var mcpErr *core.MCPError
		switch {
		case errors.Is(err, distance.ErrMissingEndpoint):
			return 0, core.NewValidationError(core.ErrMissingParameter, err.Error())
		case errors.As(err, &mcpErr):
			return 0, mcpErr
		default:
			return 0, core.NewError(core.ErrDistanceUnavailable, err.Error()).
				WithGuidance(GuidanceDistance)
		}
	}

	if km <= 0 {
		return 0, core.NewError(core.ErrInvalidRequest, fmt.Sprintf("%q and %q resolve to the same place", from, to)).
			WithGuidance(GuidancePlaceNames + " " + GuidanceDistance)
	}
	return km, nil
}
