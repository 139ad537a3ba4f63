package emissions

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Estimation errors. Both are caller contract violations and are never retried.
var (
	ErrInvalidRequest = errors.New("invalid trip request")
	ErrUnknownMode    = errors.New("unknown transport mode")
)

// TripRequest describes one trip to estimate.
type TripRequest struct {
	DistanceKm float64 `json:"distance_km"`
	ModeID     string  `json:"mode"`
	Passengers int     `json:"passengers"`
	RoundTrip  bool    `json:"round_trip"`
}

// Validate checks the request preconditions that do not need a catalog.
func (r TripRequest) Validate() error {
	if r.ModeID == "" {
		return fmt.Errorf("%w: transport mode is required", ErrInvalidRequest)
	}
	if math.IsNaN(r.DistanceKm) || math.IsInf(r.DistanceKm, 0) || r.DistanceKm <= 0 {
		return fmt.Errorf("%w: distance must be a positive number of km, got %v", ErrInvalidRequest, r.DistanceKm)
	}
	if r.Passengers < 1 {
		return fmt.Errorf("%w: passenger count must be at least 1, got %d", ErrInvalidRequest, r.Passengers)
	}
	return nil
}

// multiplier is 2 for a return journey.
func (r TripRequest) multiplier() float64 {
	if r.RoundTrip {
		return 2
	}
	return 1
}

// co2For computes the unrounded total for mode under the request's parameters.
func (r TripRequest) co2For(mode TransportMode) float64 {
	return r.DistanceKm * mode.FactorKgPerKm * float64(r.Passengers) * r.multiplier()
}

// Alternative is another mode evaluated for the same trip.
type Alternative struct {
	Mode       TransportMode `json:"mode"`
	TotalCO2Kg float64       `json:"total_co2_kg"`
	// SavingsKg is primary minus this alternative; positive means greener.
	SavingsKg float64 `json:"savings_kg"`
}

// Greener reports whether switching to this alternative reduces emissions.
func (a Alternative) Greener() bool {
	return a.SavingsKg > 0
}

// Direction classifies the change relative to the chosen mode.
func (a Alternative) Direction() string {
	switch {
	case a.SavingsKg > 0:
		return "reduction"
	case a.SavingsKg < 0:
		return "increase"
	default:
		return "equal"
	}
}

// PercentChange expresses the savings as a percentage of the primary total.
// A zero primary total yields 0.
func (a Alternative) PercentChange(primaryKg float64) float64 {
	if primaryKg == 0 {
		return 0
	}
	return a.SavingsKg / primaryKg * 100
}

// EmissionEstimate is the result of one estimation.
type EmissionEstimate struct {
	Mode               TransportMode `json:"mode"`
	DistanceKm         float64       `json:"distance_km"`
	Passengers         int           `json:"passengers"`
	RoundTrip          bool          `json:"round_trip"`
	TotalCO2Kg         float64       `json:"total_co2_kg"`
	Alternatives       []Alternative `json:"alternatives"`
	TreesToOffset      int           `json:"trees_to_offset"`
	OffsetCostEstimate int           `json:"offset_cost_estimate"`
}

// Estimate computes the emissions for req with the default offset constants.
func Estimate(req TripRequest, catalog Catalog) (*EmissionEstimate, error) {
	return EstimateWithOffsets(req, catalog, DefaultOffsets())
}

// EstimateWithOffsets computes the emissions for req and ranks every other
// catalog mode from greenest to dirtiest. It performs no I/O.
func EstimateWithOffsets(req TripRequest, catalog Catalog, offsets OffsetConstants) (*EmissionEstimate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	primary, ok := catalog.Lookup(req.ModeID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.ModeID)
	}

	total := req.co2For(primary)

	alternatives := make([]Alternative, 0, len(catalog))
	for _, mode := range catalog {
		if mode.ID == primary.ID {
			continue
		}
		altTotal := req.co2For(mode)
		alternatives = append(alternatives, Alternative{
			Mode:       mode,
			TotalCO2Kg: altTotal,
			SavingsKg:  total - altTotal,
		})
	}

	// Stable keeps catalog order among equal totals
	sort.SliceStable(alternatives, func(i, j int) bool {
		return alternatives[i].TotalCO2Kg < alternatives[j].TotalCO2Kg
	})

	return &EmissionEstimate{
		Mode:               primary,
		DistanceKm:         req.DistanceKm,
		Passengers:         req.Passengers,
		RoundTrip:          req.RoundTrip,
		TotalCO2Kg:         total,
		Alternatives:       alternatives,
		TreesToOffset:      offsets.TreesToOffset(total),
		OffsetCostEstimate: offsets.OffsetCost(total),
	}, nil
}

// Estimator binds a validated catalog and offset constants.
type Estimator struct {
	catalog Catalog
	offsets OffsetConstants
}

// NewEstimator validates catalog and offsets and returns an estimator over them.
func NewEstimator(catalog Catalog, offsets OffsetConstants) (*Estimator, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	if err := offsets.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{
		catalog: catalog.Clone(),
		offsets: offsets,
	}, nil
}

// Estimate runs EstimateWithOffsets against the bound catalog.
func (e *Estimator) Estimate(req TripRequest) (*EmissionEstimate, error) {
	return EstimateWithOffsets(req, e.catalog, e.offsets)
}

// Catalog returns a copy of the bound catalog.
func (e *Estimator) Catalog() Catalog {
	return e.catalog.Clone()
}

// Offsets returns the bound offset constants.
func (e *Estimator) Offsets() OffsetConstants {
	return e.offsets
}

// FormatKg renders a CO2 mass the way the calculator displays it.
func FormatKg(kg float64) string {
	return fmt.Sprintf("%.1f", kg)
}
