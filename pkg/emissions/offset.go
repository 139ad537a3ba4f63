package emissions

import (
	"fmt"
	"math"
)

// Offset placeholders carried over from the calculator page. They are not
// sourced figures and stay configurable.
const (
	// DefaultTreeAbsorptionKgPerYear is the CO2 one tree is assumed to absorb per year
	DefaultTreeAbsorptionKgPerYear = 22.0

	// DefaultOffsetCostPerKg is the flat offset price per kg CO2
	DefaultOffsetCostPerKg = 0.5
)

// OffsetConstants turn an emission total into its offset equivalents.
type OffsetConstants struct {
	TreeAbsorptionKgPerYear float64 `json:"tree_absorption_kg_per_year" yaml:"tree_absorption_kg_per_year"`
	CostPerKg               float64 `json:"cost_per_kg" yaml:"cost_per_kg"`
}

// DefaultOffsets returns the calculator's placeholder constants.
func DefaultOffsets() OffsetConstants {
	return OffsetConstants{
		TreeAbsorptionKgPerYear: DefaultTreeAbsorptionKgPerYear,
		CostPerKg:               DefaultOffsetCostPerKg,
	}
}

// Validate requires both constants to be finite and positive.
func (o OffsetConstants) Validate() error {
	if !(o.TreeAbsorptionKgPerYear > 0) || math.IsInf(o.TreeAbsorptionKgPerYear, 0) {
		return fmt.Errorf("%w: tree absorption must be positive, got %v", ErrInvalidCatalog, o.TreeAbsorptionKgPerYear)
	}
	if !(o.CostPerKg > 0) || math.IsInf(o.CostPerKg, 0) {
		return fmt.Errorf("%w: offset cost per kg must be positive, got %v", ErrInvalidCatalog, o.CostPerKg)
	}
	return nil
}

// TreesToOffset is the whole number of trees needed to absorb co2Kg in a year.
func (o OffsetConstants) TreesToOffset(co2Kg float64) int {
	return int(math.Round(co2Kg / o.TreeAbsorptionKgPerYear))
}

// OffsetCost is the rounded price of offsetting co2Kg.
func (o OffsetConstants) OffsetCost(co2Kg float64) int {
	return int(math.Round(co2Kg * o.CostPerKg))
}
