// Package emissions estimates trip CO2 per transport mode and ranks the
// greener alternatives for the same trip.
package emissions

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCatalog is returned when a transport mode catalog breaks its invariants.
var ErrInvalidCatalog = errors.New("invalid transport mode catalog")

// TransportMode is a static reference entry describing one way to travel.
type TransportMode struct {
	ID            string  `json:"id" yaml:"id"`
	Label         string  `json:"label" yaml:"label"`
	FactorKgPerKm float64 `json:"emission_factor_kg_per_km" yaml:"emission_factor_kg_per_km"`
}

// Catalog is an ordered set of transport modes. Order matters: it breaks
// ties when alternatives with equal emissions are ranked.
type Catalog []TransportMode

// Mode identifiers of the default catalog
const (
	ModePlane = "plane"
	ModeCar   = "car"
	ModeTrain = "train"
	ModeBus   = "bus"
)

// DefaultCatalog returns the per-passenger emission factors used by the
// calculator when no catalog file is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: ModePlane, Label: "Airplane", FactorKgPerKm: 0.255},
		{ID: ModeCar, Label: "Car", FactorKgPerKm: 0.171},
		{ID: ModeTrain, Label: "Train", FactorKgPerKm: 0.041},
		{ID: ModeBus, Label: "Bus", FactorKgPerKm: 0.089},
	}
}

// Lookup returns the mode with the given ID.
func (c Catalog) Lookup(id string) (TransportMode, bool) {
	for _, m := range c {
		if m.ID == id {
			return m, true
		}
	}
	return TransportMode{}, false
}

// IDs returns the mode identifiers in catalog order.
func (c Catalog) IDs() []string {
	ids := make([]string, len(c))
	for i, m := range c {
		ids[i] = m.ID
	}
	return ids
}

// Validate checks that the catalog is non-empty, that every ID is present
// and unique, and that every factor is a finite non-negative number.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: no transport modes defined", ErrInvalidCatalog)
	}

	seen := make(map[string]struct{}, len(c))
	for i, m := range c {
		if m.ID == "" {
			return fmt.Errorf("%w: mode at index %d has an empty id", ErrInvalidCatalog, i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("%w: duplicate mode id %q", ErrInvalidCatalog, m.ID)
		}
		seen[m.ID] = struct{}{}

		if math.IsNaN(m.FactorKgPerKm) || math.IsInf(m.FactorKgPerKm, 0) || m.FactorKgPerKm < 0 {
			return fmt.Errorf("%w: mode %q has invalid emission factor %v", ErrInvalidCatalog, m.ID, m.FactorKgPerKm)
		}
	}
	return nil
}

// Clone returns a copy that can be handed out without exposing the backing array.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	copy(out, c)
	return out
}
