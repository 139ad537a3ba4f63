package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecotripmcp/pkg/emissions"
)

// ModeInfo is one catalog entry as list_transport_modes reports it.
type ModeInfo struct {
	emissions.TransportMode
	CO2Per100KmKg float64 `json:"co2_per_100km_kg"`
}

// ModeCatalog is the result of list_transport_modes.
type ModeCatalog struct {
	Modes          []ModeInfo                `json:"modes"`
	Offsets        emissions.OffsetConstants `json:"offsets"`
	DistanceSource string                    `json:"distance_source"`
	MaxPassengers  int                       `json:"max_passengers,omitempty"`
}

// ListModes describes the calculator's catalog in catalog order.
func (c *Calculator) ListModes() ModeCatalog {
	catalog := c.estimator.Catalog()
	modes := make([]ModeInfo, len(catalog))
	for i, m := range catalog {
		modes[i] = ModeInfo{TransportMode: m, CO2Per100KmKg: m.FactorKgPerKm * 100}
	}
	return ModeCatalog{
		Modes:          modes,
		Offsets:        c.estimator.Offsets(),
		DistanceSource: c.source,
		MaxPassengers:  c.maxPassengers,
	}
}

// ListTransportModesTool returns the tool definition for list_transport_modes.
func ListTransportModesTool() mcp.Tool {
	return mcp.NewTool("list_transport_modes",
		mcp.WithDescription("List the transport modes the calculator knows, with their per-passenger emission factors and the offset constants"),
	)
}

// HandleListTransportModes returns the handler for list_transport_modes.
func HandleListTransportModes(calc *Calculator) ToolHandler {
	return WithParsedInput("list_transport_modes",
		func(ctx context.Context, _ struct{}, logger *slog.Logger) (interface{}, error) {
			return calc.ListModes(), nil
		})
}
