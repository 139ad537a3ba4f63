package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecotripmcp/pkg/emissions"
)

// CalculateCarbonFootprintTool returns the tool definition for calculate_carbon_footprint.
func CalculateCarbonFootprintTool(modeIDs []string, maxPassengers int) mcp.Tool {
	passengerOpts := []mcp.PropertyOption{
		mcp.Description("Number of travellers; emissions scale linearly with it"),
		mcp.DefaultNumber(1),
		mcp.Min(1),
	}
	if maxPassengers > 0 {
		passengerOpts = append(passengerOpts, mcp.Max(float64(maxPassengers)))
	}

	return mcp.NewTool("calculate_carbon_footprint",
		mcp.WithDescription("Estimate the CO2 emitted by a trip and rank the other transport modes from greenest to dirtiest"),
		mcp.WithString("from",
			mcp.Description("Origin place name, e.g. \"Paris\". Required unless distance_km is given"),
		),
		mcp.WithString("to",
			mcp.Description("Destination place name, e.g. \"London\". Required unless distance_km is given"),
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Transport mode identifier"),
			mcp.Enum(modeIDs...),
		),
		mcp.WithNumber("passengers", passengerOpts...),
		mcp.WithBoolean("round_trip",
			mcp.Description("Count the return journey as well"),
			mcp.DefaultBool(false),
		),
		mcp.WithNumber("distance_km",
			mcp.Description("One-way trip distance in kilometers; skips the distance lookup when set"),
		),
	)
}

// HandleCalculateCarbonFootprint returns the handler for calculate_carbon_footprint.
func HandleCalculateCarbonFootprint(calc *Calculator) ToolHandler {
	return WithParsedInput("calculate_carbon_footprint",
		func(ctx context.Context, input TripInput, logger *slog.Logger) (interface{}, error) {
			result, err := calc.Calculate(ctx, input)
			if err != nil {
				return nil, err
			}
			logger.Info("estimated trip emissions",
				"mode", result.Mode.ID,
				"distance_km", result.DistanceKm,
				"distance_source", result.DistanceSource,
				"co2_kg", emissions.FormatKg(result.TotalCO2Kg))
			return result, nil
		})
}

// DistanceInput is the argument shape of lookup_trip_distance.
type DistanceInput struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TripDistance is the result of lookup_trip_distance.
type TripDistance struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	DistanceKm float64 `json:"distance_km"`
	Display    string  `json:"display"`
	Source     string  `json:"source"`
}

// LookupTripDistanceTool returns the tool definition for lookup_trip_distance.
func LookupTripDistanceTool(source string) mcp.Tool {
	return mcp.NewTool("lookup_trip_distance",
		mcp.WithDescription(fmt.Sprintf("Look up the one-way distance between two places (source: %s)", source)),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("Origin place name"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Destination place name"),
		),
	)
}

// HandleLookupTripDistance returns the handler for lookup_trip_distance.
func HandleLookupTripDistance(calc *Calculator) ToolHandler {
	return WithParsedInput("lookup_trip_distance",
		func(ctx context.Context, input DistanceInput, logger *slog.Logger) (interface{}, error) {
			km, err := calc.LookupDistance(ctx, input.From, input.To)
			if err != nil {
				return nil, err
			}
			return TripDistance{
				From:       input.From,
				To:         input.To,
				DistanceKm: km,
				Display:    fmt.Sprintf("%.1f km", km),
				Source:     calc.DistanceSource(),
			}, nil
		})
}
