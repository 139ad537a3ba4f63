package tools

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
)

// Common error guidance messages
const (
	GuidanceModes      = "Use list_transport_modes to see the supported mode identifiers."
	GuidanceDistance   = "Pass distance_km explicitly to skip the lookup."
	GuidancePlaceNames = "Try a city name with its country, e.g. \"Lyon, France\"."
	GuidanceGeneral    = "Please try again later or modify your request parameters."
)

// ErrorResponse wraps an unexpected failure as an INTERNAL_ERROR tool result.
func ErrorResponse(message string) *mcp.CallToolResult {
	return core.NewError(core.ErrInternalError, message).
		WithGuidance(GuidanceGeneral).
		ToMCPResult()
}

// GetToolUsageExample returns an example JSON snippet for using a specific tool.
// It is shown to clients whose arguments could not be parsed.
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		"calculate_carbon_footprint": `{
  "from": "Paris",
  "to": "London",
  "mode": "plane",
  "passengers": 2,
  "round_trip": true
}`,
		"lookup_trip_distance": `{
  "from": "Berlin",
  "to": "Munich"
}`,
	}

	return examples[toolName]
}
