// Package prompts holds the MCP prompts served alongside the ecotrip tools.
package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// CarbonCalculatorPromptName is the name clients request the prompt by.
const CarbonCalculatorPromptName = "carbon_calculator_system"

// CarbonCalculatorSystemPrompt returns instructions for assistants using the
// carbon footprint tools.
func CarbonCalculatorSystemPrompt() string {
	return `You can estimate the carbon footprint of a trip with the ecotrip tools.

1. Call list_transport_modes once to learn the valid "mode" identifiers and their emission factors (kg CO2 per passenger-km).
2. Call calculate_carbon_footprint with "from", "to" and "mode". Add "passengers" and "round_trip" when the user mentions them.
   - If the user already knows the distance, pass "distance_km" instead of looking it up.
   - "passengers" must be a whole number of at least 1.
3. Report total_co2_display in kg, then walk through "alternatives" in the order given; they are already sorted greenest first.
   - "direction" is "reduction" when the alternative emits less, "increase" when it emits more.
   - Quote savings_display with the direction rather than a signed number.
4. Mention trees_to_offset (trees needed for a year to absorb the CO2) and offset_cost_estimate when the user asks about offsetting.

If a tool returns NO_RESULTS, a place name did not match anything; ask the user to check the spelling or add the country.
If it returns DISTANCE_UNAVAILABLE, ask the user for the distance in kilometers or try again later.
If it returns UNKNOWN_MODE, offer the suggested modes from the error.
Never invent emission figures; only report what the tools return.`
}

// RegisterCarbonPrompts adds the carbon calculator prompt to srv.
func RegisterCarbonPrompts(srv *server.MCPServer) {
	prompt := mcp.NewPrompt(CarbonCalculatorPromptName,
		mcp.WithPromptDescription("System prompt with carbon footprint calculator instructions"),
	)

	srv.AddPrompt(prompt, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(
			"Carbon Calculator Instructions",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(
					mcp.RoleAssistant,
					mcp.NewTextContent(CarbonCalculatorSystemPrompt()),
				),
			},
		), nil
	})
}
