package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/ecotripmcp/pkg/monitoring"
	"github.com/NERVsystems/ecotripmcp/pkg/tools/prompts"
	"github.com/NERVsystems/ecotripmcp/pkg/tracing"
)

// Registry contains all tool definitions and handlers
type Registry struct {
	logger *slog.Logger
	calc   *Calculator
}

// NewRegistry creates a new tool registry serving calc.
func NewRegistry(logger *slog.Logger, calc *Calculator) *Registry {
	return &Registry{
		logger: logger,
		calc:   calc,
	}
}

// ToolDefinition represents an ecotrip MCP tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     ToolHandler
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	modeIDs := r.calc.Estimator().Catalog().IDs()

	return []ToolDefinition{
		{
			Name:        "get_version",
			Description: "Get the version information for this ecotrip MCP",
			Tool:        GetVersionTool(),
			Handler:     HandleGetVersion,
		},
		{
			Name:        "list_transport_modes",
			Description: "List transport modes with their emission factors and the offset constants",
			Tool:        ListTransportModesTool(),
			Handler:     HandleListTransportModes(r.calc),
		},
		{
			Name:        "calculate_carbon_footprint",
			Description: "Estimate trip CO2 and rank alternatives. Parameters: from, to, mode, passengers, round_trip, distance_km",
			Tool:        CalculateCarbonFootprintTool(modeIDs, r.calc.MaxPassengers()),
			Handler:     HandleCalculateCarbonFootprint(r.calc),
		},
		{
			Name:        "lookup_trip_distance",
			Description: "Look up the distance between two places. Parameters: from, to",
			Tool:        LookupTripDistanceTool(r.calc.DistanceSource()),
			Handler:     HandleLookupTripDistance(r.calc),
		},
	}
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, server.ToolHandlerFunc(r.wrapWithTracing(def.Name, def.Handler)))
	}
}

// wrapWithTracing wraps a tool handler with an OpenTelemetry span and
// Prometheus request metrics.
func (r *Registry) wrapWithTracing(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spanName := fmt.Sprintf("mcp.tool.%s", toolName)
		ctx, span := tracing.StartSpan(ctx, spanName,
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)

		// Tool results flagged IsError count as failures too
		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, duration.Milliseconds(), resultSize)...)
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// RegisterPrompts registers all prompts with the MCP server.
func (r *Registry) RegisterPrompts(mcpServer *server.MCPServer) {
	r.logger.Info("registering carbon calculator prompts")
	prompts.RegisterCarbonPrompts(mcpServer)
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// RegisterAll registers all tools and prompts with the MCP server.
func (r *Registry) RegisterAll(mcpServer *server.MCPServer) {
	r.RegisterTools(mcpServer)
	r.RegisterPrompts(mcpServer)
}
