package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
)

// ToolHandler is the signature mcp-go expects for tool calls.
type ToolHandler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InputParser is a generic function to parse request arguments into a strongly typed struct
func InputParser[T any](req mcp.CallToolRequest) (T, *mcp.CallToolResult, error) {
	var input T

	inputJSON, err := json.Marshal(req.GetArguments())
	if err != nil {
		return input, ErrorResponse(fmt.Sprintf("Invalid input format: %v", err)), err
	}

	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return input, core.NewValidationError(core.ErrInvalidParameter, fmt.Sprintf("Failed to parse input: %v", err)).
			ToMCPResult(), err
	}

	return input, nil, nil
}

// WithParsedInput is a higher-order function that handles request parsing and error handling.
// Handler errors that are *core.MCPError are returned to the client as-is.
func WithParsedInput[T any](
	handlerName string,
	handler func(ctx context.Context, input T, logger *slog.Logger) (interface{}, error),
) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", handlerName)

		input, errResult, err := InputParser[T](req)
		if err != nil {
			logger.Error("failed to parse input", "error", err)
			return withUsageExample(errResult, handlerName), nil
		}

		result, err := handler(ctx, input, logger)
		if err != nil {
			var mcpErr *core.MCPError
			if errors.As(err, &mcpErr) {
				logger.Warn("request rejected", "code", mcpErr.Code, "error", mcpErr.Message)
				return mcpErr.ToMCPResult(), nil
			}
			logger.Error("handler error", "error", err)
			return ErrorResponse(fmt.Sprintf("Failed to process request: %v", err)), nil
		}

		resultBytes, err := json.Marshal(result)
		if err != nil {
			logger.Error("failed to marshal result", "error", err)
			return ErrorResponse("Failed to generate result"), nil
		}

		return mcp.NewToolResultText(string(resultBytes)), nil
	}
}

// withUsageExample appends a usage example to a parse failure when one is known.
func withUsageExample(result *mcp.CallToolResult, toolName string) *mcp.CallToolResult {
	example := GetToolUsageExample(toolName)
	if example == "" || result == nil {
		return result
	}
	result.Content = append(result.Content, mcp.NewTextContent("Example arguments:\n"+example))
	return result
}
