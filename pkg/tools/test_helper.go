package tools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
)

// NewToolRequest builds a CallToolRequest for tests and the HTTP API.
func NewToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// IsErrorResult checks if a CallToolResult represents an error
func IsErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// ResultText returns the first text content of a result.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// AssertErrorResult checks that a result is an error result and fails the test if not
func AssertErrorResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if !IsErrorResult(result) {
		t.Error(message)
	}
}

// AssertErrorCode checks that result is an error carrying the given MCP error code.
func AssertErrorCode(t *testing.T, result *mcp.CallToolResult, code core.ErrorCode) *core.MCPError {
	t.Helper()
	if !IsErrorResult(result) {
		t.Fatalf("expected %s error, got success: %s", code, ResultText(result))
	}
	var mcpErr core.MCPError
	if err := ParseResultJSON(result, &mcpErr); err != nil {
		t.Fatalf("error result is not an MCPError: %v (%s)", err, ResultText(result))
	}
	if mcpErr.Code != string(code) {
		t.Errorf("error code = %s, want %s (%s)", mcpErr.Code, code, mcpErr.Message)
	}
	return &mcpErr
}

// AssertSuccessResult checks that a result is a success result and fails the test if not
func AssertSuccessResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if IsErrorResult(result) {
		t.Errorf("%s. Got error: %s", message, ResultText(result))
	}
}

// ParseResultJSON parses the JSON content from a CallToolResult
func ParseResultJSON(result *mcp.CallToolResult, out interface{}) error {
	return json.Unmarshal([]byte(ResultText(result)), out)
}
