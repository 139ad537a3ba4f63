package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/ecotripmcp/pkg/version"
)

// VersionInfo represents version information for the service
type VersionInfo struct {
	Version     string            `json:"version"`
	Commit      string            `json:"commit,omitempty"`
	BuildDate   string            `json:"build_date,omitempty"`
	GoVersion   string            `json:"go_version,omitempty"`
	VCSRevision string            `json:"vcs_revision,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`
}

// GetVersionTool returns a tool definition for retrieving version information
func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version and build information of the ecotrip MCP service"),
	)
}

// HandleGetVersion implements version information retrieval
func HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "get_version")

	info := version.Info()
	versionInfo := VersionInfo{
		Version:   info["version"],
		Commit:    info["commit"],
		BuildDate: info["build_date"],
		GoVersion: info["go_version"],
	}

	// Fall back to the toolchain's VCS stamp for builds without ldflags
	if bi, ok := debug.ReadBuildInfo(); ok {
		versionInfo.Settings = make(map[string]string)
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				versionInfo.VCSRevision = setting.Value
			case "vcs.time", "vcs.modified", "GOOS", "GOARCH":
				versionInfo.Settings[setting.Key] = setting.Value
			}
		}
	}

	resultBytes, err := json.Marshal(versionInfo)
	if err != nil {
		logger.Error("failed to marshal version info", "error", err)
		return ErrorResponse("Failed to retrieve version information"), nil
	}

	return mcp.NewToolResultText(string(resultBytes)), nil
}
