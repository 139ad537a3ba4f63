// Package version exposes build metadata injected at link time, e.g.
//
//	go build -ldflags "-X github.com/NERVsystems/ecotripmcp/pkg/version.BuildVersion=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags.
var (
	BuildVersion = "dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// Info returns the build metadata as labels.
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// String is the one-line form printed by --version.
func String() string {
	return fmt.Sprintf("ecotripmcp %s (commit %s, built %s, %s)",
		BuildVersion, BuildCommit, BuildDate, runtime.Version())
}
