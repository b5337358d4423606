package main

import (
	"github.com/ohcupload/ohcupload/internal/cmd"
	"github.com/ohcupload/ohcupload/internal/server/handlers"
)

// Version information set via ldflags during build
// Example: go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2025-10-28"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		// Map the failure to a semantic exit code (config invalid, file not found, ...)
		cmd.Fail(err)
	}
}
