// Package version holds the build-time version string returned by
// GET /health and surfaced in every Decision envelope.
package version

// Version is the current build version, overridable via -ldflags at
// build time (-X wayfarer/pkg/version.Version=...).
var Version = "v0.1.0"
