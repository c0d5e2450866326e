// Package version carries build-time version information, populated
// via ldflags; development builds see the defaults.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/doughall/cronrun/internal/version.Version=1.0.0 \
//	                   -X github.com/doughall/cronrun/internal/version.Commit=abc123 \
//	                   -X github.com/doughall/cronrun/internal/version.BuildTime=2026-08-23T12:00:00Z"
var (
	// Version is the semantic version (e.g. "1.0.0", "dev").
	Version = "dev"

	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"

	// BuildTime is the RFC3339 build timestamp.
	BuildTime = "unknown"
)

// Info returns a one-line version string.
func Info() string {
	return "cronrun " + Version + " (commit: " + Commit + ", built: " + BuildTime + ")"
}
