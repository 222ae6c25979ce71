// Package version holds build metadata reported by /version and the -version flag.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/bissquit/incident-portal/internal/version.Version=1.2.0"
var (
	Version   = "0.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)
