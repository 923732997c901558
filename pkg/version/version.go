// Package version holds build metadata stamped in with ldflags, for example
// go build -ldflags "-X interviewsim/pkg/version.Version=v0.3.0".
package version

//nolint:gochecknoglobals // ldflags can only target package-level vars.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
