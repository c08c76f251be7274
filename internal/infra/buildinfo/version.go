// Package buildinfo exposes build-time version information.
//
// Release builds inject the values via ldflags:
//
//	go build -ldflags "-X github.com/atymic/soketi/internal/infra/buildinfo.Version=v1.2.0"
package buildinfo

import "runtime"

// Set via ldflags at build time.
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Info is the build description surfaced by the version command.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build information. GoVersion comes from the runtime
// rather than ldflags: the toolchain already knows it.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String returns a one-line version string.
func String() string {
	return Version + " (" + Commit + ") built at " + BuildTime
}
