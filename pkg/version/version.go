package version

import "runtime"

// Version is overridden at build time with
// -ldflags "-X github.com/rubiojr/resdir/pkg/version.Version=v0.3.1".
var Version = "0.1.0-dev"

// BuildVersion returns the version string for display
func BuildVersion() string {
	return "resdir version " + Version
}

// APIVersion is reported by /health and the live endpoint.
func APIVersion() string {
	return Version
}

type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
	Schema    int    `json:"schema"`
}

// Current describes this binary. schema is the newest embedded migration.
func Current(schema int) Info {
	return Info{
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Schema:    schema,
	}
}
