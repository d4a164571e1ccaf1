// Package version reports what build of wpsync is running. Values come
// from ldflags on release builds and from Go build metadata otherwise.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set via -ldflags "-X github.com/wpsync/wpsync/internal/version.Version=..."
// by release builds.
var (
	Version   = "0.3.0-dev"
	Revision  = ""
	BuildDate = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "" || strings.HasSuffix(Version, "-dev") {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if Revision == "" {
		if r := settings["vcs.revision"]; r != "" {
			Revision = r[:min(len(r), 12)]
			if settings["vcs.modified"] == "true" {
				Revision += "-dirty"
			}
		}
	}
	if BuildDate == "" {
		BuildDate = settings["vcs.time"]
	}
}

// Short is the version plus revision: "0.3.0 (5e23a4b)".
func Short() string {
	if Revision == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// Detailed adds the toolchain and platform for bug reports.
func Detailed() string {
	parts := []string{Short(), runtime.Version(), runtime.GOOS + "/" + runtime.GOARCH}
	if BuildDate != "" {
		parts = append(parts, BuildDate)
	}
	return strings.Join(parts, "; ")
}
