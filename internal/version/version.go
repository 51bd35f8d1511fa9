// Package version holds the build-time version variables for the sweep binary.
// Release builds set them with -ldflags "-X .../internal/version.Version=...".
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns the formatted version string printed by sweep version.
func Info() string {
	v, c := resolved()
	return fmt.Sprintf("sweep version %s\ncommit: %s\nbuilt: %s\n", v, c, Date)
}

// Short returns only the version, for scripts.
func Short() string {
	v, _ := resolved()
	return v
}

// resolved falls back to the module version and VCS revision the toolchain
// records when the binary was built without ldflags (go install).
func resolved() (ver, commit string) {
	ver, commit = Version, Commit
	if ver != "dev" && commit != "none" {
		return ver, commit
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ver, commit
	}
	if ver == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		ver = bi.Main.Version
	}
	if commit == "none" {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				commit = s.Value
			}
		}
	}
	return ver, commit
}
