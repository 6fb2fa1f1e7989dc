// Package version provides the module version reported by the tools in this repository.
package version

import "runtime/debug"

var (
	// Overridden by -ldflags "-X" for release builds.
	Version = "devel"
	// The module path reported with the version.
	Module = "github.com/dannyzb/winevent"
)

func init() {
	if Version != "devel" {
		return
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		Version = bi.Main.Version
	}
}

// String formats the version for display.
func String() string {
	return Module + " " + Version
}
