package main

import (
	"runtime/debug"

	"github.com/marcus/roster/cmd"
)

// Version is set at release time with -ldflags "-X main.Version=...".
var Version = "dev"

// resolveVersion prefers an injected version, then the module version from
// `go install`, then a devel+<rev>[+dirty] string from the VCS stamp.
func resolveVersion(v string, info *debug.BuildInfo) string {
	if v != "" && v != "dev" {
		return v
	}
	if info == nil {
		return v
	}
	if mv := info.Main.Version; mv != "" && mv != "(devel)" {
		return mv
	}

	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return v
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	out := "devel+" + rev
	if dirty {
		out += "+dirty"
	}
	return out
}

func main() {
	info, _ := debug.ReadBuildInfo()
	cmd.SetVersion(resolveVersion(Version, info))
	cmd.Execute()
}
