package main

import (
	"runtime/debug"
	"testing"
)

func TestResolveVersion(t *testing.T) {
	stamped := &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
	}}
	stamped.Main.Version = "(devel)"
	installed := &debug.BuildInfo{}
	installed.Main.Version = "v0.3.1"

	tests := []struct {
		name string
		v    string
		info *debug.BuildInfo
		want string
	}{
		{"injected", "v1.2.0", stamped, "v1.2.0"},
		{"no build info", "dev", nil, "dev"},
		{"go install", "dev", installed, "v0.3.1"},
		{"vcs stamp", "dev", stamped, "devel+0123456789ab+dirty"},
		{"nothing known", "dev", &debug.BuildInfo{}, "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveVersion(tt.v, tt.info); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
