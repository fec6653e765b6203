package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	origVersion, origDirty := Version, Dirty
	defer func() { Version, Dirty = origVersion, origDirty }()

	tests := []struct {
		version, dirty, want string
	}{
		{"1.2.0", "false", "1.2.0"},
		{"1.2.0", "true", "1.2.0-dirty"},
		{"dev", "", "dev"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			Version, Dirty = tt.version, tt.dirty
			if got := String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	origVersion := Version
	defer func() { Version = origVersion }()

	Version = "0.3.1"
	if got := UserAgent(); got != "inspectai/0.3.1" {
		t.Errorf("UserAgent() = %q", got)
	}
}

func TestFull(t *testing.T) {
	out := Full()
	for _, want := range []string{"inspectai ", "Commit:", "Go version:", "OS/Arch:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Full() missing %q:\n%s", want, out)
		}
	}
}
