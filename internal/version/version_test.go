package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestColored(t *testing.T) {
	saved, savedNoColor := Version, color.NoColor
	t.Cleanup(func() { Version, color.NoColor = saved, savedNoColor })
	color.NoColor = true

	tests := []struct {
		version string
		want    string
	}{
		{"0.1.0-dev", "0.1.0-dev"},
		{" 1.2.3 ", "1.2.3"},
		{"nightly", "nightly"},
		{"1.2", "1.2"},
	}
	for _, tt := range tests {
		Version = tt.version
		if got := Colored(); got != tt.want {
			t.Errorf("Colored() with %q = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestColoredKeepsDigits(t *testing.T) {
	saved, savedNoColor := Version, color.NoColor
	t.Cleanup(func() { Version, color.NoColor = saved, savedNoColor })
	color.NoColor = false

	Version = "3.4.5"
	got := Colored()
	if got == "3.4.5" {
		t.Fatal("expected escape sequences with color enabled")
	}
	for _, digit := range []string{"3", "4", "5"} {
		if !strings.Contains(got, digit) {
			t.Fatalf("%q lost component %s", got, digit)
		}
	}
}
