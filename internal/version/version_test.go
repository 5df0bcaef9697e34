package version

import (
	"errors"
	"testing"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"8.0.36", "v8.0.36"},
		{"8.0.36-log", "v8.0.36"},
		{"5.7.44-0ubuntu0.18.04.1", "v5.7.44"},
		{"10.6.12-MariaDB-1:10.6.12+maria~ubu2004", "v10.6.12"},
		{"5.0", "v5.0.0"},
		{"8", "v8.0.0"},
		{"v5.1.2", "v5.1.2"},
		{"unknown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Canonical(tt.in); got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"8.0.36", "5.0.0", 1},
		{"4.1.22", "5.0.0", -1},
		{"5.0.0", "5.0.0", 0},
		{"5.0.0-log", "5.0", 0},
		{"5.10.1", "5.9.9", 1},
		{"garbage", "5.0.0", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	if err := Check("source", "8.0.36-log", Minimum); err != nil {
		t.Errorf("Check() unexpected error: %v", err)
	}
	if err := Check("target", "5.0.0", Minimum); err != nil {
		t.Errorf("Check() at the minimum should pass: %v", err)
	}

	err := Check("target", "4.1.22", Minimum)
	var unsupported *UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Check() error = %v, want *UnsupportedError", err)
	}
	if unsupported.Side != "target" || unsupported.Version != "4.1.22" {
		t.Errorf("unexpected error fields: %+v", unsupported)
	}
	if want := "MySQL 5.0.0 or newer is required (target is v4.1.22)"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
