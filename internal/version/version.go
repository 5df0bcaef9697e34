// Package version compares MySQL server version strings.
package version

import (
	"fmt"
	"regexp"

	"golang.org/x/mod/semver"
)

// Minimum is the oldest server version that can be compared.
const Minimum = "5.0.0"

var reNumeric = regexp.MustCompile(`^\s*v?(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// UnsupportedError reports a server older than the required minimum.
type UnsupportedError struct {
	Side    string // "source" or "target"
	Version string
	Minimum string
}

func (e *UnsupportedError) Error() string {
	side := e.Side
	if side == "" {
		side = "server"
	}
	return fmt.Sprintf("MySQL %s or newer is required (%s is v%s)", e.Minimum, side, e.Version)
}

// Canonical reduces a server version such as "8.0.36-log" or
// "10.6.12-MariaDB" to its numeric semver form ("v8.0.36"). Missing minor
// or patch numbers count as 0. It returns "" when v has no numeric prefix.
func Canonical(v string) string {
	m := reNumeric.FindStringSubmatch(v)
	if m == nil {
		return ""
	}
	parts := [3]string{m[1], m[2], m[3]}
	for i, p := range parts {
		if p == "" {
			parts[i] = "0"
		}
	}
	c := "v" + parts[0] + "." + parts[1] + "." + parts[2]
	if !semver.IsValid(c) {
		return ""
	}
	return c
}

// Compare returns -1, 0 or +1 as a is older than, equal to or newer than b,
// looking only at the numeric major.minor.patch prefix. An unparsable
// version sorts before every valid one.
func Compare(a, b string) int {
	return semver.Compare(Canonical(a), Canonical(b))
}

// Check returns an *UnsupportedError when v is older than minimum.
func Check(side, v, minimum string) error {
	if Compare(v, minimum) < 0 {
		return &UnsupportedError{Side: side, Version: v, Minimum: minimum}
	}
	return nil
}
