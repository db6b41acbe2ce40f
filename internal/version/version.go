// Package version holds the host version and the comparison rules modules use
// to declare a minimum compatible host.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Current is the host version reported to modules.
const Current = "2.1.0"

// Sentinel minimum-version values that always pass the gate.
const (
	// Beta marks a module as experimental; it loads on any host.
	Beta = "beta"
	// NotSpecified is the zero requirement.
	NotSpecified = ""
)

var versionRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Version is a semantic triple.
type Version struct {
	Major, Minor, Patch int
}

// Parse converts "X.Y.Z" into a Version. Anything else is an error.
func Parse(s string) (Version, error) {
	if !versionRe.MatchString(s) {
		return Version{}, fmt.Errorf("invalid version %q: want X.Y.Z", s)
	}
	parts := strings.SplitN(s, ".", 3)
	var v Version
	var fields = []*int{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		*fields[i] = n
	}
	return v, nil
}

// MustParse is Parse for trusted constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 as v sorts before, equal to or after o.
func (v Version) Compare(o Version) int {
	pairs := [][2]int{{v.Major, o.Major}, {v.Minor, o.Minor}, {v.Patch, o.Patch}}
	for _, p := range pairs {
		switch {
		case p[0] < p[1]:
			return -1
		case p[0] > p[1]:
			return 1
		}
	}
	return 0
}

// String renders the triple back to "X.Y.Z".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsSentinel reports whether s is one of the always-pass requirement values.
// The comparison is case-insensitive so manifests may spell "BETA".
func IsSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case Beta, NotSpecified, "not specified":
		return true
	}
	return false
}
