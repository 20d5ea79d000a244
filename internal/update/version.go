package update

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrUnresolved is wrapped by every reason a version could not be determined.
var ErrUnresolved = errors.New("version unresolved")

// Resolved is a version value that is either a parsed semantic version or
// Unresolved, carrying the reason it could not be determined.
// An Unresolved value never compares as older or newer than anything.
type Resolved struct {
	Raw     string          // Text as read from its source (trimmed)
	Version *semver.Version // nil when unresolved
	Err     error           // Why the value is unresolved
}

// Resolve parses s into a Resolved value. Surrounding whitespace and a single
// leading "v" are ignored; anything other than major.minor.patch with
// optional pre-release and build metadata is Unresolved.
func Resolve(s string) Resolved {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Unresolved(raw, fmt.Errorf("%w: empty version string", ErrUnresolved))
	}

	v, err := semver.StrictNewVersion(NormalizeVersion(raw))
	if err != nil {
		return Unresolved(raw, fmt.Errorf("%w: invalid version %q: %v", ErrUnresolved, raw, err))
	}
	return Resolved{Raw: raw, Version: v}
}

// Unresolved builds an unresolved value with the given reason.
func Unresolved(raw string, reason error) Resolved {
	if reason == nil {
		reason = ErrUnresolved
	}
	return Resolved{Raw: raw, Err: reason}
}

// IsResolved returns true if the value holds a real version.
func (r Resolved) IsResolved() bool {
	return r.Version != nil
}

// String returns the normalized version, or "unresolved" when unknown.
func (r Resolved) String() string {
	if r.Version == nil {
		return "unresolved"
	}
	return r.Version.String()
}

// IsUpdateAvailable reports whether available is strictly newer than
// installed. It is false whenever either side is unresolved: an update is
// never claimed without a confirmed newer version.
func IsUpdateAvailable(installed, available Resolved) bool {
	if !installed.IsResolved() || !available.IsResolved() {
		return false
	}
	return available.Version.GreaterThan(installed.Version)
}

// NormalizeVersion trims whitespace and removes the 'v' prefix if present
func NormalizeVersion(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "v")
}
