package ident

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version wraps a parsed semantic version so the rest of Quarry never
// imports the underlying semver library directly.
type Version struct {
	v *semver.Version
}

// ParseVersion parses a semver string (with optional pre-release and
// build metadata) into a Version.
func ParseVersion(raw string) (Version, error) {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %s", ErrInvalidVersion, raw, err)
	}
	return Version{v: v}, nil
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.Original()
}

// MarshalText encodes v as its original version string, so a Version
// survives JSON round trips (e.g. the registry query cache).
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses a version string written by MarshalText; an empty
// string yields the zero Version.
func (v *Version) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := ParseVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Compare returns -1, 0, or 1 per standard comparison semantics.
func (v Version) Compare(other Version) int {
	return v.v.Compare(other.v)
}

// LessThan reports whether v sorts before other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports structural (not string) equality.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Major, Minor, Patch expose the numeric components.
func (v Version) Major() uint64 { return v.v.Major() }
func (v Version) Minor() uint64 { return v.v.Minor() }
func (v Version) Patch() uint64 { return v.v.Patch() }

// Prerelease returns the pre-release component, empty if none.
func (v Version) Prerelease() string { return v.v.Prerelease() }

// IsPrerelease reports whether the version carries a pre-release tag.
func (v Version) IsPrerelease() bool { return v.v.Prerelease() != "" }

// CompatibleClass returns the "compatibility class" used by the resolver
// to decide whether two versions of the same package may coexist in the
// graph: a package may appear multiple times at different
// major-compatible versions, but only once per compatibility class. For
// versions >=1.0.0 that's the major; for 0.y.z it's (0, minor); for
// 0.0.z every patch is its own class.
func (v Version) CompatibleClass() string {
	if v.Major() > 0 {
		return fmt.Sprintf("%d", v.Major())
	}
	if v.Minor() > 0 {
		return fmt.Sprintf("0.%d", v.Minor())
	}
	return fmt.Sprintf("0.0.%d", v.Patch())
}
