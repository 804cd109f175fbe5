package ident

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Requirement is a parsed version requirement: caret, tilde, wildcard,
// inequality, or a compound ("comma-joined") expression of those.
type Requirement struct {
	raw string
	c   *semver.Constraints
}

// ParseRequirement parses a version requirement string.
func ParseRequirement(raw string) (Requirement, error) {
	if raw == "" {
		raw = "*"
	}
	c, err := semver.NewConstraint(raw)
	if err != nil {
		return Requirement{}, fmt.Errorf("%w: %q: %s", ErrInvalidRequirement, raw, err)
	}
	return Requirement{raw: raw, c: c}, nil
}

func (r Requirement) String() string { return r.raw }

// Matches reports whether v satisfies the requirement.
func (r Requirement) Matches(v Version) bool {
	if r.c == nil {
		return true
	}
	ok, _ := r.c.Validate(v.v)
	return ok
}

// Intersect aggregates two requirements on the same package into the
// "compatible range" the resolver uses to prune candidates before
// querying a source. Quarry represents the aggregate as an AND of the
// two requirements' textual forms, which semver.Constraints already
// supports as a comma-joined expression.
func Intersect(a, b Requirement) (Requirement, error) {
	combined := a.raw
	if combined == "" || combined == "*" {
		combined = b.raw
	} else if b.raw != "" && b.raw != "*" {
		combined = combined + ", " + b.raw
	}
	return ParseRequirement(combined)
}
