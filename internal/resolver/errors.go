package resolver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCyclic = errors.New("cyclic dependency")
)

// NoMatchingVersion is returned when no candidate of pkg satisfies req,
// carrying the reasons each candidate considered was rejected.
type NoMatchingVersion struct {
	Package string
	Req     string
	Reasons []string
}

func (e *NoMatchingVersion) Error() string {
	if len(e.Reasons) == 0 {
		return fmt.Sprintf("no version of %s matches requirement %q", e.Package, e.Req)
	}
	return fmt.Sprintf("no version of %s matches requirement %q: %s", e.Package, e.Req, strings.Join(e.Reasons, "; "))
}

// ConflictingRequirements is returned when backtracking exhausts every
// alternative for a package, carrying the chain of edges that produced
// the incompatible requirements.
type ConflictingRequirements struct {
	Package string
	Chain   []string
}

func (e *ConflictingRequirements) Error() string {
	return fmt.Sprintf("conflicting requirements on %s: %s", e.Package, strings.Join(e.Chain, " -> "))
}

// CyclicDependency is returned when a non-dev cycle is detected.
type CyclicDependency struct {
	Cycle []string
}

func (e *CyclicDependency) Error() string {
	return fmt.Sprintf("%s: %s", ErrCyclic, strings.Join(e.Cycle, " -> "))
}

func (e *CyclicDependency) Unwrap() error { return ErrCyclic }

// LinksCollision is returned when two packages in the graph claim the
// same `links` value.
type LinksCollision struct {
	Value string
	A, B  string
}

func (e *LinksCollision) Error() string {
	return fmt.Sprintf("links value %q claimed by both %s and %s", e.Value, e.A, e.B)
}
