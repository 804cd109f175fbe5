package diag

import (
	"errors"
	"fmt"
)

// Category is the top-level error taxonomy every component's failures
// are classified into, so pkg/cli can translate them to an exit code
// without re-deriving what kind of failure occurred.
type Category int

const (
	CategoryUserInput Category = iota
	CategoryResolution
	CategorySource
	CategoryBuild
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryUserInput:
		return "user input"
	case CategoryResolution:
		return "resolution"
	case CategorySource:
		return "source"
	case CategoryBuild:
		return "build"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the taxonomy category and an
// optional Diagnostic for rendering, so a single errors.As site at the
// top of pkg/cli can both print the right message and pick an exit
// code.
type Error struct {
	Category   Category
	Diagnostic Diagnostic
	// ExitCode overrides the category's default exit code, used for
	// Build errors forwarding a spawned compiler's own exit status.
	ExitCode int
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Diagnostic.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCodeOf derives the process exit code for err per the taxonomy:
// 0 when err is nil, the forwarded code for a Build error that carries
// one, and 101 for every other failure.
func ExitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var de *Error
	if errors.As(err, &de) && de.Category == CategoryBuild && de.ExitCode != 0 {
		return de.ExitCode
	}
	return 101
}

// Wrap builds a *Error classifying err under category, with message
// used as the Diagnostic's rendered text.
func Wrap(category Category, message string, err error) *Error {
	return &Error{
		Category: category,
		Diagnostic: Diagnostic{
			Severity: SeverityError,
			Message:  message,
		},
		Err: err,
	}
}

// WrapBuild builds a Build-category error forwarding a spawned
// compiler's own exit status, so the CLI can propagate it unchanged.
func WrapBuild(unit string, exitCode int, err error) *Error {
	return &Error{
		Category: CategoryBuild,
		ExitCode: exitCode,
		Diagnostic: Diagnostic{
			Severity: SeverityError,
			Message:  fmt.Sprintf("unit %s failed to compile", unit),
			Unit:     unit,
		},
		Err: err,
	}
}
