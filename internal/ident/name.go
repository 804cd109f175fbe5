// Package ident implements package identifiers, versions, version
// requirements, and source identifiers.
package ident

import (
	"fmt"
	"regexp"
)

// namePattern restricts package names to lowercase alphanumerics, '-' and
// '_', starting with a letter. Feature names use a separate, broader
// class (see manifest.ValidFeatureName) that also allows '+' and '.'.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Name is a validated package name.
type Name string

// ParseName validates and returns a package Name.
func ParseName(raw string) (Name, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if !namePattern.MatchString(raw) {
		return "", fmt.Errorf("%w: %q must be lowercase alphanumerics, '-' or '_', starting with a letter", ErrInvalidName, raw)
	}
	return Name(raw), nil
}

func (n Name) String() string { return string(n) }
