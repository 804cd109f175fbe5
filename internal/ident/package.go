package ident

import "fmt"

// PackageID is the triple (name, version, source) that uniquely
// identifies a package in a resolved graph. Equality is structural: two
// packages with identical name+version from different sources are
// distinct.
type PackageID struct {
	Name    Name
	Version Version
	Source  SourceID
}

// Equal reports structural equality.
func (p PackageID) Equal(other PackageID) bool {
	return p.Name == other.Name && p.Version.Equal(other.Version) && p.Source.Equal(other.Source)
}

// Key returns a value suitable for use as a map key, since Version and
// SourceID hold pointers/slices that defeat naive struct-key comparison
// in places. It is stable across processes for the same (name, version,
// source) triple.
func (p PackageID) Key() string {
	return fmt.Sprintf("%s@%s[%s]", p.Name, p.Version, p.Source.Describe())
}

func (p PackageID) String() string {
	return fmt.Sprintf("%s v%s (%s)", p.Name, p.Version, p.Source.Describe())
}
