// Package unitgraph builds the compilation-unit DAG from a resolved
// dependency graph: for every (package, target, mode) combination
// reachable from the requested roots, a Unit is created, host/target
// kind propagated, and run-build-script units synthesized for packages
// that declare a build script.
package unitgraph

import (
	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/manifest"
)

// Kind distinguishes a unit compiled for the host (build scripts,
// procedural-macro libraries, and anything reached only through a
// build-dependency edge) from one compiled for the requested target
// triple.
type Kind int

const (
	KindTarget Kind = iota
	KindHost
)

func (k Kind) String() string {
	if k == KindHost {
		return "host"
	}
	return "target"
}

// Mode is the compile-mode a unit is built under.
type Mode int

const (
	ModeBuild Mode = iota
	ModeCheck
	ModeTest
	ModeBench
	ModeDoc
	ModeDoctest
	ModeDocScrape
	ModeRunBuildScript
)

func (m Mode) String() string {
	switch m {
	case ModeBuild:
		return "build"
	case ModeCheck:
		return "check"
	case ModeTest:
		return "test"
	case ModeBench:
		return "bench"
	case ModeDoc:
		return "doc"
	case ModeDoctest:
		return "doctest"
	case ModeDocScrape:
		return "doc-scrape"
	case ModeRunBuildScript:
		return "run-build-script"
	default:
		return "unknown"
	}
}

// ReadinessLevel is the dependency level an edge requires before its
// dependent unit may start.
type ReadinessLevel int

const (
	MetadataReady ReadinessLevel = iota
	FullyBuilt
)

// UnitIndex is an arena index into a Graph's Units slice.
type UnitIndex int

// Unit is one compilation unit: one invocation of the underlying
// compiler (or, for ModeRunBuildScript, one subprocess execution).
type Unit struct {
	Package    ident.PackageID
	Target     manifest.Target
	Mode       Mode
	Kind       Kind
	Features   []string
	// Links is copied from the owning manifest, non-empty only for
	// ModeRunBuildScript units, to let the scheduler enforce the
	// at-most-one-owner invariant.
	Links string
}

// Identity is the (package, target name, mode, kind) tuple that
// determines whether two requested units should collapse into one.
type Identity struct {
	Package ident.PackageID
	Target  string
	Mode    Mode
	Kind    Kind
}

func (u Unit) identity() Identity {
	return Identity{Package: u.Package, Target: u.Target.Name, Mode: u.Mode, Kind: u.Kind}
}

// DepEdge is an edge between two units in the graph.
type DepEdge struct {
	From, To UnitIndex
	Level    ReadinessLevel
}

// Graph is the arena of Units plus their DepEdges.
type Graph struct {
	Units []Unit
	Edges []DepEdge
	Roots []UnitIndex

	index map[Identity]UnitIndex
}

func newGraph() *Graph {
	return &Graph{index: map[Identity]UnitIndex{}}
}

// unitFor returns the existing index for a unit of this identity,
// creating one if none exists yet (the de-duplication step §4.F
// requires).
func (g *Graph) unitFor(u Unit) UnitIndex {
	id := u.identity()
	if idx, ok := g.index[id]; ok {
		return idx
	}
	idx := UnitIndex(len(g.Units))
	g.Units = append(g.Units, u)
	g.index[id] = idx
	return idx
}

func (g *Graph) addEdge(from, to UnitIndex, level ReadinessLevel) {
	for _, e := range g.Edges {
		if e.From == from && e.To == to {
			return
		}
	}
	g.Edges = append(g.Edges, DepEdge{From: from, To: to, Level: level})
}

// DependenciesOf returns every edge whose From is u.
func (g *Graph) DependenciesOf(u UnitIndex) []DepEdge {
	var out []DepEdge
	for _, e := range g.Edges {
		if e.From == u {
			out = append(out, e)
		}
	}
	return out
}
