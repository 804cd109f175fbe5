package unitgraph

import (
	"fmt"
	"sort"

	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/manifest"
	"github.com/quarrybuild/quarry/internal/resolver"
)

// RootSpec names one root unit the caller wants built: a workspace
// member package, one of its targets, and the compile-mode requested
// for it (e.g. `quarry test` requests ModeTest for every target that
// supports testing).
type RootSpec struct {
	Package ident.PackageID
	Target  manifest.Target
	Mode    Mode
}

// Builder walks a resolved dependency graph and a set of loaded
// manifests (one per resolved package; the caller is responsible for
// having downloaded and parsed every package's manifest.Manifest before
// calling Build) into a unit graph.
type Builder struct {
	Resolved  *resolver.Graph
	Manifests map[string]*manifest.Manifest // keyed by ident.PackageID.Key()
	HostTriple   string
	TargetTriple string
}

// Build runs the procedure in order: one root unit per RootSpec, a
// recursive walk propagating host/target kind and compile-mode,
// feature re-projection per edge, and run-build-script synthesis for
// every package that declares a build script.
func (b *Builder) Build(roots []RootSpec) (*Graph, error) {
	g := newGraph()
	for _, r := range roots {
		m, err := b.manifestFor(r.Package)
		if err != nil {
			return nil, err
		}
		u := Unit{
			Package:  r.Package,
			Target:   r.Target,
			Mode:     r.Mode,
			Kind:     KindTarget,
			Features: b.activatedFeatures(r.Package),
		}
		idx := g.unitFor(u)
		g.Roots = append(g.Roots, idx)
		if err := b.walk(g, idx, m, r.Package, KindTarget, r.Mode); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (b *Builder) manifestFor(id ident.PackageID) (*manifest.Manifest, error) {
	m, ok := b.Manifests[id.Key()]
	if !ok {
		return nil, fmt.Errorf("unitgraph: no manifest loaded for %s", id)
	}
	return m, nil
}

func (b *Builder) activatedFeatures(id ident.PackageID) []string {
	idx, ok := b.Resolved.NodeByID(id)
	if !ok {
		return nil
	}
	node := b.Resolved.Nodes[idx]
	out := make([]string, 0, len(node.ActivatedFeatures))
	for f, on := range node.ActivatedFeatures {
		if on {
			out = append(out, f)
		}
	}
	return out
}

// walk descends the resolved graph from parent's resolved node,
// creating a unit per (child package, compile-mode, kind) reached by a
// non-dev edge (dev edges only descend from a root unit itself, since
// §4.F says dev edges do not influence non-dev units).
func (b *Builder) walk(g *Graph, parentIdx UnitIndex, parentManifest *manifest.Manifest, parentID ident.PackageID, parentKind Kind, parentMode Mode) error {
	if parentMode != ModeRunBuildScript {
		b.attachBuildScript(g, parentIdx, parentManifest, parentID, parentKind)
	}

	nodeIdx, ok := b.Resolved.NodeByID(parentID)
	if !ok {
		return nil
	}
	node := b.Resolved.Nodes[nodeIdx]

	for _, edge := range node.Edges {
		if edge.Kind == resolver.EdgeDevelopment && parentMode != ModeTest && parentMode != ModeBench {
			continue
		}
		child := b.Resolved.Nodes[edge.To]

		childKind := parentKind
		if edge.Kind == resolver.EdgeBuild {
			childKind = KindHost
		}
		childManifest, err := b.manifestFor(child.ID)
		if err != nil {
			return err
		}
		if isProcMacro(childManifest) {
			childKind = KindHost
		}

		childMode := ModeBuild
		if parentMode == ModeCheck {
			childMode = ModeCheck
		}

		lib := libraryTarget(childManifest)
		if lib == nil {
			continue
		}

		childUnit := Unit{
			Package:  child.ID,
			Target:   *lib,
			Mode:     childMode,
			Kind:     childKind,
			Features: projectFeatures(edge, childManifest),
		}
		childIdx := g.unitFor(childUnit)

		level := MetadataReady
		if edge.Kind == resolver.EdgeBuild {
			level = FullyBuilt
		}
		g.addEdge(parentIdx, childIdx, level)

		if err := b.walk(g, childIdx, childManifest, child.ID, childKind, childMode); err != nil {
			return err
		}
	}
	return nil
}

// attachBuildScript synthesizes the run-build-script unit (and its
// host-compiled build unit) for a package that declares a build-script
// target (it does nothing otherwise), wiring it so every other unit of
// that package depends on it.
func (b *Builder) attachBuildScript(g *Graph, ownerIdx UnitIndex, m *manifest.Manifest, pkg ident.PackageID, kind Kind) {
	script := buildScriptTarget(m)
	if script == nil {
		return
	}

	compileUnit := Unit{Package: pkg, Target: *script, Mode: ModeBuild, Kind: KindHost}
	compileIdx := g.unitFor(compileUnit)

	runUnit := Unit{Package: pkg, Target: *script, Mode: ModeRunBuildScript, Kind: kind, Links: m.Links}
	runIdx := g.unitFor(runUnit)

	g.addEdge(runIdx, compileIdx, FullyBuilt)
	g.addEdge(ownerIdx, runIdx, FullyBuilt)

	for _, dep := range m.Dependencies {
		if dep.Kind != manifest.DepBuild {
			continue
		}
		depNodeIdx, ok := b.Resolved.NodeByID(pkg)
		if !ok {
			continue
		}
		for _, e := range b.Resolved.Nodes[depNodeIdx].Edges {
			if e.Kind != resolver.EdgeBuild {
				continue
			}
			depChild := b.Resolved.Nodes[e.To]
			depManifest, err := b.manifestFor(depChild.ID)
			if err != nil {
				continue
			}
			lib := libraryTarget(depManifest)
			if lib == nil {
				continue
			}
			depUnit := Unit{Package: depChild.ID, Target: *lib, Mode: ModeBuild, Kind: KindHost}
			depIdx := g.unitFor(depUnit)
			g.addEdge(compileIdx, depIdx, FullyBuilt)
		}
	}
}

func isProcMacro(m *manifest.Manifest) bool {
	for _, t := range m.Targets {
		if t.Kind == manifest.TargetLibrary && t.Name == "proc-macro" {
			return true
		}
	}
	return false
}

func libraryTarget(m *manifest.Manifest) *manifest.Target {
	for i := range m.Targets {
		if m.Targets[i].Kind == manifest.TargetLibrary {
			return &m.Targets[i]
		}
	}
	return nil
}

func buildScriptTarget(m *manifest.Manifest) *manifest.Target {
	for i := range m.Targets {
		if m.Targets[i].Kind == manifest.TargetBuildScript {
			return &m.Targets[i]
		}
	}
	return nil
}

// projectFeatures implements the feature-resolver-v2 re-projection.
// Platform activation is already decided at resolve time (the edge
// only exists if its platform predicate matched); what remains is
// host/target decoupling. The solver's Node.ActivatedFeatures unifies
// every edge that reaches a package into one global set, which would
// give a host-kind occurrence of a package the same features as a
// target-kind occurrence of it. Instead, re-expand the child's own
// feature graph using only this edge's requested features and
// default-features flag, so a package reached once as a host-kind
// build dependency and once as a target-kind dependency — two
// distinct units, keyed by (package, mode, kind) in walk — each carry
// the feature set that occurrence's own edge actually asked for.
func projectFeatures(edge resolver.Edge, childManifest *manifest.Manifest) []string {
	activated := resolver.ExpandEdgeFeatures(childManifest, edge.RequestedFeatures, edge.DefaultFeatures)
	out := make([]string, 0, len(activated))
	for f, on := range activated {
		if on {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
