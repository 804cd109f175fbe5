package resolver

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/manifest"
	"github.com/quarrybuild/quarry/internal/source"
)

// SourceResolver maps a dependency's declared source spec to the
// concrete Source implementation that can query it. The default
// (zero-value) DepSource resolves to the workspace's configured
// registry.
type SourceResolver interface {
	SourceFor(spec manifest.DepSource) (source.Source, error)
}

// Input collects everything a solve run needs: the workspace being
// resolved, the features requested for each root member, the active
// platform predicate, patch/replace overlays, a previous lock to prefer
// versions from, and a way to reach every package's source.
type Input struct {
	Workspace         *manifest.Workspace
	RequestedFeatures map[string][]string // root package name -> extra requested features
	Platform          string
	Patch             map[string][]manifest.Dependency
	Replace           map[string]string
	LockedVersions    map[string]string // package name -> version string, from a preserved lock
	Sources           SourceResolver
}

// solver holds the mutable state of one resolution run.
type solver struct {
	in       Input
	graph    *Graph
	sel      *selection
	unsel    *unselected
	vqs      map[string]*versionQueue
	attempts int
}

// Resolve runs the backtracking solver to completion and returns the
// resolved graph plus each node's activated-feature map (carried inside
// the graph's Node.ActivatedFeatures).
func Resolve(ctx context.Context, in Input) (*Graph, error) {
	s := &solver{
		in:    in,
		graph: NewGraph(),
		sel:   newSelection(),
		unsel: newUnselected(),
		vqs:   map[string]*versionQueue{},
	}
	if err := s.seedRoots(); err != nil {
		return nil, err
	}
	if err := s.run(ctx); err != nil {
		return nil, err
	}
	return s.graph, nil
}

// seedRoots selects every workspace member at its declared version and
// enqueues its dependencies, per step 1 of the algorithm.
func (s *solver) seedRoots() error {
	names := make([]string, 0, len(s.in.Workspace.Members))
	for name := range s.in.Workspace.Members {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := s.in.Workspace.Members[name]
		version, err := ident.ParseVersion(m.Version)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		id := ident.PackageID{Name: ident.Name(name), Version: version, Source: ident.NewPathSource(m.Dir)}

		requested := s.in.RequestedFeatures[name]
		features, activatedDeps, depFeatures := expandFeatures(m, requested, true, map[string]bool{})

		node := s.graph.nodeFor(id)
		s.graph.Nodes[node].ActivatedFeatures = features
		s.graph.Roots = append(s.graph.Roots, node)

		if m.Links != "" {
			if owner, ok := s.sel.links[m.Links]; ok && owner != name {
				return &LinksCollision{Value: m.Links, A: owner, B: name}
			}
		}
		s.sel.push(selectedAtom{id: id, activatedFeatures: features}, m.Links)

		s.enqueueDependencies(name, m, activatedDeps, depFeatures)
	}
	return nil
}

// enqueueDependencies pushes every dependency of m (filtered to those
// actually activated, directly or via feature expansion) onto the
// unselected queue.
func (s *solver) enqueueDependencies(fromName string, m *manifest.Manifest, activatedOptional map[string]bool, depFeatures map[string][]string) {
	for i := range m.Dependencies {
		d := m.Dependencies[i]
		if d.Optional && !activatedOptional[d.Key] {
			continue
		}
		// Dev edges are only ever enqueued here, for a workspace member;
		// selectNewCandidate never re-enters enqueueDependencies for a
		// resolved candidate's own dev-dependencies.
		req, err := ident.ParseRequirement(d.Requirement)
		if err != nil {
			continue
		}
		features := append([]string{}, d.Features...)
		features = unifyFeatures(features, depFeatures[d.Key])

		pd := &pendingDep{
			fromName:    fromName,
			name:        d.EffectivePackageName(),
			requirement: req,
			kind:        manifestDepKind(d.Kind),
			platform:    d.Platform,
			optional:    d.Optional,
			features:    features,
			defaultFeat: d.DefaultFeatures,
		}
		s.unsel.enqueue(pd)
	}
}

// run is the top-level backtracking loop: repeatedly pick the next
// unresolved dependency, try candidates in descending version order,
// and backtrack to the most recent decision with remaining alternatives
// on conflict.
func (s *solver) run(ctx context.Context) error {
	for {
		pd, ok := s.unsel.next()
		if !ok {
			return nil
		}
		if !platformActive(pd.platform, s.in.Platform) {
			continue
		}

		if existing, isSelected := s.sel.find(pd.name); isSelected {
			if !pd.requirement.Matches(existing.id.Version) {
				if !s.backtrack() {
					return &ConflictingRequirements{Package: pd.name, Chain: []string{pd.fromName, pd.name}}
				}
				continue
			}
			s.mergeFeaturesOnto(existing, pd)
			continue
		}

		if err := s.selectNewCandidate(ctx, pd); err != nil {
			if s.backtrack() {
				continue
			}
			return err
		}
	}
}

// mergeFeaturesOnto widens an already-selected node's activated features
// when a second edge requests features the first edge didn't.
func (s *solver) mergeFeaturesOnto(existing selectedAtom, pd *pendingDep) {
	idx, ok := s.graph.index[existing.id.Key()]
	if !ok {
		return
	}
	for _, f := range pd.features {
		s.graph.Nodes[idx].ActivatedFeatures[f] = true
	}
}

// selectNewCandidate queries pd's source, builds a version queue, and
// pushes the best candidate, enqueuing its own dependencies in turn.
func (s *solver) selectNewCandidate(ctx context.Context, pd *pendingDep) error {
	src, err := s.sourceFor(pd)
	if err != nil {
		return err
	}

	result, err := src.Query(ctx, source.DependencySpec{Name: pd.name, Requirement: pd.requirement})
	if err != nil {
		return err
	}
	for result.Status == source.Pending {
		result, err = src.Poll(ctx, result.Token)
		if err != nil {
			return err
		}
	}
	s.unsel.candidateCount[pd.name] = len(result.Candidates)
	heap.Init(s.unsel)

	if len(result.Candidates) == 0 {
		return &NoMatchingVersion{Package: pd.name, Req: pd.requirement.String()}
	}

	vq := newVersionQueue(pd.name, result.Candidates, s.in.LockedVersions[pd.name])
	s.vqs[pd.name] = vq

	for {
		candidate, has := vq.current()
		if !has {
			return &NoMatchingVersion{Package: pd.name, Req: pd.requirement.String()}
		}
		if s.compatibilityConflict(candidate.ID) {
			vq.advance()
			continue
		}
		s.commitCandidate(pd, candidate)
		s.attempts++
		return nil
	}
}

// compatibilityConflict reports whether selecting id would violate the
// "only once per compatibility class" rule.
func (s *solver) compatibilityConflict(id ident.PackageID) bool {
	_, exists := s.sel.findClass(id.Name.String(), id.Version.CompatibleClass())
	return exists
}

// commitCandidate pushes candidate onto the selection stack and enqueues
// its own declared dependencies.
func (s *solver) commitCandidate(pd *pendingDep, candidate source.Summary) {
	node := s.graph.nodeFor(candidate.ID)

	// Run the same feature-value expansion seedRoots runs for workspace
	// members, against the candidate's own declared [features] table
	// (carried raw on the Summary), so a transitively resolved package's
	// dep:/dep-name/feat/dep-name?/feat entries actually decide which of
	// its own optional dependencies get activated, instead of every
	// optional dependency being pulled in unconditionally.
	candidateManifest := &manifest.Manifest{Features: summaryFeatureSet(candidate.Features)}
	features, activatedDeps, depFeatures := expandFeatures(candidateManifest, pd.features, pd.defaultFeat, map[string]bool{})
	s.graph.Nodes[node].ActivatedFeatures = features

	s.graph.AddEdge(ident.PackageID{Name: ident.Name(pd.fromName)}, candidate.ID, Edge{
		Kind:              pd.kind,
		RequestedFeatures: pd.features,
		DefaultFeatures:   pd.defaultFeat,
		Platform:          pd.platform,
		Optional:          pd.optional,
	})

	var enqueued []*pendingDep
	for _, dep := range candidate.Dependencies {
		// Dev edges are only ever enqueued from seedRoots, for a
		// workspace member; a transitively resolved candidate's own
		// dev-dependencies are test/bench-only for that candidate and
		// never enter the build.
		if dep.Kind == "development" {
			continue
		}
		if dep.Optional && !activatedDeps[dep.Name] {
			continue
		}
		req, err := ident.ParseRequirement(dep.Requirement)
		if err != nil {
			continue
		}
		child := &pendingDep{
			fromName:    candidate.ID.Name.String(),
			name:        dep.Name,
			requirement: req,
			kind:        edgeKindFromString(dep.Kind),
			platform:    dep.Platform,
			optional:    dep.Optional,
			features:    depFeatures[dep.Name],
			defaultFeat: true,
		}
		s.unsel.enqueue(child)
		enqueued = append(enqueued, child)
	}

	s.sel.push(selectedAtom{id: candidate.ID, enqueued: enqueued, activatedFeatures: features}, "")
}

func edgeKindFromString(k string) EdgeKind {
	switch k {
	case "development":
		return EdgeDevelopment
	case "build":
		return EdgeBuild
	default:
		return EdgeNormal
	}
}

// backtrack pops the most recent selection, removes everything it
// enqueued, and advances that package's version queue to the next
// candidate. Returns false once the root is reached with no
// alternatives left, meaning the whole resolution has failed.
func (s *solver) backtrack() bool {
	for s.sel.depth() > 0 {
		popped := s.sel.pop()
		s.unsel.remove(popped.enqueued)

		vq, ok := s.vqs[popped.id.Name.String()]
		if !ok {
			continue
		}
		vq.advance()
		if !vq.exhausted() {
			return true
		}
		delete(s.vqs, popped.id.Name.String())
	}
	return false
}

// sourceFor resolves the concrete Source to query for a pending
// dependency. Every dependency is passed to the configured
// SourceResolver with an empty (registry) DepSource; any path-vs-registry
// dispatch happens inside the returned Source (e.g. source.WorkspaceRouter).
func (s *solver) sourceFor(pd *pendingDep) (source.Source, error) {
	if s.in.Sources == nil {
		return nil, fmt.Errorf("no source resolver configured for %s", pd.name)
	}
	return s.in.Sources.SourceFor(manifest.DepSource{})
}

// platformActive reports whether a dependency's platform predicate is
// satisfied by the active platform set; an empty predicate always
// matches. Quarry's predicate language is a flat string equality check
// here; richer cfg()-style matching belongs to the unit graph builder,
// which re-evaluates predicates per compile target.
func platformActive(predicate, active string) bool {
	if predicate == "" {
		return true
	}
	return predicate == active
}
