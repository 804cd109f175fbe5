// Package resolver implements the backtracking dependency solver:
// selecting a consistent set of package versions and activated features
// satisfying every manifest's declared requirements.
package resolver

import (
	"sort"

	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/manifest"
)

// NodeIndex is an arena index into a Graph's node slice, used instead of
// pointers so the resolved graph can be copied, hashed, and compared
// cheaply once resolution finishes.
type NodeIndex int

// EdgeKind mirrors manifest.DepKind but lives in the resolved-graph
// vocabulary, since an edge also needs to represent the synthesized
// platform/optional attributes carried along with it.
type EdgeKind int

const (
	EdgeNormal EdgeKind = iota
	EdgeDevelopment
	EdgeBuild
)

// Edge is a labeled dependency edge from one graph node to another.
type Edge struct {
	To              NodeIndex
	Kind            EdgeKind
	RequestedFeatures []string
	DefaultFeatures bool
	Platform        string
	Optional        bool
}

// Node is one resolved package in the graph.
type Node struct {
	ID               ident.PackageID
	ActivatedFeatures map[string]bool
	Edges            []Edge
}

// Graph is an arena of Nodes with index-typed edges, avoiding pointer
// cycles so the whole structure remains trivially comparable and
// serializable once resolution completes.
type Graph struct {
	Nodes []Node
	Roots []NodeIndex
	// index speeds up "do we already have a node for this package id"
	// lookups during resolution; not part of the graph's public identity.
	index map[string]NodeIndex
}

// NewGraph returns an empty graph ready for incremental construction.
func NewGraph() *Graph {
	return &Graph{index: map[string]NodeIndex{}}
}

// nodeFor returns the existing node index for id, or creates one.
func (g *Graph) nodeFor(id ident.PackageID) NodeIndex {
	key := id.Key()
	if idx, ok := g.index[key]; ok {
		return idx
	}
	idx := NodeIndex(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{ID: id, ActivatedFeatures: map[string]bool{}})
	g.index[key] = idx
	return idx
}

// AddEdge records a dependency edge from parent to child, creating
// either side's node if it does not yet exist.
func (g *Graph) AddEdge(parent, child ident.PackageID, edge Edge) {
	p := g.nodeFor(parent)
	c := g.nodeFor(child)
	edge.To = c
	g.Nodes[p].Edges = append(g.Nodes[p].Edges, edge)
}

// SortedNodeNames returns every node's package name in deterministic
// (lexicographic) order, used by callers needing a stable iteration
// order (e.g. lock-file serialization, diffing in tests).
func (g *Graph) SortedNodeNames() []string {
	names := make([]string, 0, len(g.Nodes))
	seen := map[string]bool{}
	for _, n := range g.Nodes {
		name := n.ID.Name.String()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NodeByID returns the node index holding id, for callers (the unit
// graph builder) that need to walk from a resolved package identity
// rather than incrementally building the graph.
func (g *Graph) NodeByID(id ident.PackageID) (NodeIndex, bool) {
	idx, ok := g.index[id.Key()]
	return idx, ok
}

// manifestDepKind converts a manifest dependency kind to the
// resolved-graph edge kind vocabulary.
func manifestDepKind(k manifest.DepKind) EdgeKind {
	switch k {
	case manifest.DepDevelopment:
		return EdgeDevelopment
	case manifest.DepBuild:
		return EdgeBuild
	default:
		return EdgeNormal
	}
}
