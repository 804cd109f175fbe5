package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/manifest"
	"github.com/quarrybuild/quarry/internal/source"
)

// fakeRegistry is an in-memory source.Source backed by a fixed
// candidate list per package name, used to drive the solver past
// seedRoots into commitCandidate without touching a real registry.
type fakeRegistry struct {
	candidates map[string][]source.Summary
}

func (f *fakeRegistry) Query(ctx context.Context, dep source.DependencySpec) (source.QueryResult, error) {
	var matched []source.Summary
	for _, c := range f.candidates[dep.Name] {
		if dep.Requirement.Matches(c.ID.Version) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return source.QueryResult{}, source.ErrNotFound
	}
	return source.QueryResult{Status: source.Ready, Candidates: matched}, nil
}

func (f *fakeRegistry) Poll(ctx context.Context, token string) (source.QueryResult, error) {
	return source.QueryResult{}, source.ErrNotFound
}

func (f *fakeRegistry) Download(ctx context.Context, pkg ident.PackageID) (string, error) {
	return "", source.ErrNotImplemented
}

func (f *fakeRegistry) Update(ctx context.Context) error { return nil }

func (f *fakeRegistry) Fingerprint(ctx context.Context, pkg ident.PackageID) (string, error) {
	return "", source.ErrNotImplemented
}

func (f *fakeRegistry) Describe() string { return "fake-registry" }

type fixedResolver struct{ src source.Source }

func (r fixedResolver) SourceFor(spec manifest.DepSource) (source.Source, error) {
	return r.src, nil
}

func registryID(t *testing.T, name, version string) ident.PackageID {
	t.Helper()
	n, err := ident.ParseName(name)
	if err != nil {
		t.Fatalf("ParseName(%q): %v", name, err)
	}
	v, err := ident.ParseVersion(version)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", version, err)
	}
	return ident.PackageID{Name: n, Version: v, Source: ident.NewRegistrySource("fake://registry", "")}
}

func writeMember(t *testing.T, dir, name, version string) {
	t.Helper()
	content := "[package]\nname = \"" + name + "\"\nversion = \"" + version + "\"\n"
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifest.ManifestFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "lib.rs"), nil, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
}

func TestSeedRoots_SingleMemberNoDeps(t *testing.T) {
	dir := t.TempDir()
	writeMember(t, dir, "widget", "1.0.0")

	ws, err := manifest.WorkspaceFrom(dir)
	if err != nil {
		t.Fatalf("WorkspaceFrom: %v", err)
	}

	graph, err := Resolve(context.Background(), Input{Workspace: ws})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(graph.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d: %+v", len(graph.Nodes), graph.Nodes)
	}
	if graph.Nodes[0].ID.Name.String() != "widget" {
		t.Fatalf("unexpected root node: %+v", graph.Nodes[0])
	}
}

func TestResolve_WorkspaceWithTwoGlobMembers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, manifest.ManifestFileName), `
[workspace]
members = ["crates/*"]
`)
	writeMember(t, filepath.Join(root, "crates", "alpha"), "alpha", "0.1.0")
	writeMember(t, filepath.Join(root, "crates", "beta"), "beta", "0.1.0")

	ws, err := manifest.WorkspaceFrom(filepath.Join(root, "crates", "alpha"))
	if err != nil {
		t.Fatalf("WorkspaceFrom: %v", err)
	}

	graph, err := Resolve(context.Background(), Input{Workspace: ws})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes (alpha, beta), got %d", len(graph.Nodes))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// TestCommitCandidate_HonorsCandidateOwnFeatureTable exercises the
// resolved, transitive (non-root) path through commitCandidate: the
// member depends on registry package "net", which declares "vendored"
// as an optional dependency gated behind its own "tls" feature, not
// requested by anything. It must not be activated.
func TestCommitCandidate_HonorsCandidateOwnFeatureTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, manifest.ManifestFileName), `
[package]
name = "widget"
version = "1.0.0"

[dependencies]
net = { version = "^2.0" }
`)
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), "")

	ws, err := manifest.WorkspaceFrom(dir)
	if err != nil {
		t.Fatalf("WorkspaceFrom: %v", err)
	}

	netID := registryID(t, "net", "2.3.0")
	registry := &fakeRegistry{candidates: map[string][]source.Summary{
		"net": {{
			ID: netID,
			Dependencies: []source.SummaryDependency{
				{Name: "vendored-tls", Requirement: "^1.0", Optional: true},
			},
			Features: map[string][]string{
				"tls": {"dep:vendored-tls"},
			},
		}},
	}}

	graph, err := Resolve(context.Background(), Input{Workspace: ws, Sources: fixedResolver{src: registry}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, n := range graph.Nodes {
		if n.ID.Name.String() == "vendored-tls" {
			t.Fatalf("expected vendored-tls to stay inactive (tls never requested), got node %+v", n)
		}
	}
}

// TestCommitCandidate_DropsTransitiveDevDependency exercises the dev-edge
// filter: the resolved candidate "net" declares a dev-dependency that
// must never enter the graph, since dev edges only ever originate at a
// workspace member.
func TestCommitCandidate_DropsTransitiveDevDependency(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, manifest.ManifestFileName), `
[package]
name = "widget"
version = "1.0.0"

[dependencies]
net = { version = "^2.0" }
`)
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), "")

	ws, err := manifest.WorkspaceFrom(dir)
	if err != nil {
		t.Fatalf("WorkspaceFrom: %v", err)
	}

	netID := registryID(t, "net", "2.3.0")
	registry := &fakeRegistry{candidates: map[string][]source.Summary{
		"net": {{
			ID: netID,
			Dependencies: []source.SummaryDependency{
				{Name: "test-harness", Requirement: "^1.0", Kind: "development"},
			},
		}},
	}}

	graph, err := Resolve(context.Background(), Input{Workspace: ws, Sources: fixedResolver{src: registry}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, n := range graph.Nodes {
		if n.ID.Name.String() == "test-harness" {
			t.Fatalf("expected net's own dev-dependency to be dropped, got node %+v", n)
		}
	}
}
