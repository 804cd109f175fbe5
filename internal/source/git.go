package source

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/quarrybuild/quarry/internal/ident"
)

// GitSource resolves a package from a git repository at a fixed
// reference (branch, tag, or exact revision). Only the reference model
// and the Source interface are in scope; Download's actual clone/fetch
// is left as a documented stub.
type GitSource struct {
	URL     string
	RefKind ident.GitReferenceKind
	RefName string
}

// NewGitSource constructs a GitSource for the given reference.
func NewGitSource(url string, refKind ident.GitReferenceKind, refName string) *GitSource {
	return &GitSource{URL: url, RefKind: refKind, RefName: refName}
}

// resolveRev runs git ls-remote against URL to resolve RefName (or HEAD
// for the default branch) to a commit hash, in the manner the teacher's
// internal/git.go shells out to git and captures CombinedOutput.
func (g *GitSource) resolveRev(ctx context.Context) (string, error) {
	ref := g.RefName
	if ref == "" {
		ref = "HEAD"
	}
	cmd := exec.CommandContext(ctx, "git", "ls-remote", g.URL, ref)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: git ls-remote %s %s: %s", ErrNetwork, g.URL, ref, strings.TrimSpace(string(out)))
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: %s has no ref %q", ErrNotFound, g.URL, ref)
	}
	return fields[0], nil
}

func (g *GitSource) Query(ctx context.Context, dep DependencySpec) (QueryResult, error) {
	rev, err := g.resolveRev(ctx)
	if err != nil {
		return QueryResult{}, err
	}
	// The manifest at this revision is only known after Download; Query
	// reports a single candidate keyed by the resolved commit and leaves
	// version/dependency discovery to the caller after cloning.
	summary := Summary{
		ID: ident.PackageID{
			Name:   ident.Name(dep.Name),
			Source: ident.NewGitSource(g.URL, g.RefKind, g.RefName, rev),
		},
	}
	return QueryResult{Status: Ready, Candidates: []Summary{summary}}, nil
}

func (g *GitSource) Poll(ctx context.Context, token string) (QueryResult, error) {
	return QueryResult{}, fmt.Errorf("%w: git source has no pending query %q", ErrNotFound, token)
}

// Download clones the repository at the resolved revision into a local
// package root. Not implemented: only the source-id and reference model
// are in scope.
func (g *GitSource) Download(ctx context.Context, pkg ident.PackageID) (string, error) {
	return "", fmt.Errorf("%w: git clone", ErrNotImplemented)
}

func (g *GitSource) Update(ctx context.Context) error {
	_, err := g.resolveRev(ctx)
	return err
}

func (g *GitSource) Fingerprint(ctx context.Context, pkg ident.PackageID) (string, error) {
	return pkg.Source.GitResolvedAt, nil
}

func (g *GitSource) Describe() string {
	return ident.NewGitSource(g.URL, g.RefKind, g.RefName, "").Describe()
}
