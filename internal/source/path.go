package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/manifest"
)

// PathSource resolves a single package rooted at a local filesystem
// directory. It has exactly one candidate: whatever version the
// manifest at Root declares.
type PathSource struct {
	Root string
}

// NewPathSource constructs a PathSource rooted at root.
func NewPathSource(root string) *PathSource {
	return &PathSource{Root: root}
}

func (p *PathSource) Query(ctx context.Context, dep DependencySpec) (QueryResult, error) {
	m, err := manifest.Load(p.Root)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: %s", ErrNotFound, err)
	}
	if dep.Name != "" && m.Name != dep.Name {
		return QueryResult{}, fmt.Errorf("%w: %s does not declare package %q", ErrNotFound, p.Root, dep.Name)
	}
	version, err := ident.ParseVersion(m.Version)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: %s", ErrIndexCorrupt, err)
	}
	if !dep.Requirement.Matches(version) {
		return QueryResult{Status: Ready}, nil
	}

	summary := Summary{
		ID: ident.PackageID{
			Name:    ident.Name(m.Name),
			Version: version,
			Source:  ident.NewPathSource(p.Root),
		},
		Features: featureNames(m),
	}
	for _, d := range m.Dependencies {
		summary.Dependencies = append(summary.Dependencies, SummaryDependency{
			Name:        d.EffectivePackageName(),
			Requirement: d.Requirement,
			Kind:        d.Kind.String(),
			Optional:    d.Optional,
			Platform:    d.Platform,
		})
	}
	return QueryResult{Status: Ready, Candidates: []Summary{summary}}, nil
}

func (p *PathSource) Poll(ctx context.Context, token string) (QueryResult, error) {
	// Path sources never return Pending, so there is never a token to
	// re-drive; Query already completed synchronously.
	return QueryResult{}, fmt.Errorf("%w: path source has no pending query %q", ErrNotFound, token)
}

func (p *PathSource) Download(ctx context.Context, pkg ident.PackageID) (string, error) {
	return p.Root, nil
}

func (p *PathSource) Update(ctx context.Context) error {
	return nil
}

// Fingerprint hashes every regular file under Root in deterministic path
// order, giving a content hash that changes whenever a tracked source
// file does, without requiring the package to be under version control.
func (p *PathSource) Fingerprint(ctx context.Context, pkg ident.PackageID) (string, error) {
	h := sha256.New()
	err := filepath.Walk(p.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "target" || info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(p.Root, path)
		if err != nil {
			return err
		}
		io.WriteString(h, rel)
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrIndexCorrupt, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (p *PathSource) Describe() string {
	return ident.NewPathSource(p.Root).Describe()
}

func featureNames(m *manifest.Manifest) map[string][]string {
	out := make(map[string][]string, len(m.Features))
	for name, values := range m.Features {
		raw := make([]string, 0, len(values))
		for _, v := range values {
			raw = append(raw, v.Raw)
		}
		out[name] = raw
	}
	return out
}
