package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is a root manifest plus every member manifest reachable from
// it, either via its members/exclude globs or transitively through
// path-dependencies of members that lie below the workspace root.
type Workspace struct {
	Root    *Manifest
	RootDir string
	Members map[string]*Manifest // keyed by package name
}

// findRoot walks upward from dir looking for a manifest that declares
// itself root (has a [workspace] table) or is pointed to by an
// intervening member's package.workspace key.
func findRoot(dir string) (string, error) {
	cur := dir
	for {
		candidate := filepath.Join(cur, ManifestFileName)
		if data, err := os.ReadFile(candidate); err == nil {
			m, err := Load(cur)
			if err != nil {
				return "", err
			}
			if m.WorkspaceRole == "root" {
				return cur, nil
			}
			if m.WorkspacePointer != "" {
				return filepath.Join(cur, m.WorkspacePointer), nil
			}
			_ = data
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("%w: searched upward from %s", ErrNoRoot, dir)
		}
		cur = parent
	}
}

// WorkspaceFrom constructs the workspace containing the package at dir:
// locates the root, enumerates members via globs, and transitively
// follows path-dependencies of members that lie below the workspace root.
func WorkspaceFrom(dir string) (*Workspace, error) {
	rootDir, err := findRoot(dir)
	if err != nil {
		// No workspace declaration anywhere in the ancestry: dir's own
		// manifest is a standalone single-package workspace.
		m, loadErr := Load(dir)
		if loadErr != nil {
			return nil, loadErr
		}
		return &Workspace{Root: m, RootDir: dir, Members: map[string]*Manifest{m.Name: m}}, nil
	}

	root, err := Load(rootDir)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{Root: root, RootDir: rootDir, Members: map[string]*Manifest{}}

	memberDirs, err := expandMemberGlobs(rootDir, root.WorkspaceMembers, root.WorkspaceExclude)
	if err != nil {
		return nil, err
	}
	pending := memberDirs
	visited := map[string]bool{}
	if root.WorkspaceRole == "root" && root.Name != "" {
		// A workspace root may itself carry a [package] table and act as
		// a member too.
		ws.Members[root.Name] = root
		visited[rootDir] = true
		for _, dep := range root.Dependencies {
			if dep.Source.Path == "" {
				continue
			}
			depDir := filepath.Join(rootDir, dep.Source.Path)
			if isBelow(rootDir, depDir) {
				pending = append(pending, depDir)
			}
		}
	}
	for len(pending) > 0 {
		memberDir := pending[0]
		pending = pending[1:]
		if visited[memberDir] {
			continue
		}
		visited[memberDir] = true

		m, err := Load(memberDir)
		if err != nil {
			return nil, err
		}
		if existing, ok := ws.Members[m.Name]; ok && existing != m {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateMember, m.Name)
		}
		ws.Members[m.Name] = m

		for _, dep := range m.Dependencies {
			if dep.Source.Path == "" {
				continue
			}
			depDir := filepath.Join(memberDir, dep.Source.Path)
			if !isBelow(rootDir, depDir) {
				continue
			}
			if !visited[depDir] {
				pending = append(pending, depDir)
			}
		}
	}

	return ws, nil
}

// isBelow reports whether candidate lies at or under root.
func isBelow(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || (len(rel) > 0 && rel[0] != '.' && !filepath.IsAbs(rel))
}

func expandMemberGlobs(rootDir string, members, exclude []string) ([]string, error) {
	excluded := map[string]bool{}
	for _, pattern := range exclude {
		matches, err := filepath.Glob(filepath.Join(rootDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: bad exclude glob %q: %s", ErrInvalidManifest, pattern, err)
		}
		for _, m := range matches {
			excluded[m] = true
		}
	}

	var dirs []string
	seen := map[string]bool{}
	for _, pattern := range members {
		matches, err := filepath.Glob(filepath.Join(rootDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: bad member glob %q: %s", ErrInvalidManifest, pattern, err)
		}
		for _, m := range matches {
			if excluded[m] || seen[m] {
				continue
			}
			if fi, err := os.Stat(filepath.Join(m, ManifestFileName)); err != nil || fi.IsDir() {
				continue
			}
			seen[m] = true
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

// Validate enforces the workspace-level invariants (duplicate member
// names are already rejected by WorkspaceFrom, since Members is keyed by
// name): no links value claimed twice, no optional dev-dependency,
// every [features] key a legal feature name, every feature reference
// resolving to a real dependency, and feature definitions containing no
// cycle.
func Validate(ws *Workspace) []error {
	var problems []error

	links := map[string]string{}
	for name, m := range ws.Members {
		if m.Links == "" {
			continue
		}
		if owner, ok := links[m.Links]; ok {
			problems = append(problems, fmt.Errorf("%w: %q claimed by both %s and %s", ErrDuplicateLinks, m.Links, owner, name))
			continue
		}
		links[m.Links] = name
	}

	for name, m := range ws.Members {
		depNames := make(map[string]bool, len(m.Dependencies))
		for _, d := range m.Dependencies {
			depNames[d.Key] = true
			if d.Kind == DepDevelopment && d.Optional {
				// A dev-dependency only ever builds for tests/benches run
				// in-place; there is no edge an optional one could be
				// conditionally absent from.
				problems = append(problems, fmt.Errorf("%w: %s: %s", ErrOptionalDevDep, name, d.Key))
			}
		}
		for feature, values := range m.Features {
			if !ValidFeatureName(feature) {
				problems = append(problems, fmt.Errorf("%w: %s: %q", ErrInvalidFeatureName, name, feature))
			}
			for _, v := range values {
				if v.Dep == "" {
					continue
				}
				if !depNames[v.Dep] {
					problems = append(problems, fmt.Errorf("%w: %s: feature %q references %q", ErrUnknownFeatureDep, name, feature, v.Dep))
				}
			}
		}
		if err := m.Features.validateAcyclic(); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", name, err))
		}
		if m.WorkspaceRole != "root" && len(m.Profiles) > len(DefaultProfiles()) {
			problems = append(problems, fmt.Errorf("member %s declares [profile] overrides; ignored outside the workspace root", name))
		}
	}

	return problems
}
