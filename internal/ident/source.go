package ident

import "fmt"

// SourceKind tags the variant held by a SourceID.
type SourceKind int

const (
	// SourceRegistry identifies a package pulled from a registry index.
	SourceRegistry SourceKind = iota
	// SourcePath identifies a package living at a local filesystem path.
	SourcePath
	// SourceGit identifies a package fetched from a git repository.
	SourceGit
)

func (k SourceKind) String() string {
	switch k {
	case SourceRegistry:
		return "registry"
	case SourcePath:
		return "path"
	case SourceGit:
		return "git"
	default:
		return "unknown"
	}
}

// GitReferenceKind is one of default-branch, named-branch, tag, or exact-rev.
type GitReferenceKind int

const (
	GitDefaultBranch GitReferenceKind = iota
	GitBranch
	GitTag
	GitRev
)

// SourceID uniquely describes where a package came from. Equality is
// structural: two packages with identical name+version from different
// sources are distinct.
type SourceID struct {
	Kind SourceKind

	// Registry fields.
	RegistryURL  string
	IndexHash    string

	// Path fields.
	PathRoot string

	// Git fields.
	GitURL        string
	GitRefKind    GitReferenceKind
	GitRefName    string // branch, tag or rev name, empty for default-branch
	GitResolvedAt string // resolved commit, empty until fetched
}

// NewRegistrySource builds a registry SourceID.
func NewRegistrySource(url, indexHash string) SourceID {
	return SourceID{Kind: SourceRegistry, RegistryURL: url, IndexHash: indexHash}
}

// NewPathSource builds a local-path SourceID.
func NewPathSource(root string) SourceID {
	return SourceID{Kind: SourcePath, PathRoot: root}
}

// NewGitSource builds a git SourceID.
func NewGitSource(url string, refKind GitReferenceKind, refName, resolvedCommit string) SourceID {
	return SourceID{
		Kind:          SourceGit,
		GitURL:        url,
		GitRefKind:    refKind,
		GitRefName:    refName,
		GitResolvedAt: resolvedCommit,
	}
}

// Equal reports structural equality between two source ids.
func (s SourceID) Equal(other SourceID) bool {
	return s == other
}

// Describe returns the stable string used in the lock file.
func (s SourceID) Describe() string {
	switch s.Kind {
	case SourceRegistry:
		if s.IndexHash != "" {
			return fmt.Sprintf("registry+%s#%s", s.RegistryURL, s.IndexHash)
		}
		return fmt.Sprintf("registry+%s", s.RegistryURL)
	case SourcePath:
		return fmt.Sprintf("path+%s", s.PathRoot)
	case SourceGit:
		switch s.GitRefKind {
		case GitBranch:
			return fmt.Sprintf("git+%s?branch=%s#%s", s.GitURL, s.GitRefName, s.GitResolvedAt)
		case GitTag:
			return fmt.Sprintf("git+%s?tag=%s#%s", s.GitURL, s.GitRefName, s.GitResolvedAt)
		case GitRev:
			return fmt.Sprintf("git+%s?rev=%s#%s", s.GitURL, s.GitRefName, s.GitResolvedAt)
		default:
			return fmt.Sprintf("git+%s#%s", s.GitURL, s.GitResolvedAt)
		}
	default:
		return "unknown"
	}
}
