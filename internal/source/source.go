// Package source implements the pluggable package-source abstraction:
// registries, local paths, and git repositories, each exposing the same
// query/download/update/fingerprint/describe capability set to the
// resolver.
package source

import (
	"context"
	"errors"

	"github.com/quarrybuild/quarry/internal/ident"
)

// Failure classes a Source can return, matched with errors.Is.
var (
	ErrNotFound       = errors.New("package not found")
	ErrNetwork        = errors.New("network error")
	ErrIndexCorrupt   = errors.New("source index corrupt")
	ErrYanked         = errors.New("version yanked")
	ErrNotImplemented = errors.New("not implemented")
)

// Summary is one candidate a source's Query returns: enough metadata for
// the resolver to decide whether to select it without downloading it.
type Summary struct {
	ID           ident.PackageID
	Dependencies []SummaryDependency
	Features     map[string][]string
	Yanked       bool
}

// SummaryDependency is a dependency edge as declared by a candidate's
// manifest, before it has been downloaded.
type SummaryDependency struct {
	Name        string
	Requirement string
	Kind        string // "normal", "development", "build"
	Optional    bool
	Platform    string
}

// DependencySpec names the package and requirement a Query call resolves
// candidates for.
type DependencySpec struct {
	Name        string
	Requirement ident.Requirement
}

// Status is the ready/pending discipline sources use to report whether a
// query has completed or is still in flight, letting the resolver
// suspend and later re-drive pending queries (used for registries with
// asynchronous network I/O).
type Status int

const (
	Ready Status = iota
	Pending
)

// QueryResult carries either a completed candidate list or a pending
// token the caller polls again later via Source.Poll.
type QueryResult struct {
	Status     Status
	Candidates []Summary
	Token      string
}

// Source is the capability set every package origin implements.
type Source interface {
	// Query returns candidate summaries for dep, intersected with its
	// version requirement.
	Query(ctx context.Context, dep DependencySpec) (QueryResult, error)
	// Poll re-drives a Pending query previously returned by Query.
	Poll(ctx context.Context, token string) (QueryResult, error)
	// Download materializes pkg's package root on local disk.
	Download(ctx context.Context, pkg ident.PackageID) (string, error)
	// Update refreshes the index or fetches upstream changes.
	Update(ctx context.Context) error
	// Fingerprint returns a content hash for pkg, used to detect registry
	// forgery and for lock-file verification.
	Fingerprint(ctx context.Context, pkg ident.PackageID) (string, error)
	// Describe returns the stable string used in the lock file.
	Describe() string
}
