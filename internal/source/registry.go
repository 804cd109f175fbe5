package source

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/quarrybuild/quarry/internal/ident"
)

// RegistryFetcher is implemented by the wire-protocol client that talks
// to a concrete registry. It is deliberately minimal: the registry wire
// protocol itself is out of scope, only this seam is.
type RegistryFetcher interface {
	FetchCandidates(ctx context.Context, name string) ([]Summary, string, error)
}

// RegistrySource resolves packages against a remote index, caching query
// results in a local sqlite database so repeat invocations against an
// unchanged index avoid re-fetching.
type RegistrySource struct {
	URL     string
	Fetcher RegistryFetcher

	mu sync.Mutex
	db *sql.DB
}

// NewRegistrySource opens (creating if necessary) the sqlite cache at
// cachePath and returns a RegistrySource backed by fetcher.
func NewRegistrySource(url, cachePath string, fetcher RegistryFetcher) (*RegistrySource, error) {
	db, err := sql.Open("sqlite", cachePath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening registry cache %s: %s", ErrIndexCorrupt, cachePath, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candidates (
			package_name TEXT NOT NULL,
			index_hash   TEXT NOT NULL,
			payload      TEXT NOT NULL,
			PRIMARY KEY (package_name)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initializing registry cache schema: %s", ErrIndexCorrupt, err)
	}
	return &RegistrySource{URL: url, Fetcher: fetcher, db: db}, nil
}

// Close releases the underlying sqlite handle.
func (r *RegistrySource) Close() error {
	return r.db.Close()
}

func (r *RegistrySource) Query(ctx context.Context, dep DependencySpec) (QueryResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var payload, indexHash string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload, index_hash FROM candidates WHERE package_name = ?`, dep.Name).
		Scan(&payload, &indexHash)
	if err == nil {
		var all []Summary
		if jerr := json.Unmarshal([]byte(payload), &all); jerr == nil {
			return QueryResult{Status: Ready, Candidates: filterMatching(all, dep)}, nil
		}
	} else if err != sql.ErrNoRows {
		return QueryResult{}, fmt.Errorf("%w: reading registry cache: %s", ErrIndexCorrupt, err)
	}

	if r.Fetcher == nil {
		return QueryResult{}, fmt.Errorf("%w: no registry fetcher configured for %s", ErrNetwork, r.URL)
	}
	all, hash, ferr := r.Fetcher.FetchCandidates(ctx, dep.Name)
	if ferr != nil {
		return QueryResult{}, fmt.Errorf("%w: %s", ErrNetwork, ferr)
	}

	encoded, jerr := json.Marshal(all)
	if jerr == nil {
		_, _ = r.db.ExecContext(ctx,
			`INSERT INTO candidates (package_name, index_hash, payload) VALUES (?, ?, ?)
			 ON CONFLICT(package_name) DO UPDATE SET index_hash = excluded.index_hash, payload = excluded.payload`,
			dep.Name, hash, string(encoded))
	}

	return QueryResult{Status: Ready, Candidates: filterMatching(all, dep)}, nil
}

func filterMatching(all []Summary, dep DependencySpec) []Summary {
	var out []Summary
	for _, s := range all {
		if dep.Requirement.Matches(s.ID.Version) {
			out = append(out, s)
		}
	}
	return out
}

func (r *RegistrySource) Poll(ctx context.Context, token string) (QueryResult, error) {
	return QueryResult{}, fmt.Errorf("%w: registry source has no pending query %q", ErrNotFound, token)
}

func (r *RegistrySource) Download(ctx context.Context, pkg ident.PackageID) (string, error) {
	return "", fmt.Errorf("%w: registry download", ErrNotImplemented)
}

// Update invalidates the cache, forcing the next Query to re-fetch.
func (r *RegistrySource) Update(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.ExecContext(ctx, `DELETE FROM candidates`)
	if err != nil {
		return fmt.Errorf("%w: clearing registry cache: %s", ErrIndexCorrupt, err)
	}
	return nil
}

// Fingerprint hashes pkg's id key only. Registry download is not
// implemented, so no package content is hashed and a changed or forged
// package with the same id yields the same fingerprint.
func (r *RegistrySource) Fingerprint(ctx context.Context, pkg ident.PackageID) (string, error) {
	h := sha256.New()
	h.Write([]byte(pkg.Key()))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (r *RegistrySource) Describe() string {
	return ident.NewRegistrySource(r.URL, "").Describe()
}

// CachePath returns the conventional sqlite cache file location under a
// package-cache root directory for a given registry URL.
func CachePath(cacheRoot, registryURL string) string {
	h := sha256.Sum256([]byte(registryURL))
	return filepath.Join(cacheRoot, "registry-cache", hex.EncodeToString(h[:8])+".sqlite")
}
