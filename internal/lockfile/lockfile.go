// Package lockfile reads and writes quarry.lock, the stable serialized
// form of a resolved dependency graph.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

const (
	FileName      = "quarry.lock"
	FormatVersion = 1
)

// Package is one locked package entry.
type Package struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source,omitempty"`
	Checksum     string   `toml:"checksum,omitempty"`
	Dependencies []string `toml:"dependencies,omitempty"`
}

// Patch records a [patch] source entry that was declared but never used
// during resolution, kept so the next resolution can still consider it
// without a redundant network round-trip to notice it's unused again.
type Patch struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Source  string `toml:"source"`
}

// Lockfile is the root document written to quarry.lock.
type Lockfile struct {
	Version      int       `toml:"version"`
	Packages     []Package `toml:"package"`
	UnusedPatch  []Patch   `toml:"patch,omitempty"`
}

// Key returns the (name, version, source) triple used both for sorting
// and for lookup when diffing against a freshly resolved graph.
func (p Package) Key() string {
	return fmt.Sprintf("%s %s %s", p.Name, p.Version, p.Source)
}

// sort orders packages by (name, version, source) for stable, diffable
// serialization.
func (l *Lockfile) sort() {
	sort.Slice(l.Packages, func(i, j int) bool {
		a, b := l.Packages[i], l.Packages[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.Source < b.Source
	})
	for i := range l.Packages {
		sort.Strings(l.Packages[i].Dependencies)
	}
	sort.Slice(l.UnusedPatch, func(i, j int) bool {
		return l.UnusedPatch[i].Name < l.UnusedPatch[j].Name
	})
}

// Load reads and parses quarry.lock from the given directory. A missing
// file is reported via os.IsNotExist on the returned error.
func Load(dir string) (*Lockfile, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	var lf Lockfile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &lf, nil
}

// Exists reports whether a lock file is present in dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

// Save writes the lock file atomically: encode to a temp file in the
// same directory, then rename into place, so a crash mid-write never
// leaves a truncated quarry.lock behind.
func Save(dir string, lf *Lockfile) error {
	lf.sort()
	if lf.Version == 0 {
		lf.Version = FormatVersion
	}

	data, err := toml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", FileName, err)
	}

	target := filepath.Join(dir, FileName)
	tmp, err := os.CreateTemp(dir, ".quarry.lock.*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp lock file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp lock file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("failed to install %s: %w", FileName, err)
	}
	return nil
}

// Covers reports whether the lock file already contains an entry for
// every (name, version, source) triple in required, with a version the
// caller has already checked for satisfaction; used to decide whether a
// resolution can be skipped entirely.
func (l *Lockfile) Covers(required []Package) bool {
	have := make(map[string]bool, len(l.Packages))
	for _, p := range l.Packages {
		have[p.Key()] = true
	}
	for _, r := range required {
		if !have[r.Key()] {
			return false
		}
	}
	return true
}

// Mode controls how a divergence between the lock file and a fresh
// resolution is handled.
type Mode int

const (
	// ModeNormal resolves normally and rewrites the lock file on divergence.
	ModeNormal Mode = iota
	// ModeLocked fails if the resolver output would differ from the lock.
	ModeLocked
	// ModeFrozen forbids network I/O entirely; the lock must already cover
	// every requirement.
	ModeFrozen
)

// ErrDivergence is returned under ModeLocked when the freshly resolved
// graph does not match the existing lock file.
var ErrDivergence = fmt.Errorf("lock file does not match resolved dependencies")
