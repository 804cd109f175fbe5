// Package fingerprint computes and persists the per-unit cache key the
// scheduler uses to decide whether a compilation unit needs rebuilding.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LocalFile is one source file (or build-script-declared rerun-if-changed
// path) the fingerprint was computed against, with the mtime/size
// observed at compute time.
type LocalFile struct {
	Path  string `json:"path"`
	MTime int64  `json:"mtime"`
	Size  int64  `json:"size"`
}

// EnvVar is one environment variable a unit's build script declared a
// dependency on, with the value observed at compute time.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Fingerprint is the full set of inputs covering one compilation unit.
type Fingerprint struct {
	ToolchainVersion string      `json:"toolchain_version"`
	ProfileHash      string      `json:"profile_hash"`
	Features         []string    `json:"features"`
	TargetTriple     string      `json:"target_triple"`
	HostTriple       string      `json:"host_triple"`
	Linker           string      `json:"linker,omitempty"`
	CompilerFlags    []string    `json:"compilerflags,omitempty"`
	DepFingerprints  []string    `json:"dep_fingerprints"`
	LocalFiles       []LocalFile `json:"local_files,omitempty"`
	EnvVars          []EnvVar    `json:"env_vars,omitempty"`
}

// normalize sorts the slices that must not affect the hash by ordering
// alone, so two logically identical fingerprints always hash equal.
func (f *Fingerprint) normalize() {
	sort.Strings(f.Features)
	sort.Strings(f.DepFingerprints)
	sort.Strings(f.CompilerFlags)
	sort.Slice(f.LocalFiles, func(i, j int) bool { return f.LocalFiles[i].Path < f.LocalFiles[j].Path })
	sort.Slice(f.EnvVars, func(i, j int) bool { return f.EnvVars[i].Name < f.EnvVars[j].Name })
}

// Hash returns the stable content hash used as the unit's cache key and
// as the filename fragment under .fingerprint/.
func (f *Fingerprint) Hash() string {
	f.normalize()
	data, _ := json.Marshal(f)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Path returns the conventional on-disk location of a unit's persisted
// fingerprint file.
func Path(targetDir, profile, unitHash string) string {
	return filepath.Join(targetDir, profile, ".fingerprint", unitHash+".json")
}

// Load reads a persisted fingerprint, returning os.IsNotExist-detectable
// errors for a cache miss.
func Load(targetDir, profile, unitHash string) (*Fingerprint, error) {
	data, err := os.ReadFile(Path(targetDir, profile, unitHash))
	if err != nil {
		return nil, err
	}
	var fp Fingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil, fmt.Errorf("fingerprint: corrupt cache entry %s: %w", unitHash, err)
	}
	return &fp, nil
}

// Save persists fp for unitHash, writing to a temp file in the same
// directory and renaming into place so a crash mid-write never leaves a
// truncated fingerprint that Load would misinterpret as valid.
func Save(targetDir, profile, unitHash string, fp *Fingerprint) error {
	path := Path(targetDir, profile, unitHash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("fingerprint: creating cache dir: %w", err)
	}

	data, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("fingerprint: marshaling %s: %w", unitHash, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".fingerprint.*.tmp")
	if err != nil {
		return fmt.Errorf("fingerprint: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fingerprint: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fingerprint: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fingerprint: installing %s: %w", unitHash, err)
	}
	return nil
}

// Dirty reports whether a unit needs rebuilding: true when no cached
// fingerprint exists, the hash differs, or any local file / env var has
// observably changed since it was recorded.
func Dirty(cached *Fingerprint, fresh *Fingerprint) bool {
	if cached == nil {
		return true
	}
	if cached.Hash() != fresh.Hash() {
		return true
	}
	for i, lf := range cached.LocalFiles {
		if i >= len(fresh.LocalFiles) {
			return true
		}
		if lf.Path != fresh.LocalFiles[i].Path || lf.MTime != fresh.LocalFiles[i].MTime || lf.Size != fresh.LocalFiles[i].Size {
			return true
		}
	}
	return false
}

// StatLocalFile builds a LocalFile record from the current on-disk
// state of path, used both when computing a fresh fingerprint and when
// revalidating a cached one against the filesystem.
func StatLocalFile(path string) (LocalFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, err
	}
	return LocalFile{Path: path, MTime: fi.ModTime().UnixNano(), Size: fi.Size()}, nil
}
