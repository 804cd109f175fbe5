// Package layout defines the on-disk conventions for the shared target
// directory and the package cache.
package layout

import "path/filepath"

// TargetDir is the conventional shared build output directory name.
const TargetDir = "target"

// Layout resolves the subdirectories under one profile's build output.
type Layout struct {
	Root    string // workspace root
	Profile string
}

// New returns a Layout rooted at workspaceRoot/target for the given
// profile name ("dev", "release", or a custom profile).
func New(workspaceRoot, profile string) Layout {
	return Layout{Root: workspaceRoot, Profile: profile}
}

// ProfileDir is target/<profile>.
func (l Layout) ProfileDir() string {
	return filepath.Join(l.Root, TargetDir, l.Profile)
}

// Build is target/<profile>/build, holding each package's compiled
// build-script program (the script's OUT_DIR is BuildScriptDir).
func (l Layout) Build() string {
	return filepath.Join(l.ProfileDir(), "build")
}

// BuildScriptDir is the OUT_DIR for one build-script invocation, keyed by
// a hash of the owning package id so repeated invocations of the same
// package's script reuse the same directory.
func (l Layout) BuildScriptDir(pkgidHash string) string {
	return filepath.Join(l.ProfileDir(), "build-scripts", pkgidHash)
}

// Deps is target/<profile>/deps, where compiled artifacts land before
// being linked or copied to their final location.
func (l Layout) Deps() string {
	return filepath.Join(l.ProfileDir(), "deps")
}

// Fingerprints is target/<profile>/.fingerprint.
func (l Layout) Fingerprints() string {
	return filepath.Join(l.ProfileDir(), ".fingerprint")
}

// Incremental is target/<profile>/incremental, the compiler's own
// incremental-compilation cache directory.
func (l Layout) Incremental() string {
	return filepath.Join(l.ProfileDir(), "incremental")
}

// Examples is target/<profile>/examples.
func (l Layout) Examples() string {
	return filepath.Join(l.ProfileDir(), "examples")
}

// Doc is target/doc, shared across profiles since documentation output
// is not profile-specific.
func (l Layout) Doc() string {
	return filepath.Join(l.Root, TargetDir, "doc")
}

// RootLockPath is the advisory lock marker guarding concurrent access to
// the whole target directory.
func (l Layout) RootLockPath() string {
	return filepath.Join(l.Root, TargetDir, ".quarry-lock")
}

// Dirs returns every directory New's profile needs to exist before a
// build can proceed.
func (l Layout) Dirs() []string {
	return []string{l.Build(), l.Deps(), l.Fingerprints(), l.Incremental(), l.Examples()}
}

// PackageCacheLockPath is the advisory lock marker guarding the shared,
// cross-workspace package-download cache at cacheRoot.
func PackageCacheLockPath(cacheRoot string) string {
	return filepath.Join(cacheRoot, ".quarry-cache-lock")
}
