package fingerprint

import (
	"testing"
)

func TestHash_StableUnderReordering(t *testing.T) {
	a := &Fingerprint{Features: []string{"b", "a"}, DepFingerprints: []string{"y", "x"}}
	b := &Fingerprint{Features: []string{"a", "b"}, DepFingerprints: []string{"x", "y"}}
	if a.Hash() != b.Hash() {
		t.Fatalf("expected hash to be order-independent, got %s vs %s", a.Hash(), b.Hash())
	}
}

func TestHash_ChangesWithContent(t *testing.T) {
	a := &Fingerprint{ToolchainVersion: "1.0"}
	b := &Fingerprint{ToolchainVersion: "1.1"}
	if a.Hash() == b.Hash() {
		t.Fatalf("expected different toolchain versions to hash differently")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	fp := &Fingerprint{ToolchainVersion: "1.0", Features: []string{"default"}}
	if err := Save(dir, "dev", "abc123", fp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(dir, "dev", "abc123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Hash() != fp.Hash() {
		t.Fatalf("round-tripped fingerprint hash mismatch")
	}
}

func TestDirty_NilCacheIsDirty(t *testing.T) {
	if !Dirty(nil, &Fingerprint{}) {
		t.Fatalf("expected nil cached fingerprint to be dirty")
	}
}

func TestDirty_UnchangedIsClean(t *testing.T) {
	fp := &Fingerprint{ToolchainVersion: "1.0", LocalFiles: []LocalFile{{Path: "a.rs", MTime: 1, Size: 10}}}
	fresh := &Fingerprint{ToolchainVersion: "1.0", LocalFiles: []LocalFile{{Path: "a.rs", MTime: 1, Size: 10}}}
	if Dirty(fp, fresh) {
		t.Fatalf("expected identical fingerprints to be clean")
	}
}

func TestDirty_ChangedMTimeIsDirty(t *testing.T) {
	fp := &Fingerprint{LocalFiles: []LocalFile{{Path: "a.rs", MTime: 1, Size: 10}}}
	fresh := &Fingerprint{LocalFiles: []LocalFile{{Path: "a.rs", MTime: 2, Size: 10}}}
	if !Dirty(fp, fresh) {
		t.Fatalf("expected changed mtime to mark the unit dirty")
	}
}
