package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/quarrybuild/quarry/internal/ident"
)

func writePathFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	manifestBody := "[package]\nname = \"widget\"\nversion = \"1.2.3\"\n"
	if err := os.WriteFile(filepath.Join(dir, "quarry.toml"), []byte(manifestBody), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "lib.rs"), []byte("fn main() {}"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return dir
}

func TestPathSource_Query(t *testing.T) {
	dir := writePathFixture(t)
	src := NewPathSource(dir)

	req, err := ident.ParseRequirement("^1.0")
	if err != nil {
		t.Fatalf("ParseRequirement: %v", err)
	}
	result, err := src.Query(context.Background(), DependencySpec{Name: "widget", Requirement: req})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if result.Status != Ready {
		t.Fatalf("expected Ready status")
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if result.Candidates[0].ID.Name != "widget" {
		t.Fatalf("unexpected candidate name: %+v", result.Candidates[0])
	}
}

func TestPathSource_Fingerprint_StableAcrossCalls(t *testing.T) {
	dir := writePathFixture(t)
	src := NewPathSource(dir)

	id := ident.PackageID{Name: "widget"}
	a, err := src.Fingerprint(context.Background(), id)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, err := src.Fingerprint(context.Background(), id)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if a != b {
		t.Fatalf("expected stable fingerprint, got %q then %q", a, b)
	}
}
