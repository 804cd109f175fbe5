package lockfile

import (
	"testing"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	lf := &Lockfile{
		Packages: []Package{
			{Name: "zeta", Version: "1.0.0", Source: "registry+https://example.com"},
			{Name: "alpha", Version: "2.0.0", Source: "registry+https://example.com", Dependencies: []string{"zeta 1.0.0 registry+https://example.com"}},
		},
	}
	if err := Save(dir, lf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists(dir) {
		t.Fatalf("expected lock file to exist after Save")
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version != FormatVersion {
		t.Fatalf("Version = %d, want %d", loaded.Version, FormatVersion)
	}
	if len(loaded.Packages) != 2 {
		t.Fatalf("expected 2 packages, got %d", len(loaded.Packages))
	}
	if loaded.Packages[0].Name != "alpha" {
		t.Fatalf("expected sorted order, got %+v", loaded.Packages)
	}
}

func TestCovers(t *testing.T) {
	lf := &Lockfile{Packages: []Package{
		{Name: "a", Version: "1.0.0", Source: "registry+x"},
	}}
	covered := []Package{{Name: "a", Version: "1.0.0", Source: "registry+x"}}
	if !lf.Covers(covered) {
		t.Fatalf("expected lock to cover required set")
	}
	missing := []Package{{Name: "b", Version: "1.0.0", Source: "registry+x"}}
	if lf.Covers(missing) {
		t.Fatalf("expected lock not to cover missing package")
	}
}
