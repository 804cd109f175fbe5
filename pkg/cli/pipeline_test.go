package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quarrybuild/quarry/internal/manifest"
)

func TestPackageTargets_FiltersByKind(t *testing.T) {
	m := &manifest.Manifest{
		Targets: []manifest.Target{
			{Kind: manifest.TargetLibrary, Name: "mypkg"},
			{Kind: manifest.TargetBinary, Name: "cli"},
			{Kind: manifest.TargetBinary, Name: "daemon"},
			{Kind: manifest.TargetBuildScript, Name: "build"},
		},
	}

	bins := packageTargets(m, manifest.TargetBinary)
	if len(bins) != 2 {
		t.Fatalf("got %d binary targets, want 2", len(bins))
	}
	for _, b := range bins {
		if b.Kind != manifest.TargetBinary {
			t.Fatalf("target %q has kind %v, want TargetBinary", b.Name, b.Kind)
		}
	}
}

func TestPackageTargets_NoMatchReturnsEmpty(t *testing.T) {
	m := &manifest.Manifest{Targets: []manifest.Target{{Kind: manifest.TargetLibrary, Name: "mypkg"}}}
	if got := packageTargets(m, manifest.TargetBenchmark); len(got) != 0 {
		t.Fatalf("got %d targets, want 0", len(got))
	}
}

func TestHostTriple_NonEmpty(t *testing.T) {
	if hostTriple() == "" {
		t.Fatal("hostTriple() returned an empty string")
	}
}

func TestFilepathWalkDirs_SkipsTargetAndGit(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"src", filepath.Join("src", "nested"), "target", ".git"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	var visited []string
	err := filepathWalkDirs(root, func(dir string) error {
		visited = append(visited, filepath.Base(dir))
		return nil
	})
	if err != nil {
		t.Fatalf("filepathWalkDirs: %v", err)
	}

	for _, skipped := range []string{"target", ".git"} {
		for _, v := range visited {
			if v == skipped {
				t.Fatalf("visited %q, expected it to be skipped", skipped)
			}
		}
	}

	found := false
	for _, v := range visited {
		if v == "nested" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected to visit src/nested, visited: %v", visited)
	}
}

func TestMustVersion_FallsBackOnInvalidInput(t *testing.T) {
	v := mustVersion("not-a-version")
	if v.String() != "0.0.0" {
		t.Fatalf("mustVersion fallback = %q, want 0.0.0", v.String())
	}
}
