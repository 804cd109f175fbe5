package manifest

import (
	"errors"
	"path/filepath"
	"testing"
)

func writeWorkspaceFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ManifestFileName), `
[workspace]
members = ["crates/*"]
`)
	writeFile(t, filepath.Join(root, "crates", "alpha", ManifestFileName), `
[package]
name = "alpha"
version = "0.1.0"

[dependencies]
beta = { path = "../beta" }
`)
	writeFile(t, filepath.Join(root, "crates", "alpha", "src", "lib.rs"), "")
	writeFile(t, filepath.Join(root, "crates", "beta", ManifestFileName), `
[package]
name = "beta"
version = "0.1.0"
`)
	writeFile(t, filepath.Join(root, "crates", "beta", "src", "lib.rs"), "")
	return root
}

func TestWorkspaceFrom_EnumeratesMembers(t *testing.T) {
	root := writeWorkspaceFixture(t)

	ws, err := WorkspaceFrom(filepath.Join(root, "crates", "alpha"))
	if err != nil {
		t.Fatalf("WorkspaceFrom: %v", err)
	}
	if ws.RootDir != root {
		t.Fatalf("RootDir = %q, want %q", ws.RootDir, root)
	}
	if _, ok := ws.Members["alpha"]; !ok {
		t.Fatalf("expected alpha member, got %v", ws.Members)
	}
	if _, ok := ws.Members["beta"]; !ok {
		t.Fatalf("expected beta member, got %v", ws.Members)
	}
}

func TestWorkspaceFrom_StandaloneHasNoRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName), `
[package]
name = "solo"
version = "0.1.0"
`)
	ws, err := WorkspaceFrom(dir)
	if err != nil {
		t.Fatalf("WorkspaceFrom: %v", err)
	}
	if len(ws.Members) != 1 {
		t.Fatalf("expected exactly one member, got %d", len(ws.Members))
	}
}

func TestValidate_DetectsDuplicateLinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ManifestFileName), `
[workspace]
members = ["a", "b"]
`)
	writeFile(t, filepath.Join(root, "a", ManifestFileName), `
[package]
name = "a"
version = "0.1.0"
links = "native"
`)
	writeFile(t, filepath.Join(root, "b", ManifestFileName), `
[package]
name = "b"
version = "0.1.0"
links = "native"
`)

	ws, err := WorkspaceFrom(root)
	if err != nil {
		t.Fatalf("WorkspaceFrom: %v", err)
	}
	problems := Validate(ws)
	if len(problems) == 0 {
		t.Fatalf("expected duplicate links to be reported")
	}
}

func TestValidate_RejectsOptionalDevDependency(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName), `
[package]
name = "widget"
version = "0.1.0"

[dev-dependencies]
harness = { version = "^1.0", optional = true }
`)

	ws, err := WorkspaceFrom(dir)
	if err != nil {
		t.Fatalf("WorkspaceFrom: %v", err)
	}
	problems := Validate(ws)
	var found bool
	for _, p := range problems {
		if errors.Is(p, ErrOptionalDevDep) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ErrOptionalDevDep, got %v", problems)
	}
}

func TestValidate_RejectsSlashInFeatureName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName), `
[package]
name = "widget"
version = "0.1.0"

[dependencies]
serde = { version = "^1.0" }

[features]
"serde/derive" = ["serde"]
`)

	ws, err := WorkspaceFrom(dir)
	if err != nil {
		t.Fatalf("WorkspaceFrom: %v", err)
	}
	problems := Validate(ws)
	var found bool
	for _, p := range problems {
		if errors.Is(p, ErrInvalidFeatureName) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ErrInvalidFeatureName, got %v", problems)
	}
}
