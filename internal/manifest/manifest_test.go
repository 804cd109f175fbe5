package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_BasicPackage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName), `
[package]
name = "widget"
version = "1.2.3"
edition = "2024"

[dependencies]
serde = { version = "^1.0", features = ["derive"] }

[features]
default = ["tls"]
tls = ["dep:openssl"]

[dependencies.openssl]
version = "^0.10"
optional = true
`)
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), "// lib\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name != "widget" || m.Version != "1.2.3" {
		t.Fatalf("unexpected identity: %+v", m)
	}
	if len(m.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(m.Dependencies))
	}
	found := false
	for _, tgt := range m.Targets {
		if tgt.Kind == TargetLibrary {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an inferred library target, got %+v", m.Targets)
	}
	if len(m.Features["default"]) != 1 {
		t.Fatalf("expected default feature with one value")
	}
}

func TestLoad_MissingNameFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName), `
[package]
version = "1.0.0"
`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for missing package.name")
	}
}

func TestLoad_MalformedTOMLReportsPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName), "[package\nname = \"broken\"")
	_, err := Load(dir)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	var perr *ParseError
	if pe, ok := err.(*ParseError); ok {
		perr = pe
	}
	if perr == nil {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}
