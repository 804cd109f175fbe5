package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, contents string) {
	t.Helper()
	confDir := filepath.Join(dir, ConfigDirName)
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(confDir, ConfigFileName), []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestResolve_DefaultsOnly(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Resolve(dir, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, ok := cfg.Get("build.jobs"); !ok || v != "0" {
		t.Fatalf("build.jobs = %q, %v, want 0, true", v, ok)
	}
}

func TestResolve_AncestorOverridesDefault(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, "[build]\njobs = 4\n")

	sub := filepath.Join(root, "pkg", "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	cfg, err := Resolve(sub, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := cfg.Get("build.jobs"); v != "4" {
		t.Fatalf("build.jobs = %q, want 4", v)
	}
}

func TestResolve_CLIOverridesAncestor(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, "[build]\njobs = 4\n")

	cfg, err := Resolve(root, []string{"build.jobs=8"}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := cfg.Get("build.jobs"); v != "8" {
		t.Fatalf("build.jobs = %q, want 8", v)
	}
}

func TestResolve_EnvOverridesCLI(t *testing.T) {
	root := t.TempDir()
	cfg, err := Resolve(root, []string{"build.jobs=8"}, []string{"QUARRY_BUILD_JOBS=16"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := cfg.Get("build.jobs"); v != "16" {
		t.Fatalf("build.jobs = %q, want 16", v)
	}
}

func TestResolve_ArrayAppendsAcrossLayers(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, "[build]\ncompilerflags = [\"-a\"]\n")

	sub := filepath.Join(root, "crate")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeConfigFile(t, sub, "[build]\ncompilerflags = [\"-b\"]\n")

	cfg, err := Resolve(sub, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got := cfg.GetArray("build.compilerflags")
	if len(got) != 2 || got[0] != "-a" || got[1] != "-b" {
		t.Fatalf("build.compilerflags = %v, want [-a -b]", got)
	}
}

func TestEnvKV(t *testing.T) {
	key, val, ok := envKV("QUARRY_NET_OFFLINE=true")
	if !ok || key != "net.offline" || val != "true" {
		t.Fatalf("envKV = %q, %q, %v", key, val, ok)
	}

	if _, _, ok := envKV("PATH=/usr/bin"); ok {
		t.Fatalf("envKV matched a non-QUARRY_ variable")
	}
}

func TestSplitKV_Malformed(t *testing.T) {
	if _, _, err := splitKV("no-equals-sign"); err == nil {
		t.Fatalf("expected error for malformed override")
	}
}
