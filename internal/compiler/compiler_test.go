package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/quarrybuild/quarry/internal/config"
	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/jobserver"
	"github.com/quarrybuild/quarry/internal/layout"
	"github.com/quarrybuild/quarry/internal/manifest"
	"github.com/quarrybuild/quarry/internal/unitgraph"
)

// fakePackageSource resolves every package to the same directory, since
// these tests only ever build a single package's single target.
type fakePackageSource struct {
	root string
}

func (f fakePackageSource) RootOf(ident.PackageID) (string, error) {
	return f.root, nil
}

func newTestID(name string) ident.PackageID {
	n, err := ident.ParseName(name)
	if err != nil {
		panic(err)
	}
	v, err := ident.ParseVersion("1.0.0")
	if err != nil {
		panic(err)
	}
	return ident.PackageID{Name: n, Version: v, Source: ident.NewPathSource("/" + name)}
}

// fakeCompiler writes a shell script masquerading as the compiler
// binary: it only needs to exit 0 so Execute can observe a successful
// compile and persist a fingerprint.
func fakeCompiler(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-quarryc")
	script := "#!/bin/sh\nexit 0\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake compiler: %v", err)
	}
	return path
}

func newTestDriver(t *testing.T, compilerBin, srcDir string, g *unitgraph.Graph) *Driver {
	t.Helper()
	root := t.TempDir()
	lay := layout.New(root, "dev")
	for _, dir := range lay.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("preparing %s: %v", dir, err)
		}
	}

	cfg, err := config.Resolve(root, nil, nil)
	if err != nil {
		t.Fatalf("config.Resolve: %v", err)
	}
	jobs, err := jobserver.New(1)
	if err != nil {
		t.Fatalf("jobserver.New: %v", err)
	}
	t.Cleanup(func() { jobs.Close() })

	flags := &unitgraph.FlagSelector{Config: cfg, TargetTriple: "x86_64-linux", Profile: manifest.DefaultProfiles()["dev"]}
	return NewDriver(g, lay, fakePackageSource{root: srcDir}, compilerBin, "x86_64-linux", "x86_64-linux", "1.0.0", nil, flags, nil, jobs)
}

func TestDriver_CompileThenFreshAfterSuccess(t *testing.T) {
	srcDir := t.TempDir()
	srcFile := filepath.Join(srcDir, "lib.rs")
	if err := os.WriteFile(srcFile, []byte("pub fn greet() {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := &unitgraph.Graph{}
	pkg := newTestID("greeter")
	u := unitgraph.Unit{
		Package: pkg,
		Target:  manifest.Target{Kind: manifest.TargetLibrary, Name: "greeter", SourcePath: "lib.rs", Edition: "2021"},
		Mode:    unitgraph.ModeBuild,
		Kind:    unitgraph.KindTarget,
	}
	g.Units = append(g.Units, u)

	binDir := t.TempDir()
	d := newTestDriver(t, fakeCompiler(t, binDir), srcDir, g)

	if err := d.Execute(context.Background(), u); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	fresh, err := d.Fresh(u)
	if err != nil {
		t.Fatalf("Fresh: %v", err)
	}
	if !fresh {
		t.Fatal("expected unit to be fresh immediately after a successful compile")
	}
}

func TestDriver_FreshIsFalseWhenNeverBuilt(t *testing.T) {
	srcDir := t.TempDir()
	srcFile := filepath.Join(srcDir, "lib.rs")
	if err := os.WriteFile(srcFile, []byte("pub fn greet() {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := &unitgraph.Graph{}
	pkg := newTestID("greeter")
	u := unitgraph.Unit{
		Package: pkg,
		Target:  manifest.Target{Kind: manifest.TargetLibrary, Name: "greeter", SourcePath: "lib.rs", Edition: "2021"},
		Mode:    unitgraph.ModeBuild,
		Kind:    unitgraph.KindTarget,
	}
	g.Units = append(g.Units, u)

	d := newTestDriver(t, fakeCompiler(t, t.TempDir()), srcDir, g)

	fresh, err := d.Fresh(u)
	if err != nil {
		t.Fatalf("Fresh: %v", err)
	}
	if fresh {
		t.Fatal("expected a never-built unit to be reported dirty")
	}
}

func TestDriver_DirtyAfterSourceChangesAfterBuild(t *testing.T) {
	srcDir := t.TempDir()
	srcFile := filepath.Join(srcDir, "lib.rs")
	if err := os.WriteFile(srcFile, []byte("pub fn greet() {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := &unitgraph.Graph{}
	pkg := newTestID("greeter")
	u := unitgraph.Unit{
		Package: pkg,
		Target:  manifest.Target{Kind: manifest.TargetLibrary, Name: "greeter", SourcePath: "lib.rs", Edition: "2021"},
		Mode:    unitgraph.ModeBuild,
		Kind:    unitgraph.KindTarget,
	}
	g.Units = append(g.Units, u)

	d := newTestDriver(t, fakeCompiler(t, t.TempDir()), srcDir, g)
	if err := d.Execute(context.Background(), u); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if err := os.WriteFile(srcFile, []byte("pub fn greet() { println!(\"hi\"); }"), 0o644); err != nil {
		t.Fatal(err)
	}

	fresh, err := d.Fresh(u)
	if err != nil {
		t.Fatalf("Fresh: %v", err)
	}
	if fresh {
		t.Fatal("expected unit to be dirty after its source file changed")
	}
}

func TestEnvSafe_ReplacesNonAlphanumerics(t *testing.T) {
	if got := envSafe("openssl-sys.1"); got != "openssl_sys_1" {
		t.Fatalf("envSafe = %q", got)
	}
}

func TestPkgidHash_StableAndDeterministic(t *testing.T) {
	id := newTestID("greeter")
	a := pkgidHash(id)
	b := pkgidHash(id)
	if a != b {
		t.Fatalf("pkgidHash not stable: %q != %q", a, b)
	}
	if a != pkgidHash(newTestID("greeter")) {
		t.Fatal("pkgidHash differs across structurally-equal ids")
	}
	if a == pkgidHash(newTestID("other")) {
		t.Fatal("pkgidHash collided for distinct package names")
	}
}

func TestCrateType_LibraryVsBinary(t *testing.T) {
	if crateType(manifest.TargetLibrary) != "lib" {
		t.Fatal("expected lib crate type for TargetLibrary")
	}
	if crateType(manifest.TargetBinary) != "bin" {
		t.Fatal("expected bin crate type for TargetBinary")
	}
}

func TestEmitKinds_CheckAndDocAreMetadataOnly(t *testing.T) {
	for _, mode := range []unitgraph.Mode{unitgraph.ModeCheck, unitgraph.ModeDoc, unitgraph.ModeDocScrape} {
		if got := emitKinds(mode); got != "metadata" {
			t.Fatalf("emitKinds(%v) = %q, want metadata", mode, got)
		}
	}
	if got := emitKinds(unitgraph.ModeBuild); got != "link" {
		t.Fatalf("emitKinds(ModeBuild) = %q, want link", got)
	}
}

func TestOrDefault(t *testing.T) {
	if orDefault("", "2021") != "2021" {
		t.Fatal("expected fallback when empty")
	}
	if orDefault("2018", "2021") != "2018" {
		t.Fatal("expected value to win over fallback")
	}
}

func TestDriver_CompileFailurePropagatesExitCode(t *testing.T) {
	srcDir := t.TempDir()
	srcFile := filepath.Join(srcDir, "lib.rs")
	if err := os.WriteFile(srcFile, []byte("broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	binDir := t.TempDir()
	path := filepath.Join(binDir, "failing-quarryc")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho boom >&2\nexit 7\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	g := &unitgraph.Graph{}
	pkg := newTestID("greeter")
	u := unitgraph.Unit{
		Package: pkg,
		Target:  manifest.Target{Kind: manifest.TargetLibrary, Name: "greeter", SourcePath: "lib.rs", Edition: "2021"},
		Mode:    unitgraph.ModeBuild,
		Kind:    unitgraph.KindTarget,
	}
	g.Units = append(g.Units, u)

	d := newTestDriver(t, path, srcDir, g)
	err := d.Execute(context.Background(), u)
	if err == nil {
		t.Fatal("expected compile failure to surface an error")
	}
	if got := fmt.Sprintf("%v", err); got == "" {
		t.Fatal("expected a non-empty error message")
	}
}
