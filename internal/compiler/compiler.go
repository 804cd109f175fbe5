// Package compiler wires internal/unitgraph, internal/fingerprint, and
// internal/buildscript together into the two seams internal/scheduler
// needs to actually drive a build: an Executor that spawns the
// configured compiler binary (or, for a run-build-script unit, the
// compiled build program), and a FreshnessChecker backed by persisted
// fingerprint state.
package compiler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/quarrybuild/quarry/internal/buildscript"
	"github.com/quarrybuild/quarry/internal/diag"
	"github.com/quarrybuild/quarry/internal/fingerprint"
	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/jobserver"
	"github.com/quarrybuild/quarry/internal/layout"
	"github.com/quarrybuild/quarry/internal/manifest"
	"github.com/quarrybuild/quarry/internal/unitgraph"
)

// PackageSource resolves the on-disk root directory of a unit's owning
// package, used both to find the source file to pass the compiler and
// to stat local files for the fingerprint.
type PackageSource interface {
	RootOf(id ident.PackageID) (string, error)
}

// Driver runs the real compiler and build-script processes a unit graph
// describes. One Driver is shared by every unit in a single invocation;
// Execute and Fresh are safe for concurrent use by the scheduler's
// worker pool.
type Driver struct {
	Graph        *unitgraph.Graph
	Layout       layout.Layout
	Packages     PackageSource
	CompilerBin  string // e.g. "quarryc", overridable via build.compiler config
	HostTriple   string
	TargetTriple string
	Env          []string
	Flags        *unitgraph.FlagSelector
	ToolchainVer string
	Logger       *zap.Logger
	Jobs         *jobserver.Pool

	mu      sync.Mutex
	outputs map[unitgraph.UnitIndex]*buildscript.Output // run-build-script results, by owner unit
	done    map[unitgraph.UnitIndex]*fingerprint.Fingerprint
}

// NewDriver wires a Driver ready to Execute/Fresh every unit in g.
func NewDriver(g *unitgraph.Graph, lay layout.Layout, pkgs PackageSource, compilerBin, hostTriple, targetTriple, toolchainVer string, env []string, flags *unitgraph.FlagSelector, logger *zap.Logger, jobs *jobserver.Pool) *Driver {
	if compilerBin == "" {
		compilerBin = "quarryc"
	}
	return &Driver{
		Graph:        g,
		Layout:       lay,
		Packages:     pkgs,
		CompilerBin:  compilerBin,
		HostTriple:   hostTriple,
		TargetTriple: targetTriple,
		Env:          env,
		Flags:        flags,
		ToolchainVer: toolchainVer,
		Logger:       logger,
		Jobs:         jobs,
		outputs:      map[unitgraph.UnitIndex]*buildscript.Output{},
		done:         map[unitgraph.UnitIndex]*fingerprint.Fingerprint{},
	}
}

func (d *Driver) indexOf(u unitgraph.Unit) unitgraph.UnitIndex {
	for i, candidate := range d.Graph.Units {
		if candidate.Package.Equal(u.Package) && candidate.Target.Name == u.Target.Name &&
			candidate.Mode == u.Mode && candidate.Kind == u.Kind {
			return unitgraph.UnitIndex(i)
		}
	}
	return -1
}

// Execute implements scheduler.Executor.
func (d *Driver) Execute(ctx context.Context, u unitgraph.Unit) error {
	return d.ExecuteWithMetadataSignal(ctx, u, nil)
}

// ExecuteWithMetadataSignal implements scheduler.MetadataExecutor: it runs
// exactly like Execute, but calls onMetadataReady as soon as the
// underlying compiler reports u's .rmeta usable, letting the scheduler
// unblock a MetadataReady-level dependent before u finishes linking.
// Run-build-script units have no metadata phase of their own, so
// onMetadataReady is simply never called for them.
func (d *Driver) ExecuteWithMetadataSignal(ctx context.Context, u unitgraph.Unit, onMetadataReady func()) error {
	idx := d.indexOf(u)
	if u.Mode == unitgraph.ModeRunBuildScript {
		return d.runBuildScript(ctx, idx, u)
	}
	return d.compile(ctx, idx, u, onMetadataReady)
}

// Fresh implements scheduler.FreshnessChecker.
func (d *Driver) Fresh(u unitgraph.Unit) (bool, error) {
	idx := d.indexOf(u)
	fresh, err := d.computeFingerprint(idx, u)
	if err != nil {
		return false, err
	}
	cached, err := fingerprint.Load(filepath.Join(d.Layout.Root, layout.TargetDir), d.Layout.Profile, fresh.Hash())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		// Corrupt fingerprint: treat as dirty per spec.md §4.G/§7 rather
		// than fail the build.
		d.logWarn("fingerprint corrupt for %s, rebuilding", u.Package)
		return false, nil
	}
	return !fingerprint.Dirty(cached, fresh), nil
}

func (d *Driver) logWarn(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Sugar().Warnf(format, args...)
	}
}

// computeFingerprint assembles the Fingerprint covering every input
// spec.md §4.G names: toolchain version, profile, feature set, triples,
// compilerflags, each dependency's own fingerprint hash, and local
// source files.
func (d *Driver) computeFingerprint(idx unitgraph.UnitIndex, u unitgraph.Unit) (*fingerprint.Fingerprint, error) {
	var depHashes []string
	for _, e := range d.Graph.DependenciesOf(idx) {
		depUnit := d.Graph.Units[e.To]
		depFP, err := d.computeFingerprint(e.To, depUnit)
		if err != nil {
			return nil, err
		}
		depHashes = append(depHashes, depFP.Hash())
	}

	var localFiles []fingerprint.LocalFile
	if root, err := d.Packages.RootOf(u.Package); err == nil && u.Target.SourcePath != "" {
		path := filepath.Join(root, u.Target.SourcePath)
		if lf, err := fingerprint.StatLocalFile(path); err == nil {
			localFiles = append(localFiles, lf)
		}
	}
	if out, ok := d.outputs[idx]; ok {
		for _, p := range out.RerunIfChanged {
			if lf, err := fingerprint.StatLocalFile(p); err == nil {
				localFiles = append(localFiles, lf)
			}
		}
	}

	var envVars []fingerprint.EnvVar
	if out, ok := d.outputs[idx]; ok {
		for _, name := range out.RerunIfEnvChanged {
			envVars = append(envVars, fingerprint.EnvVar{Name: name, Value: lookupEnv(d.Env, name)})
		}
	}

	flags := d.Flags.Select(u.Kind)

	fp := &fingerprint.Fingerprint{
		ToolchainVersion: d.ToolchainVer,
		ProfileHash:      d.Layout.Profile,
		Features:         append([]string{}, u.Features...),
		TargetTriple:     d.TargetTriple,
		HostTriple:       d.HostTriple,
		CompilerFlags:    flags,
		DepFingerprints:  depHashes,
		LocalFiles:       localFiles,
		EnvVars:          envVars,
	}
	return fp, nil
}

func lookupEnv(env []string, name string) string {
	prefix := name + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix)
		}
	}
	return ""
}

// compile assembles and runs one non-build-script unit's compiler
// invocation, per spec.md §6's argument list.
func (d *Driver) compile(ctx context.Context, idx unitgraph.UnitIndex, u unitgraph.Unit, onMetadataReady func()) error {
	root, err := d.Packages.RootOf(u.Package)
	if err != nil {
		return diag.Wrap(diag.CategoryBuild, fmt.Sprintf("locating source for %s", u.Package), err)
	}

	args := []string{
		"--crate-name", u.Target.Name,
		"--crate-type", crateType(u.Target.Kind),
		"--edition", orDefault(u.Target.Edition, "2021"),
		"--emit", emitKinds(u.Mode),
		"--out-dir", d.Layout.Deps(),
	}
	if u.Kind == unitgraph.KindTarget && d.TargetTriple != "" && d.TargetTriple != d.HostTriple {
		args = append(args, "--target", d.TargetTriple)
	}
	for _, dep := range d.Graph.DependenciesOf(idx) {
		depUnit := d.Graph.Units[dep.To]
		externPath, err := d.externPath(dep.To, depUnit, dep.Level)
		if err != nil {
			return err
		}
		args = append(args, "--extern", fmt.Sprintf("%s=%s", depUnit.Target.Name, externPath))
	}
	if out, ok := d.outputs[d.buildScriptOwnerIndex(u.Package)]; ok {
		for _, cfg := range out.Cfg {
			args = append(args, "--cfg", cfg)
		}
		for _, cc := range out.CheckCfg {
			args = append(args, "--check-cfg", cc)
		}
		for _, l := range out.LinkLib {
			args = append(args, "-l", l)
		}
		for _, s := range out.LinkSearch {
			args = append(args, "-L", s)
		}
		for _, a := range out.LinkArgs {
			args = append(args, "-C", "link-arg="+a)
		}
	}
	// --json=artifacts makes the compiler emit a notification line on
	// stderr as soon as a crate's .rmeta is usable, ahead of it finishing
	// linking; this is the mid-run rmeta-ready signal pipelined
	// compilation depends on (spec.md §4.H), distinct from the process
	// simply exiting.
	args = append(args, "--json=artifacts")
	args = append(args, d.Flags.Select(u.Kind)...)
	args = append(args, filepath.Join(root, u.Target.SourcePath))

	cmd := exec.CommandContext(ctx, d.CompilerBin, args...)
	cmd.Dir = root
	cmd.Env = append(append([]string{}, d.Env...), d.Jobs.Env())

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return diag.Wrap(diag.CategoryBuild, fmt.Sprintf("starting compiler for %s", u.Package), err)
	}
	if err := cmd.Start(); err != nil {
		return diag.Wrap(diag.CategoryBuild, fmt.Sprintf("starting compiler for %s", u.Package), err)
	}

	var stderr bytes.Buffer
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			line := scanner.Text()
			stderr.WriteString(line)
			stderr.WriteByte('\n')
			if onMetadataReady != nil && strings.Contains(line, `"emit":"metadata"`) {
				onMetadataReady()
			}
		}
	}()

	runErr := cmd.Wait()
	<-scanDone

	if runErr != nil {
		exitCode := 1
		if ee, ok := runErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return diag.WrapBuild(u.Package.String(), exitCode, fmt.Errorf("%s: %s", runErr, stderr.String()))
	}

	return d.persistFingerprint(idx, u)
}

func (d *Driver) persistFingerprint(idx unitgraph.UnitIndex, u unitgraph.Unit) error {
	fp, err := d.computeFingerprint(idx, u)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.done[idx] = fp
	d.mu.Unlock()
	return fingerprint.Save(filepath.Join(d.Layout.Root, layout.TargetDir), d.Layout.Profile, fp.Hash(), fp)
}

// externPath returns the path the compiler should be pointed at for a
// dependency edge: an .rmeta file when the edge only requires
// metadata-ready (pipelined compilation), an .rlib when it requires the
// fully-built artifact.
func (d *Driver) externPath(idx unitgraph.UnitIndex, u unitgraph.Unit, level unitgraph.ReadinessLevel) (string, error) {
	ext := "rlib"
	if level == unitgraph.MetadataReady {
		ext = "rmeta"
	}
	return filepath.Join(d.Layout.Deps(), fmt.Sprintf("lib%s.%s", u.Target.Name, ext)), nil
}

// buildScriptOwnerIndex finds the run-build-script unit belonging to
// pkg, if any, so compile can fold its directives into the invocation.
func (d *Driver) buildScriptOwnerIndex(pkg ident.PackageID) unitgraph.UnitIndex {
	for i, cand := range d.Graph.Units {
		if cand.Mode == unitgraph.ModeRunBuildScript && cand.Package.Equal(pkg) {
			return unitgraph.UnitIndex(i)
		}
	}
	return -1
}

// runBuildScript executes a package's compiled build program and parses
// its stdout per the quarry:/quarry:: directive protocol, per spec.md
// §4.H/§4.I.
func (d *Driver) runBuildScript(ctx context.Context, idx unitgraph.UnitIndex, u unitgraph.Unit) error {
	root, err := d.Packages.RootOf(u.Package)
	if err != nil {
		return diag.Wrap(diag.CategoryBuild, "locating build script package root", err)
	}

	outDir := d.Layout.BuildScriptDir(pkgidHash(u.Package))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("build script: creating OUT_DIR: %w", err)
	}

	binPath := filepath.Join(d.Layout.Build(), pkgidHash(u.Package), "build-script")
	cmd := exec.CommandContext(ctx, binPath)
	cmd.Dir = root
	cmd.Env = append(append([]string{}, d.Env...), d.buildScriptEnv(u, outDir)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exitCode := 1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return diag.WrapBuild(u.Package.String(), exitCode, fmt.Errorf("build script: %s: %s", err, stderr.String()))
	}

	out, err := buildscript.Parse(&stdout)
	if err != nil {
		return fmt.Errorf("build script: parsing directives: %w", err)
	}
	for _, w := range out.Warnings {
		d.logWarn("%s: %s", u.Package, w)
	}

	d.mu.Lock()
	d.outputs[idx] = out
	d.mu.Unlock()

	return d.persistFingerprint(idx, u)
}

// buildScriptEnv assembles the environment a build script receives, per
// spec.md §4.H and the supplemented original_source/build-rs/input.rs
// surface (CARGO_* renamed QUARRY_*).
func (d *Driver) buildScriptEnv(u unitgraph.Unit, outDir string) []string {
	env := []string{
		"OUT_DIR=" + outDir,
		"TARGET=" + d.TargetTriple,
		"HOST=" + d.HostTriple,
		"PROFILE=" + d.Layout.Profile,
		"QUARRY_MANIFEST_DIR=" + d.Layout.Root,
		"QUARRY_PKG_NAME=" + u.Package.Name.String(),
		"QUARRY_PKG_VERSION=" + u.Package.Version.String(),
	}
	if d.Jobs != nil {
		env = append(env, fmt.Sprintf("NUM_JOBS=%d", d.Jobs.Capacity()), d.Jobs.Env())
	}
	for _, f := range u.Features {
		env = append(env, "QUARRY_FEATURE_"+envSafe(f)+"=1")
	}
	// DEP_<LINKS>_<KEY>: expose every direct dependency's own build
	// script metadata, keyed by its declared `links` value.
	for _, e := range d.Graph.DependenciesOf(d.indexOf(u)) {
		dep := d.Graph.Units[e.To]
		if dep.Links == "" {
			continue
		}
		ownerIdx := d.buildScriptOwnerIndex(dep.Package)
		out, ok := d.outputs[ownerIdx]
		if !ok {
			continue
		}
		keys := make([]string, 0, len(out.Metadata))
		for k := range out.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env = append(env, fmt.Sprintf("DEP_%s_%s=%s", envSafe(strings.ToUpper(dep.Links)), envSafe(strings.ToUpper(k)), out.Metadata[k]))
		}
	}
	return env
}

func envSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, s)
}

func pkgidHash(id ident.PackageID) string {
	sum := 2166136261
	for _, b := range []byte(id.Key()) {
		sum = (sum ^ int(b)) * 16777619
	}
	return fmt.Sprintf("%x", uint32(sum))
}

func crateType(kind manifest.TargetKind) string {
	switch kind {
	case manifest.TargetLibrary:
		return "lib"
	default:
		return "bin"
	}
}

func emitKinds(mode unitgraph.Mode) string {
	switch mode {
	case unitgraph.ModeCheck:
		return "metadata"
	case unitgraph.ModeDoc, unitgraph.ModeDocScrape:
		return "metadata"
	default:
		return "link"
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
