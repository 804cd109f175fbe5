package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quarrybuild/quarry/internal/compiler"
	"github.com/quarrybuild/quarry/internal/diag"
	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/jobserver"
	"github.com/quarrybuild/quarry/internal/layout"
	"github.com/quarrybuild/quarry/internal/lockfile"
	"github.com/quarrybuild/quarry/internal/manifest"
	"github.com/quarrybuild/quarry/internal/quarryctx"
	"github.com/quarrybuild/quarry/internal/resolver"
	"github.com/quarrybuild/quarry/internal/scheduler"
	"github.com/quarrybuild/quarry/internal/source"
	"github.com/quarrybuild/quarry/internal/unitgraph"
)

// pipeline is the shared load-resolve-build state every build-family
// command (build, check, test, bench, run, doc) drives to some point
// short of its own final step (compiling vs. also running/testing the
// result).
type pipeline struct {
	ctx       *quarryctx.Context
	workspace *manifest.Workspace
	resolved  *resolver.Graph
	manifests map[string]*manifest.Manifest
	layout    layout.Layout
	profile   manifest.Profile
	driver    *compiler.Driver
}

// exitCodeOf mirrors diag.ExitCodeOf for Execute's os.Exit call.
func exitCodeOf(err error) int {
	return diag.ExitCodeOf(err)
}

// rootFlags extracts the persistent flags every build-family command
// shares.
type rootFlags struct {
	configOverrides []string
	offline         bool
	locked          bool
	frozen          bool
	jobs            int
	verbose         bool
	profile         string
}

func readRootFlags(cmd *cobra.Command) rootFlags {
	cfg, _ := cmd.Flags().GetStringSlice("config")
	offline, _ := cmd.Flags().GetBool("offline")
	locked, _ := cmd.Flags().GetBool("locked")
	frozen, _ := cmd.Flags().GetBool("frozen")
	jobs, _ := cmd.Flags().GetInt("jobs")
	verbose, _ := cmd.Flags().GetBool("verbose")
	profile, _ := cmd.Flags().GetString("profile")
	if profile == "" {
		profile = "dev"
	}
	return rootFlags{cfg, offline, locked, frozen, jobs, verbose, profile}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// resolution is the outcome of loading a workspace and resolving (and
// reconciling the lockfile for) its dependency graph, independent of
// any particular set of unit-graph roots. Commands that only need to
// inspect or fetch dependencies (metadata, tree, pkgid, fetch, update,
// generate-lockfile) stop here; build-family commands go on to call
// newPipeline, which wraps this plus a unit graph and compiler driver.
type resolution struct {
	ctx       *quarryctx.Context
	workspace *manifest.Workspace
	resolved  *resolver.Graph
	manifests map[string]*manifest.Manifest
}

// resolveWorkspace loads the workspace at the current directory and
// runs the solver, reconciling quarry.lock per the --locked/--frozen
// discipline. ignoreLockedVersions skips preferring the existing lock's
// versions, used by `quarry update`.
func resolveWorkspace(cmd *cobra.Command, ignoreLockedVersions bool) (*resolution, error) {
	flags := readRootFlags(cmd)

	logger, err := newLogger(flags.verbose)
	if err != nil {
		return nil, diag.Wrap(diag.CategoryInternal, "starting logger", err)
	}

	n := flags.jobs
	if n <= 0 {
		n = runtime.NumCPU()
	}
	jobs, err := jobserver.New(n)
	if err != nil {
		return nil, diag.Wrap(diag.CategoryInternal, "starting job pool", err)
	}

	qctx, err := quarryctx.New(flags.configOverrides, logger, jobs)
	if err != nil {
		return nil, diag.Wrap(diag.CategoryInternal, "resolving context", err)
	}
	if flags.offline || flags.frozen {
		qctx = qctx.WithOffline()
	}
	if flags.locked || flags.frozen {
		qctx = qctx.WithLocked()
	}

	ws, err := manifest.WorkspaceFrom(qctx.Cwd)
	if err != nil {
		return nil, diag.Wrap(diag.CategoryUserInput, "loading workspace", err)
	}
	if errs := manifest.Validate(ws); len(errs) > 0 {
		return nil, diag.Wrap(diag.CategoryUserInput, fmt.Sprintf("invalid workspace: %v", errs), errs[0])
	}

	manifests := map[string]*manifest.Manifest{}
	paths := map[string]string{}
	for name, m := range ws.Members {
		id := idFor(name, m)
		manifests[id.Key()] = m
		paths[name] = m.Dir
	}

	router := &source.WorkspaceRouter{Paths: paths}

	lockMode := lockfile.ModeNormal
	switch {
	case flags.frozen:
		lockMode = lockfile.ModeFrozen
	case flags.locked:
		lockMode = lockfile.ModeLocked
	}

	lockedVersions := map[string]string{}
	if !ignoreLockedVersions && lockfile.Exists(ws.RootDir) {
		lf, err := lockfile.Load(ws.RootDir)
		if err != nil {
			return nil, diag.Wrap(diag.CategoryResolution, "loading quarry.lock", err)
		}
		for _, p := range lf.Packages {
			lockedVersions[p.Name] = p.Version
		}
	} else if lockMode == lockfile.ModeFrozen && !lockfile.Exists(ws.RootDir) {
		return nil, diag.Wrap(diag.CategoryResolution, "quarry.lock missing under --frozen", lockfile.ErrDivergence)
	}

	resolved, err := resolver.Resolve(context.Background(), resolver.Input{
		Workspace:      ws,
		Sources:        router,
		LockedVersions: lockedVersions,
	})
	if err != nil {
		return nil, diag.Wrap(diag.CategoryResolution, "resolving dependencies", err)
	}

	newLock := lockfileFrom(resolved)
	if lockfile.Exists(ws.RootDir) && !ignoreLockedVersions {
		existing, _ := lockfile.Load(ws.RootDir)
		if lockMode == lockfile.ModeLocked || lockMode == lockfile.ModeFrozen {
			if existing != nil && !existing.Covers(newLock.Packages) {
				return nil, diag.Wrap(diag.CategoryResolution, "lock file out of date", lockfile.ErrDivergence)
			}
		} else if existing == nil || !existing.Covers(newLock.Packages) {
			if err := lockfile.Save(ws.RootDir, newLock); err != nil {
				return nil, diag.Wrap(diag.CategoryResolution, "writing quarry.lock", err)
			}
		}
	} else if lockMode != lockfile.ModeFrozen {
		if err := lockfile.Save(ws.RootDir, newLock); err != nil {
			return nil, diag.Wrap(diag.CategoryResolution, "writing quarry.lock", err)
		}
	}

	return &resolution{ctx: qctx, workspace: ws, resolved: resolved, manifests: manifests}, nil
}

// newPipeline resolves the workspace and builds a unit graph for roots,
// ready for a build-family command to drive through the scheduler.
func newPipeline(cmd *cobra.Command, roots func(ws *manifest.Workspace) ([]unitgraph.RootSpec, error)) (*pipeline, error) {
	flags := readRootFlags(cmd)

	r, err := resolveWorkspace(cmd, false)
	if err != nil {
		return nil, err
	}

	specs, err := roots(r.workspace)
	if err != nil {
		return nil, err
	}

	b := &unitgraph.Builder{
		Resolved:     r.resolved,
		Manifests:    r.manifests,
		HostTriple:   hostTriple(),
		TargetTriple: hostTriple(),
	}
	graph, err := b.Build(specs)
	if err != nil {
		return nil, diag.Wrap(diag.CategoryBuild, "building unit graph", err)
	}

	prof := manifest.DefaultProfiles()[flags.profile]
	lay := layout.New(r.workspace.RootDir, flags.profile)
	for _, dir := range lay.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, diag.Wrap(diag.CategoryInternal, "preparing target directory", err)
		}
	}

	flagSel := &unitgraph.FlagSelector{Config: r.ctx.Config, Env: r.ctx.Env, TargetTriple: hostTriple(), Profile: prof}
	driver := compiler.NewDriver(graph, lay, &workspacePackageSource{ws: r.workspace}, "", hostTriple(), hostTriple(), "0", r.ctx.Env, flagSel, r.ctx.Logger, r.ctx.Jobs)

	return &pipeline{
		ctx:       r.ctx,
		workspace: r.workspace,
		resolved:  r.resolved,
		manifests: r.manifests,
		layout:    lay,
		profile:   prof,
		driver:    driver,
	}, nil
}

// run drives the scheduler to completion against the built unit graph.
// progress may be nil.
func (p *pipeline) run(ctx context.Context, progress chan<- scheduler.ProgressEvent) error {
	sched := &scheduler.Scheduler{
		Graph:    p.driver.Graph,
		Jobs:     p.ctx.Jobs,
		Executor: p.driver,
		Fresh:    p.driver,
		Logger:   p.ctx.Logger,
		Progress: progress,
	}
	return sched.Run(ctx)
}

// workspacePackageSource implements compiler.PackageSource for the path
// dependencies that make up a resolved workspace: every package this
// module can actually build lives at a local path (registry/git
// download is out of scope), so resolving a root is a lookup by name
// against the workspace's member table.
type workspacePackageSource struct {
	ws *manifest.Workspace
}

func (s *workspacePackageSource) RootOf(id ident.PackageID) (string, error) {
	if id.Source.Kind == ident.SourcePath {
		return id.Source.PathRoot, nil
	}
	if m, ok := s.ws.Members[id.Name.String()]; ok {
		return m.Dir, nil
	}
	return "", fmt.Errorf("%w: no local source for %s", source.ErrNotImplemented, id)
}

func lockfileFrom(g *resolver.Graph) *lockfile.Lockfile {
	lf := &lockfile.Lockfile{Version: lockfile.FormatVersion}
	for _, n := range g.Nodes {
		deps := make([]string, 0, len(n.Edges))
		for _, e := range n.Edges {
			deps = append(deps, g.Nodes[e.To].ID.Name.String())
		}
		lf.Packages = append(lf.Packages, lockfile.Package{
			Name:         n.ID.Name.String(),
			Version:      n.ID.Version.String(),
			Source:       n.ID.Source.Describe(),
			Dependencies: deps,
		})
	}
	return lf
}

func mustName(raw string) ident.Name {
	n, err := ident.ParseName(raw)
	if err != nil {
		return ident.Name(raw)
	}
	return n
}

func mustVersion(raw string) ident.Version {
	v, err := ident.ParseVersion(raw)
	if err != nil {
		v, _ = ident.ParseVersion("0.0.0")
	}
	return v
}

func hostTriple() string {
	return runtime.GOARCH + "-" + runtime.GOOS
}

// idFor builds the ident.PackageID for a workspace member given its
// manifest-keyed name.
func idFor(name string, m *manifest.Manifest) ident.PackageID {
	return ident.PackageID{Name: mustName(name), Version: mustVersion(m.Version), Source: ident.NewPathSource(m.Dir)}
}

// filepathWalkDirs walks every directory under root, skipping the
// shared build output and version-control directories, invoking fn for
// each. Used to seed an fsnotify watch list for `build --watch`.
func filepathWalkDirs(root string, fn func(dir string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if base == "target" || base == ".git" {
			return filepath.SkipDir
		}
		return fn(path)
	})
}

// packageTargets returns every target of kind matching want belonging
// to m, used by commands that build "every binary" or
// "every test target" rather than a single named one.
func packageTargets(m *manifest.Manifest, want manifest.TargetKind) []manifest.Target {
	var out []manifest.Target
	for _, t := range m.Targets {
		if t.Kind == want {
			out = append(out, t)
		}
	}
	return out
}

