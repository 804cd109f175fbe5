// Package manifest parses quarry.toml package and workspace manifests,
// infers build targets from filesystem convention, and validates the
// resulting workspace.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const ManifestFileName = "quarry.toml"

// ParseError wraps a TOML decode failure with the manifest path, so
// callers can report "quarry.toml:12: ..." instead of a bare message.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// rawManifest is the direct TOML decoding target; Manifest post-processes
// it into the richer in-memory shape (parsed feature values, inferred
// targets).
type rawManifest struct {
	Package struct {
		Name      string `toml:"name"`
		Version   string `toml:"version"`
		Edition   string `toml:"edition"`
		Links     string `toml:"links"`
		Workspace string `toml:"workspace"`
	} `toml:"package"`
	Workspace *struct {
		Members         []string          `toml:"members"`
		Exclude         []string          `toml:"exclude"`
		DefaultMembers  []string          `toml:"default-members"`
		Dependencies    map[string]rawDep `toml:"dependencies"`
	} `toml:"workspace"`
	Dependencies    map[string]rawDep            `toml:"dependencies"`
	DevDependencies map[string]rawDep            `toml:"dev-dependencies"`
	BuildDependencies map[string]rawDep          `toml:"build-dependencies"`
	Features        map[string][]string          `toml:"features"`
	Profile         map[string]rawProfile        `toml:"profile"`
	Target          map[string]rawTarget         `toml:"targets"`
	Patch           map[string]map[string]rawDep `toml:"patch"`
	Replace         map[string]string            `toml:"replace"`
}

type rawDep struct {
	Version         string   `toml:"version"`
	Path            string   `toml:"path"`
	Git             string   `toml:"git"`
	Branch          string   `toml:"branch"`
	Tag             string   `toml:"tag"`
	Rev             string   `toml:"rev"`
	Registry        string   `toml:"registry"`
	Package         string   `toml:"package"`
	Features        []string `toml:"features"`
	DefaultFeatures *bool    `toml:"default-features"`
	Optional        bool     `toml:"optional"`
	Platform        string   `toml:"cfg"`
}

type rawProfile struct {
	OptLevel       string   `toml:"opt-level"`
	DebugInfo      *bool    `toml:"debug"`
	LTO            string   `toml:"lto"`
	CodegenUnits   int      `toml:"codegen-units"`
	PanicStrategy  string   `toml:"panic"`
	OverflowChecks *bool    `toml:"overflow-checks"`
	Incremental    *bool    `toml:"incremental"`
	Strip          string   `toml:"strip"`
	CompilerFlags  []string `toml:"compilerflags"`
	Inherits       string   `toml:"inherits"`
}

type rawTarget struct {
	Kind             string   `toml:"kind"`
	Path             string   `toml:"path"`
	RequiredFeatures []string `toml:"required-features"`
	Doc              *bool    `toml:"doc"`
	Doctest          *bool    `toml:"doctest"`
	Test             *bool    `toml:"test"`
	Bench            *bool    `toml:"bench"`
	Edition          string   `toml:"edition"`
}

// Manifest is the parsed, post-processed form of one package's quarry.toml.
type Manifest struct {
	Dir     string // directory containing the manifest file
	Name    string
	Version string
	Edition string
	Links   string

	// WorkspaceRole is "root", "member", or "" for a standalone package.
	WorkspaceRole string
	// WorkspacePointer is the package.workspace value for a member that
	// points explicitly at its root, empty when inferred by upward search.
	WorkspacePointer string

	Dependencies      []Dependency
	Features          FeatureSet
	Profiles          map[string]Profile
	Targets           []Target
	Patch             map[string][]Dependency
	Replace           map[string]string

	// Only set on a root manifest.
	WorkspaceMembers        []string
	WorkspaceExclude        []string
	WorkspaceDefaultMembers []string
}

// Load parses the quarry.toml at path (a directory or the file itself)
// and infers its build targets from the filesystem convention, overridden
// by any explicit [targets] entries.
func Load(path string) (*Manifest, error) {
	dir := path
	file := filepath.Join(path, ManifestFileName)
	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		file = path
		dir = filepath.Dir(path)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidManifest, err)
	}

	var raw rawManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		line := 0
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, _ := derr.Position()
			line = row
		}
		return nil, &ParseError{Path: file, Line: line, Err: err}
	}

	m := &Manifest{
		Dir:     dir,
		Name:    raw.Package.Name,
		Version: raw.Package.Version,
		Edition: raw.Package.Edition,
		Links:   raw.Package.Links,
		Profiles: DefaultProfiles(),
		Patch:    map[string][]Dependency{},
		Replace:  raw.Replace,
	}

	if m.Name == "" && raw.Workspace == nil {
		return nil, fmt.Errorf("%w: %s: package.name is required", ErrInvalidManifest, file)
	}

	if raw.Workspace != nil {
		m.WorkspaceRole = "root"
		m.WorkspaceMembers = raw.Workspace.Members
		m.WorkspaceExclude = raw.Workspace.Exclude
		m.WorkspaceDefaultMembers = raw.Workspace.DefaultMembers
	} else if raw.Package.Workspace != "" {
		m.WorkspaceRole = "member"
		m.WorkspacePointer = raw.Package.Workspace
	}

	m.Dependencies = append(m.Dependencies, convertDeps(raw.Dependencies, DepNormal)...)
	m.Dependencies = append(m.Dependencies, convertDeps(raw.DevDependencies, DepDevelopment)...)
	m.Dependencies = append(m.Dependencies, convertDeps(raw.BuildDependencies, DepBuild)...)

	for source, candidates := range raw.Patch {
		m.Patch[source] = convertDeps(candidates, DepNormal)
	}

	features := make(FeatureSet, len(raw.Features))
	for name, values := range raw.Features {
		parsed := make([]FeatureValue, 0, len(values))
		for _, v := range values {
			fv, err := ParseFeatureValue(v)
			if err != nil {
				return nil, fmt.Errorf("%w: feature %q: %s", ErrInvalidManifest, name, err)
			}
			parsed = append(parsed, fv)
		}
		features[name] = parsed
	}
	m.Features = features

	for name, rp := range raw.Profile {
		base := m.Profiles[name]
		if base.Name == "" {
			base = Profile{Name: name}
		}
		applyProfileOverrides(&base, rp)
		m.Profiles[name] = base
	}

	explicit := convertTargets(raw.Target)
	inferred := inferTargets(dir)
	m.Targets = mergeTargets(inferred, explicit)

	return m, nil
}

func convertDeps(raw map[string]rawDep, kind DepKind) []Dependency {
	deps := make([]Dependency, 0, len(raw))
	for key, rd := range raw {
		d := Dependency{
			Key:         key,
			PackageName: rd.Package,
			Requirement: rd.Version,
			Kind:        kind,
			Platform:    rd.Platform,
			Features:    rd.Features,
			Optional:    rd.Optional,
			Source: DepSource{
				Registry: rd.Registry,
				Path:     rd.Path,
				Git:      rd.Git,
				Branch:   rd.Branch,
				Tag:      rd.Tag,
				Rev:      rd.Rev,
			},
		}
		if rd.DefaultFeatures == nil {
			d.DefaultFeatures = true
		} else {
			d.DefaultFeatures = *rd.DefaultFeatures
		}
		deps = append(deps, d)
	}
	return deps
}

func applyProfileOverrides(p *Profile, rp rawProfile) {
	if rp.OptLevel != "" {
		p.OptLevel = rp.OptLevel
	}
	if rp.DebugInfo != nil {
		p.DebugInfo = *rp.DebugInfo
	}
	if rp.LTO != "" {
		p.LTO = rp.LTO
	}
	if rp.CodegenUnits != 0 {
		p.CodegenUnits = rp.CodegenUnits
	}
	if rp.PanicStrategy != "" {
		p.PanicStrategy = rp.PanicStrategy
	}
	if rp.OverflowChecks != nil {
		p.OverflowChecks = *rp.OverflowChecks
	}
	if rp.Incremental != nil {
		p.Incremental = *rp.Incremental
	}
	if rp.Strip != "" {
		p.Strip = rp.Strip
	}
	if len(rp.CompilerFlags) > 0 {
		p.CompilerFlags = rp.CompilerFlags
	}
	if rp.Inherits != "" {
		p.Inherits = rp.Inherits
	}
}

func convertTargets(raw map[string]rawTarget) map[string]Target {
	out := make(map[string]Target, len(raw))
	for name, rt := range raw {
		t := Target{
			Name:             name,
			SourcePath:       rt.Path,
			RequiredFeatures: rt.RequiredFeatures,
			Edition:          rt.Edition,
			Kind:             parseTargetKind(rt.Kind),
		}
		t.Doc = boolOr(rt.Doc, t.Kind == TargetLibrary)
		t.Doctest = boolOr(rt.Doctest, t.Kind == TargetLibrary)
		t.Test = boolOr(rt.Test, true)
		t.Bench = boolOr(rt.Bench, true)
		out[name] = t
	}
	return out
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func parseTargetKind(kind string) TargetKind {
	switch kind {
	case "binary":
		return TargetBinary
	case "example":
		return TargetExample
	case "test":
		return TargetTest
	case "benchmark":
		return TargetBenchmark
	case "build-script":
		return TargetBuildScript
	default:
		return TargetLibrary
	}
}

// mergeTargets overlays explicit target declarations onto the
// filesystem-inferred set, by name; an explicit entry with no filesystem
// counterpart is still included, and an inferred entry overridden by an
// explicit one of the same name is replaced wholesale.
func mergeTargets(inferred []Target, explicit map[string]Target) []Target {
	merged := make([]Target, 0, len(inferred)+len(explicit))
	seen := make(map[string]bool, len(explicit))
	for _, t := range inferred {
		if override, ok := explicit[t.Name]; ok {
			merged = append(merged, override)
			seen[t.Name] = true
			continue
		}
		merged = append(merged, t)
	}
	for name, t := range explicit {
		if !seen[name] {
			merged = append(merged, t)
		}
	}
	return merged
}
