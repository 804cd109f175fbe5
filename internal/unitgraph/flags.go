package unitgraph

import (
	"sort"
	"strings"

	"github.com/quarrybuild/quarry/internal/config"
	"github.com/quarrybuild/quarry/internal/manifest"
)

// FlagSelector resolves the compilerflags a unit is built with,
// following the first-match-wins rule: earlier sources fully replace
// later ones rather than merging with them.
type FlagSelector struct {
	Config             *config.Config
	Env                []string
	TargetTriple       string
	Profile            manifest.Profile
	ProfileFlagsOptIn  bool
}

// Select returns the compilerflags for a unit of the given kind. kind
// determines which environment variable and which triple-scoped config
// keys apply; host-kind units never see --target-scoped flags.
func (s *FlagSelector) Select(kind Kind) []string {
	if flags, ok := s.fromEnv(kind); ok {
		return flags
	}
	if kind == KindTarget {
		if flags, ok := s.fromTargetConfig(); ok {
			return flags
		}
	}
	if flags := s.Config.GetArray("build.compilerflags"); len(flags) > 0 {
		return flags
	}
	if s.ProfileFlagsOptIn && len(s.Profile.CompilerFlags) > 0 {
		return s.Profile.CompilerFlags
	}
	return nil
}

func (s *FlagSelector) fromEnv(kind Kind) ([]string, bool) {
	name := "QUARRY_COMPILERFLAGS"
	if kind == KindHost {
		name = "QUARRY_HOST_COMPILERFLAGS"
	}
	for _, kv := range s.Env {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k == name {
			return strings.Fields(v), true
		}
	}
	return nil, false
}

// fromTargetConfig unions target.<triple>.compilerflags with every
// target.cfg(...).compilerflags entry, in deterministic sorted order
// across the cfg expressions. The cfg(...) predicates are not evaluated:
// every such entry applies.
func (s *FlagSelector) fromTargetConfig() ([]string, bool) {
	var cfgKeys []string
	seen := map[string]bool{}
	for _, layer := range s.Config.Layers() {
		for key := range layer.Arrays {
			if strings.HasPrefix(key, "target.cfg(") && strings.HasSuffix(key, ".compilerflags") && !seen[key] {
				seen[key] = true
				cfgKeys = append(cfgKeys, key)
			}
		}
	}
	sort.Strings(cfgKeys)

	var out []string
	tripleKey := "target." + s.TargetTriple + ".compilerflags"
	if flags := s.Config.GetArray(tripleKey); len(flags) > 0 {
		out = append(out, flags...)
	}
	for _, key := range cfgKeys {
		if key == tripleKey {
			continue
		}
		out = append(out, s.Config.GetArray(key)...)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
