// Package config implements quarry's hierarchical configuration
// resolution: environment variables, --config CLI overrides, ancestor
// .quarry/config.toml files walked from the working directory up to the
// filesystem root (the walk does not stop at the workspace root) plus
// the one under $HOME, and finally built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	ConfigDirName  = ".quarry"
	ConfigFileName = "config.toml"
	EnvPrefix      = "QUARRY_"
)

// Config is the resolved configuration tree: a flat map of dotted keys
// to string values, plus array-valued keys tracked separately so
// higher-precedence layers can append to rather than replace a lower
// layer's list (e.g. a profile's compilerflags).
type Config struct {
	values map[string]string
	arrays map[string][]string
	// layers records one unmerged view per source, most general first,
	// for `quarry config --show-origin`-style diagnostics.
	layers []Layer
}

// Layer is one unmerged source in the precedence chain.
type Layer struct {
	Source string // "default", "env", "cli", or the config.toml path it came from
	Values map[string]string
	Arrays map[string][]string
}

// Default returns the built-in configuration values every workspace has
// even with no .quarry/config.toml anywhere in its ancestry.
func Default() *Config {
	return &Config{
		values: map[string]string{
			"build.jobs":       "0", // 0 means "number of CPUs"
			"term.verbose":     "false",
			"net.offline":      "false",
			"registry.default": "https://index.quarrybuild.dev",
		},
		arrays: map[string][]string{},
	}
}

// Resolve builds the full configuration for a package at dir: defaults,
// overlaid by every .quarry/config.toml found walking from dir to the
// filesystem root and then $HOME, overlaid by cliOverrides ("key=value"
// strings as passed to --config), overlaid by QUARRY_* environment
// variables, in that increasing order of precedence.
func Resolve(dir string, cliOverrides []string, env []string) (*Config, error) {
	cfg := Default()
	cfg.layers = append(cfg.layers, Layer{Source: "default", Values: cloneMap(cfg.values)})

	for _, path := range ancestorConfigPaths(dir) {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(*layer)
		cfg.layers = append(cfg.layers, *layer)
	}

	if home, err := os.UserHomeDir(); err == nil {
		layer, err := loadLayer(filepath.Join(home, ConfigDirName, ConfigFileName))
		if err != nil {
			return nil, err
		}
		if layer != nil {
			cfg.merge(*layer)
			cfg.layers = append(cfg.layers, *layer)
		}
	}

	if len(cliOverrides) > 0 {
		layer := Layer{Source: "cli", Values: map[string]string{}}
		for _, kv := range cliOverrides {
			key, val, err := splitKV(kv)
			if err != nil {
				return nil, err
			}
			layer.Values[key] = val
		}
		cfg.merge(layer)
		cfg.layers = append(cfg.layers, layer)
	}

	envLayer := Layer{Source: "env", Values: map[string]string{}}
	for _, kv := range env {
		key, val, ok := envKV(kv)
		if !ok {
			continue
		}
		envLayer.Values[key] = val
	}
	if len(envLayer.Values) > 0 {
		cfg.merge(envLayer)
		cfg.layers = append(cfg.layers, envLayer)
	}

	return cfg, nil
}

// ancestorConfigPaths returns every .quarry/config.toml under dir's
// ancestry, from the filesystem root down to dir, so closer layers are
// merged last (and therefore win ties, aside from array-append merge).
func ancestorConfigPaths(dir string) []string {
	var reversed []string
	cur := dir
	for {
		reversed = append(reversed, filepath.Join(cur, ConfigDirName, ConfigFileName))
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	paths := make([]string, len(reversed))
	for i, p := range reversed {
		paths[len(reversed)-1-i] = p
	}
	return paths
}

type rawFile struct {
	Build struct {
		Jobs          int      `toml:"jobs"`
		CompilerFlags []string `toml:"compilerflags"`
	} `toml:"build"`
	Term struct {
		Verbose *bool `toml:"verbose"`
	} `toml:"term"`
	Net struct {
		Offline *bool `toml:"offline"`
	} `toml:"net"`
	Registry map[string]struct {
		Index string `toml:"index"`
	} `toml:"registries"`
}

func loadLayer(path string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw rawFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	layer := Layer{Source: path, Values: map[string]string{}, Arrays: map[string][]string{}}
	if raw.Build.Jobs != 0 {
		layer.Values["build.jobs"] = strconv.Itoa(raw.Build.Jobs)
	}
	if len(raw.Build.CompilerFlags) > 0 {
		layer.Arrays["build.compilerflags"] = raw.Build.CompilerFlags
	}
	if raw.Term.Verbose != nil {
		layer.Values["term.verbose"] = strconv.FormatBool(*raw.Term.Verbose)
	}
	if raw.Net.Offline != nil {
		layer.Values["net.offline"] = strconv.FormatBool(*raw.Net.Offline)
	}
	for name, reg := range raw.Registry {
		layer.Values["registries."+name+".index"] = reg.Index
	}
	return &layer, nil
}

func (c *Config) merge(layer Layer) {
	if c.values == nil {
		c.values = map[string]string{}
	}
	if c.arrays == nil {
		c.arrays = map[string][]string{}
	}
	for k, v := range layer.Values {
		c.values[k] = v
	}
	for k, v := range layer.Arrays {
		c.arrays[k] = append(c.arrays[k], v...)
	}
}

// Get returns the resolved string value for a dotted key.
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// GetArray returns the resolved, append-merged array value for a dotted
// key (every layer's entries, in ancestor-to-most-specific order).
func (c *Config) GetArray(key string) []string {
	return c.arrays[key]
}

// Layers returns the unmerged per-source views, most general first, for
// `quarry config --show-origin` diagnostics.
func (c *Config) Layers() []Layer {
	return c.layers
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func splitKV(kv string) (key, val string, err error) {
	idx := strings.IndexByte(kv, '=')
	if idx < 0 {
		return "", "", fmt.Errorf("config: malformed --config override %q, want key=value", kv)
	}
	return kv[:idx], kv[idx+1:], nil
}

// envKV converts QUARRY_BUILD_JOBS=4 into ("build.jobs", "4"), lower-
// casing and dotting the double-underscore-free remainder of the key.
func envKV(kv string) (key, val string, ok bool) {
	idx := strings.IndexByte(kv, '=')
	if idx < 0 {
		return "", "", false
	}
	name, value := kv[:idx], kv[idx+1:]
	if !strings.HasPrefix(name, EnvPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(name, EnvPrefix)
	if rest == "" {
		return "", "", false
	}
	dotted := strings.ToLower(strings.ReplaceAll(rest, "_", "."))
	return dotted, value, true
}
