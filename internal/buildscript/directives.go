// Package buildscript implements quarry's build-script execution
// contract: environment assembly, subprocess execution, and the
// stdout directive protocol (renamed cargo:/cargo:: to quarry:/quarry::,
// semantics unchanged) a build script uses to report flags and
// fingerprint dependencies back to the orchestrator.
package buildscript

import (
	"bufio"
	"io"
	"strings"
)

// DirectiveKind is one of the recognized quarry:/quarry:: directives.
type DirectiveKind int

const (
	DirectiveRustcCfg DirectiveKind = iota
	DirectiveRustcCheckCfg
	DirectiveRustcEnv
	DirectiveRustcLinkLib
	DirectiveRustcLinkSearch
	DirectiveRustcLinkArg
	DirectiveRustcFlags
	DirectiveRerunIfChanged
	DirectiveRerunIfEnvChanged
	DirectiveWarning
	DirectiveMetadata
	DirectiveUnknown
)

// Directive is one parsed line of a build script's stdout.
type Directive struct {
	Kind DirectiveKind
	// Key/Value hold the parsed key=value payload; for directives with
	// a single value (rustc-cfg, rerun-if-changed, warning) only Value
	// is set.
	Key   string
	Value string
	Raw   string
}

// Output accumulates every directive a build script's stdout produced,
// bucketed by effect, ready for the scheduler to fold into the owning
// unit's compiler flags and fingerprint.
type Output struct {
	Cfg              []string
	CheckCfg         []string
	Env              map[string]string
	LinkLib          []string
	LinkSearch       []string
	LinkArgs         []string
	RerunIfChanged   []string
	RerunIfEnvChanged []string
	Warnings         []string
	Metadata         map[string]string
	Unrecognized     []string
}

func newOutput() *Output {
	return &Output{
		Env:      map[string]string{},
		Metadata: map[string]string{},
	}
}

// Parse reads r line-by-line, recognizing both the legacy `quarry:KEY=VAL`
// form and the namespaced `quarry::key=val` form (the preferred spelling;
// both may appear in one script's output and are applied in line order),
// and folds every directive into an Output. Unrecognized directives (but
// still prefixed `quarry:`) generate a warning-equivalent entry rather
// than failing the build.
func Parse(r io.Reader) (*Output, error) {
	out := newOutput()
	scanner := bufio.NewScanner(r)
	// Build scripts can legitimately emit long single lines (e.g. a
	// rustc-link-search path list); grow past bufio's 64KiB default.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		d, ok := parseLine(line)
		if !ok {
			continue
		}
		apply(out, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseLine(line string) (Directive, bool) {
	var rest string
	namespaced := false
	switch {
	case strings.HasPrefix(line, "quarry::"):
		rest = strings.TrimPrefix(line, "quarry::")
		namespaced = true
	case strings.HasPrefix(line, "quarry:"):
		rest = strings.TrimPrefix(line, "quarry:")
	default:
		return Directive{}, false
	}

	name, value, hasEq := strings.Cut(rest, "=")
	if !hasEq {
		// A line with no '=' at all is malformed; still worth keeping
		// as unrecognized.
		return Directive{Kind: DirectiveUnknown, Raw: line}, true
	}

	switch name {
	case "rustc-cfg":
		return Directive{Kind: DirectiveRustcCfg, Value: value, Raw: line}, true
	case "rustc-check-cfg":
		return Directive{Kind: DirectiveRustcCheckCfg, Value: value, Raw: line}, true
	case "rustc-env":
		k, v, _ := strings.Cut(value, "=")
		return Directive{Kind: DirectiveRustcEnv, Key: k, Value: v, Raw: line}, true
	case "rustc-link-lib":
		return Directive{Kind: DirectiveRustcLinkLib, Value: value, Raw: line}, true
	case "rustc-link-search":
		return Directive{Kind: DirectiveRustcLinkSearch, Value: value, Raw: line}, true
	case "rustc-link-arg":
		return Directive{Kind: DirectiveRustcLinkArg, Value: value, Raw: line}, true
	case "rustc-flags":
		return Directive{Kind: DirectiveRustcFlags, Value: value, Raw: line}, true
	case "rerun-if-changed":
		return Directive{Kind: DirectiveRerunIfChanged, Value: value, Raw: line}, true
	case "rerun-if-env-changed":
		return Directive{Kind: DirectiveRerunIfEnvChanged, Value: value, Raw: line}, true
	case "warning":
		return Directive{Kind: DirectiveWarning, Value: value, Raw: line}, true
	case "metadata":
		k, v, _ := strings.Cut(value, "=")
		return Directive{Kind: DirectiveMetadata, Key: k, Value: v, Raw: line}, true
	default:
		// Legacy form: `quarry:KEY=VALUE` where KEY isn't one of the
		// reserved directive names is treated as a metadata entry. The
		// namespaced `quarry::` form has no such fallback: an unknown
		// name there is unrecognized.
		if namespaced {
			return Directive{Kind: DirectiveUnknown, Raw: line}, true
		}
		return Directive{Kind: DirectiveMetadata, Key: name, Value: value, Raw: line}, true
	}
}

func apply(out *Output, d Directive) {
	switch d.Kind {
	case DirectiveRustcCfg:
		out.Cfg = append(out.Cfg, d.Value)
	case DirectiveRustcCheckCfg:
		out.CheckCfg = append(out.CheckCfg, d.Value)
	case DirectiveRustcEnv:
		out.Env[d.Key] = d.Value
	case DirectiveRustcLinkLib:
		out.LinkLib = append(out.LinkLib, d.Value)
	case DirectiveRustcLinkSearch:
		out.LinkSearch = append(out.LinkSearch, d.Value)
	case DirectiveRustcLinkArg:
		out.LinkArgs = append(out.LinkArgs, d.Value)
	case DirectiveRustcFlags:
		applyRustcFlags(out, d.Value)
	case DirectiveRerunIfChanged:
		out.RerunIfChanged = append(out.RerunIfChanged, d.Value)
	case DirectiveRerunIfEnvChanged:
		out.RerunIfEnvChanged = append(out.RerunIfEnvChanged, d.Value)
	case DirectiveWarning:
		out.Warnings = append(out.Warnings, d.Value)
	case DirectiveMetadata:
		out.Metadata[d.Key] = d.Value
	default:
		out.Unrecognized = append(out.Unrecognized, d.Raw)
	}
}

// applyRustcFlags parses the limited subset of link-flag forms
// rustc-flags= accepts: "-l name", "-L path", "-l static=name".
func applyRustcFlags(out *Output, value string) {
	fields := strings.Fields(value)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "-l":
			if i+1 < len(fields) {
				i++
				out.LinkLib = append(out.LinkLib, fields[i])
			}
		case "-L":
			if i+1 < len(fields) {
				i++
				out.LinkSearch = append(out.LinkSearch, fields[i])
			}
		}
	}
}
