package manifest

import (
	"fmt"
	"regexp"
	"strings"
)

// FeatureValueKind tags the four forms a feature-value string may take.
type FeatureValueKind int

const (
	// FeaturePlain activates another feature of this package ("feature-name"),
	// and — when the package uses no dep: syntax anywhere — may also
	// activate a same-named optional dependency for backward compatibility.
	FeaturePlain FeatureValueKind = iota
	// FeatureDep activates an optional dependency without an implicit
	// same-named feature ("dep:dep-name").
	FeatureDep
	// FeatureDepFeat activates dep-name (if optional) and requests feat
	// ("dep-name/feat").
	FeatureDepFeat
	// FeatureWeakDepFeat requests feat of dep-name only if dep-name is
	// already activated elsewhere ("dep-name?/feat").
	FeatureWeakDepFeat
)

// FeatureValue is one parsed entry of a feature's activation list.
type FeatureValue struct {
	Kind    FeatureValueKind
	Name    string // feature name, for FeaturePlain
	Dep     string // dependency name, for the dep-referencing kinds
	DepFeat string // requested feature on Dep, for FeatureDepFeat/FeatureWeakDepFeat
	Raw     string
}

// ParseFeatureValue parses one entry from a feature's activation list
// per the four feature-value forms.
func ParseFeatureValue(raw string) (FeatureValue, error) {
	if raw == "" {
		return FeatureValue{}, fmt.Errorf("%w: empty feature value", ErrInvalidManifest)
	}

	if strings.HasPrefix(raw, "dep:") {
		dep := strings.TrimPrefix(raw, "dep:")
		if dep == "" {
			return FeatureValue{}, fmt.Errorf("%w: %q: dep: requires a dependency name", ErrInvalidManifest, raw)
		}
		return FeatureValue{Kind: FeatureDep, Dep: dep, Raw: raw}, nil
	}

	if idx := strings.IndexByte(raw, '/'); idx >= 0 {
		dep := raw[:idx]
		rest := raw[idx+1:]
		weak := strings.HasSuffix(dep, "?")
		if weak {
			dep = strings.TrimSuffix(dep, "?")
		}
		if dep == "" || rest == "" {
			return FeatureValue{}, fmt.Errorf("%w: %q: malformed dep/feat value", ErrInvalidManifest, raw)
		}
		if weak {
			return FeatureValue{Kind: FeatureWeakDepFeat, Dep: dep, DepFeat: rest, Raw: raw}, nil
		}
		return FeatureValue{Kind: FeatureDepFeat, Dep: dep, DepFeat: rest, Raw: raw}, nil
	}

	return FeatureValue{Kind: FeaturePlain, Name: raw, Raw: raw}, nil
}

// featureNamePattern is the class Cargo allows for a [features] table
// key itself (as opposed to a dep/feat value): letters, digits, '_',
// '-', '+', and '.'. Unlike ident's package-name class it allows a
// leading digit and the extra punctuation version-suffix features
// commonly use ("tokio1.0"-style names); '/' is excluded since it is
// reserved for the dep/feat value syntax, not a legal name character.
var featureNamePattern = regexp.MustCompile(`^[A-Za-z0-9_+.-]+$`)

// ValidFeatureName reports whether name is a legal [features] table key.
func ValidFeatureName(name string) bool {
	return name != "" && featureNamePattern.MatchString(name)
}

// UsesDepSyntax reports whether this value is one of the explicit
// dep-referencing forms (dep:, dep/feat, dep?/feat), as opposed to a
// plain feature-name reference.
func (f FeatureValue) UsesDepSyntax() bool {
	return f.Kind != FeaturePlain
}

// FeatureSet is the package's `[features]` table: feature name to its
// list of activation values.
type FeatureSet map[string][]FeatureValue

// anyDepSyntax reports whether any value anywhere in the feature set
// uses dep: syntax. Per the invariant, this disables the implicit
// "feature named after an optional dependency" rule for the whole
// package once true anywhere in it.
func (fs FeatureSet) anyDepSyntax() bool {
	for _, values := range fs {
		for _, v := range values {
			if v.UsesDepSyntax() {
				return true
			}
		}
	}
	return false
}

// validateAcyclic checks that plain feature-name references form no
// cycle, since a feature activating itself transitively can never
// terminate during expansion.
func (fs FeatureSet) validateAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(fs))
	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		switch color[name] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("%w: %s", ErrCyclicFeature, strings.Join(append(stack, name), " -> "))
		}
		color[name] = gray
		for _, v := range fs[name] {
			if v.Kind == FeaturePlain {
				if _, ok := fs[v.Name]; ok {
					if err := visit(v.Name, append(stack, name)); err != nil {
						return err
					}
				}
			}
		}
		color[name] = black
		return nil
	}
	for name := range fs {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}
