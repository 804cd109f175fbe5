package resolver

import "github.com/quarrybuild/quarry/internal/manifest"

// summaryFeatureSet parses a candidate's declared [features] table, as
// carried raw on source.Summary before any manifest download, into the
// manifest.FeatureSet shape expandFeatures expects. Entries that fail to
// parse are dropped rather than failing the whole resolve; a registry
// that published a malformed feature value only loses that one entry's
// activation, not the candidate.
func summaryFeatureSet(raw map[string][]string) manifest.FeatureSet {
	fs := make(manifest.FeatureSet, len(raw))
	for name, values := range raw {
		parsed := make([]manifest.FeatureValue, 0, len(values))
		for _, v := range values {
			fv, err := manifest.ParseFeatureValue(v)
			if err != nil {
				continue
			}
			parsed = append(parsed, fv)
		}
		fs[name] = parsed
	}
	return fs
}

// expandFeatures walks a package's feature graph starting from the
// requested feature names (plus "default" when defaultFeatures is true)
// and returns the fully-expanded set of activated plain features, the
// set of optional dependencies thereby activated, and the additional
// dependency features requested via `dep/feat` and `dep?/feat` values.
//
// Weak (`dep?/feat`) entries only take effect if their dependency is
// active, either activated by this expansion or marked in activeDeps,
// which should include every dependency activated by non-feature means (e.g.
// a plain required dependency, or one requested directly by an edge).
func expandFeatures(m *manifest.Manifest, requested []string, defaultFeatures bool, activeDeps map[string]bool) (features map[string]bool, activatedDeps map[string]bool, depFeatures map[string][]string) {
	features = map[string]bool{}
	activatedDeps = map[string]bool{}
	depFeatures = map[string][]string{}

	anyDepSyntax := false
	for _, values := range m.Features {
		for _, v := range values {
			if v.UsesDepSyntax() {
				anyDepSyntax = true
			}
		}
	}

	queue := append([]string{}, requested...)
	if defaultFeatures {
		if _, ok := m.Features["default"]; ok {
			queue = append(queue, "default")
		}
	}

	var weak []manifest.FeatureValue

	var visit func(name string)
	visit = func(name string) {
		if features[name] {
			return
		}
		values, isFeature := m.Features[name]
		if !isFeature {
			// Not a declared feature; if it names an optional dependency
			// directly, activate it (the manifest's own optional-dep
			// reference, independent of the feature table).
			activatedDeps[name] = true
			return
		}
		features[name] = true
		if !anyDepSyntax {
			// A feature named after an optional dependency also activates
			// it, only when the package uses no dep: syntax anywhere.
			activatedDeps[name] = true
		}
		for _, v := range values {
			switch v.Kind {
			case manifest.FeaturePlain:
				visit(v.Name)
				if !anyDepSyntax {
					// Implicit same-named-optional-dependency activation,
					// only when the package uses no dep: syntax anywhere.
					activatedDeps[v.Name] = true
				}
			case manifest.FeatureDep:
				activatedDeps[v.Dep] = true
			case manifest.FeatureDepFeat:
				activatedDeps[v.Dep] = true
				depFeatures[v.Dep] = append(depFeatures[v.Dep], v.DepFeat)
			case manifest.FeatureWeakDepFeat:
				weak = append(weak, v)
			}
		}
	}

	for _, name := range queue {
		visit(name)
	}

	for _, v := range weak {
		if activeDeps[v.Dep] || activatedDeps[v.Dep] {
			depFeatures[v.Dep] = append(depFeatures[v.Dep], v.DepFeat)
		}
	}

	return features, activatedDeps, depFeatures
}

// ExpandEdgeFeatures expands the feature set activated by one specific
// edge into m, independent of any other edge that might also reach m's
// package. The solver itself unifies requests across every edge into
// Node.ActivatedFeatures (classic, non-decoupled resolution), but the
// unit graph builder needs the narrower per-edge view to give a
// host-kind occurrence of a package a different feature set than a
// target-kind occurrence of the same package (decoupled / "feature
// resolver v2" mode, spec §4.F).
func ExpandEdgeFeatures(m *manifest.Manifest, requested []string, defaultFeatures bool) map[string]bool {
	features, _, _ := expandFeatures(m, requested, defaultFeatures, map[string]bool{})
	return features
}

// unifyFeatures merges two requested-feature sets for the same package,
// as the resolver does across every edge that reaches it (classic,
// non-decoupled unification — the union of everything requested).
func unifyFeatures(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{a, b} {
		for _, f := range list {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}
