package resolver

import (
	"testing"

	"github.com/quarrybuild/quarry/internal/manifest"
)

func mustFeatureValue(t *testing.T, raw string) manifest.FeatureValue {
	t.Helper()
	fv, err := manifest.ParseFeatureValue(raw)
	if err != nil {
		t.Fatalf("ParseFeatureValue(%q): %v", raw, err)
	}
	return fv
}

func TestExpandFeatures_DepSyntaxDisablesImplicitActivation(t *testing.T) {
	m := &manifest.Manifest{
		Features: manifest.FeatureSet{
			"default": {mustFeatureValue(t, "tls")},
			"tls":     {mustFeatureValue(t, "dep:openssl")},
		},
	}
	features, activatedDeps, _ := expandFeatures(m, nil, true, nil)
	if !features["default"] || !features["tls"] {
		t.Fatalf("expected default and tls activated, got %+v", features)
	}
	if !activatedDeps["openssl"] {
		t.Fatalf("expected openssl activated via dep: syntax, got %+v", activatedDeps)
	}
	if activatedDeps["tls"] {
		t.Fatalf("expected no implicit activation of a dependency named tls, got %+v", activatedDeps)
	}
}

func TestExpandFeatures_PlainImplicitlyActivatesOptionalDep(t *testing.T) {
	m := &manifest.Manifest{
		Features: manifest.FeatureSet{
			"openssl": nil,
		},
	}
	_, activatedDeps, _ := expandFeatures(m, []string{"openssl"}, false, nil)
	if !activatedDeps["openssl"] {
		t.Fatalf("expected implicit optional-dependency activation, got %+v", activatedDeps)
	}
}

func TestExpandFeatures_WeakDepFeatOnlyWhenActive(t *testing.T) {
	m := &manifest.Manifest{
		Features: manifest.FeatureSet{
			"extra": {mustFeatureValue(t, "openssl?/vendored")},
		},
	}
	_, _, depFeatures := expandFeatures(m, []string{"extra"}, false, map[string]bool{})
	if len(depFeatures["openssl"]) != 0 {
		t.Fatalf("expected weak dep/feat to be dropped when dep inactive, got %+v", depFeatures)
	}

	_, _, depFeatures2 := expandFeatures(m, []string{"extra"}, false, map[string]bool{"openssl": true})
	if len(depFeatures2["openssl"]) != 1 {
		t.Fatalf("expected weak dep/feat to apply when dep active, got %+v", depFeatures2)
	}
}

func TestUnifyFeatures_Dedupe(t *testing.T) {
	out := unifyFeatures([]string{"a", "b"}, []string{"b", "c"})
	if len(out) != 3 {
		t.Fatalf("expected 3 unique features, got %v", out)
	}
}

func TestSummaryFeatureSet_ParsesAndDropsMalformed(t *testing.T) {
	fs := summaryFeatureSet(map[string][]string{
		"tls":   {"dep:openssl"},
		"weird": {""},
	})
	if len(fs["tls"]) != 1 || fs["tls"][0].Kind != manifest.FeatureDep {
		t.Fatalf("expected tls to parse to a FeatureDep value, got %+v", fs["tls"])
	}
	if len(fs["weird"]) != 0 {
		t.Fatalf("expected the malformed entry to be dropped, got %+v", fs["weird"])
	}
}

func TestExpandEdgeFeatures_ScopedToOneEdge(t *testing.T) {
	m := &manifest.Manifest{
		Features: manifest.FeatureSet{
			"default": {mustFeatureValue(t, "std")},
			"std":     nil,
		},
	}
	features := ExpandEdgeFeatures(m, nil, true)
	if !features["default"] || !features["std"] {
		t.Fatalf("expected default features expanded for this edge, got %+v", features)
	}

	bare := ExpandEdgeFeatures(m, nil, false)
	if bare["default"] || bare["std"] {
		t.Fatalf("expected no features for an edge with default features disabled, got %+v", bare)
	}
}
