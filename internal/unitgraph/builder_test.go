package unitgraph

import (
	"testing"

	"github.com/quarrybuild/quarry/internal/manifest"
	"github.com/quarrybuild/quarry/internal/resolver"
)

func TestBuilder_Build_SimpleLibWithOneDependency(t *testing.T) {
	root := mustPkg(t, "acme", "1.0.0")
	dep := mustPkg(t, "leftpad", "2.0.0")

	rg := resolver.NewGraph()
	rg.AddEdge(root, dep, resolver.Edge{Kind: resolver.EdgeNormal, DefaultFeatures: true})
	rg.Roots = append(rg.Roots, 0)

	rootManifest := &manifest.Manifest{
		Name: "acme",
		Targets: []manifest.Target{
			{Kind: manifest.TargetLibrary, Name: "acme"},
		},
	}
	depManifest := &manifest.Manifest{
		Name: "leftpad",
		Targets: []manifest.Target{
			{Kind: manifest.TargetLibrary, Name: "leftpad"},
		},
	}

	b := &Builder{
		Resolved: rg,
		Manifests: map[string]*manifest.Manifest{
			root.Key(): rootManifest,
			dep.Key():  depManifest,
		},
		HostTriple:   "x86_64-unknown-linux-gnu",
		TargetTriple: "x86_64-unknown-linux-gnu",
	}

	g, err := b.Build([]RootSpec{
		{Package: root, Target: rootManifest.Targets[0], Mode: ModeBuild},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Roots) != 1 {
		t.Fatalf("expected 1 root unit, got %d", len(g.Roots))
	}
	if len(g.Units) != 2 {
		t.Fatalf("expected 2 units (root + dependency), got %d", len(g.Units))
	}
	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges))
	}
}

func TestBuilder_Build_DecouplesHostAndTargetFeatures(t *testing.T) {
	root := mustPkg(t, "acme", "1.0.0")
	shared := mustPkg(t, "shared", "1.0.0")

	rg := resolver.NewGraph()
	rg.AddEdge(root, shared, resolver.Edge{Kind: resolver.EdgeNormal})
	rg.AddEdge(root, shared, resolver.Edge{Kind: resolver.EdgeBuild, RequestedFeatures: []string{"turbo"}, DefaultFeatures: true})
	rg.Roots = append(rg.Roots, 0)

	rootManifest := &manifest.Manifest{
		Name:    "acme",
		Targets: []manifest.Target{{Kind: manifest.TargetLibrary, Name: "acme"}},
	}
	sharedManifest := &manifest.Manifest{
		Name: "shared",
		Features: manifest.FeatureSet{
			"turbo": nil,
		},
		Targets: []manifest.Target{{Kind: manifest.TargetLibrary, Name: "shared"}},
	}

	b := &Builder{
		Resolved: rg,
		Manifests: map[string]*manifest.Manifest{
			root.Key():   rootManifest,
			shared.Key(): sharedManifest,
		},
		HostTriple:   "x86_64-unknown-linux-gnu",
		TargetTriple: "x86_64-unknown-linux-gnu",
	}

	g, err := b.Build([]RootSpec{
		{Package: root, Target: rootManifest.Targets[0], Mode: ModeBuild},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var hostUnit, targetUnit *Unit
	for i := range g.Units {
		u := &g.Units[i]
		if u.Package.Name.String() != "shared" {
			continue
		}
		if u.Kind == KindHost {
			hostUnit = u
		} else {
			targetUnit = u
		}
	}
	if hostUnit == nil || targetUnit == nil {
		t.Fatalf("expected both a host-kind and a target-kind unit for shared, got %+v", g.Units)
	}
	if len(targetUnit.Features) != 0 {
		t.Fatalf("expected target-kind occurrence to carry no features, got %v", targetUnit.Features)
	}
	if len(hostUnit.Features) != 1 || hostUnit.Features[0] != "turbo" {
		t.Fatalf("expected host-kind occurrence to carry [turbo], got %v", hostUnit.Features)
	}
}

func TestBuilder_Build_BuildScriptSynthesized(t *testing.T) {
	root := mustPkg(t, "acme", "1.0.0")

	rg := resolver.NewGraph()

	rootManifest := &manifest.Manifest{
		Name:  "acme",
		Links: "acme_native",
		Targets: []manifest.Target{
			{Kind: manifest.TargetLibrary, Name: "acme"},
			{Kind: manifest.TargetBuildScript, Name: "build"},
		},
	}

	b := &Builder{
		Resolved:  rg,
		Manifests: map[string]*manifest.Manifest{root.Key(): rootManifest},
	}

	g, err := b.Build([]RootSpec{
		{Package: root, Target: rootManifest.Targets[0], Mode: ModeBuild},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var sawRunScript bool
	for _, u := range g.Units {
		if u.Mode == ModeRunBuildScript {
			sawRunScript = true
			if u.Links != "acme_native" {
				t.Fatalf("run-build-script unit Links = %q, want acme_native", u.Links)
			}
		}
	}
	if !sawRunScript {
		t.Fatalf("expected a synthesized run-build-script unit")
	}
}
