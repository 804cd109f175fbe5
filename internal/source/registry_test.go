package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/quarrybuild/quarry/internal/ident"
)

type fakeFetcher struct {
	calls int
	data  []Summary
}

func (f *fakeFetcher) FetchCandidates(ctx context.Context, name string) ([]Summary, string, error) {
	f.calls++
	return f.data, "hash-1", nil
}

func TestRegistrySource_QueryCachesAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	v1, _ := ident.ParseVersion("1.0.0")
	v2, _ := ident.ParseVersion("2.0.0")
	fetcher := &fakeFetcher{data: []Summary{
		{ID: ident.PackageID{Name: "widget", Version: v1}},
		{ID: ident.PackageID{Name: "widget", Version: v2}},
	}}

	src, err := NewRegistrySource("https://index.example.com", filepath.Join(dir, "cache.sqlite"), fetcher)
	if err != nil {
		t.Fatalf("NewRegistrySource: %v", err)
	}
	defer src.Close()

	req, _ := ident.ParseRequirement("^1.0")
	result, err := src.Query(context.Background(), DependencySpec{Name: "widget", Requirement: req})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 matching candidate, got %d", len(result.Candidates))
	}

	if _, err := src.Query(context.Background(), DependencySpec{Name: "widget", Requirement: req}); err != nil {
		t.Fatalf("second Query: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected fetcher to be called once (cached second time), got %d calls", fetcher.calls)
	}

	if err := src.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := src.Query(context.Background(), DependencySpec{Name: "widget", Requirement: req}); err != nil {
		t.Fatalf("Query after Update: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected fetcher to be re-invoked after Update, got %d calls", fetcher.calls)
	}
}
