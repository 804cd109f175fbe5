package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestSortByCommandOrder_PutsBuildFamilyFirst(t *testing.T) {
	parent := &cobra.Command{Use: "quarry"}
	for _, name := range []string{"tree", "clean", "build", "fetch", "test"} {
		parent.AddCommand(&cobra.Command{Use: name})
	}

	sortByCommandOrder(parent)

	got := make([]string, 0, len(parent.Commands()))
	for _, c := range parent.Commands() {
		got = append(got, c.Name())
	}
	want := []string{"build", "test", "fetch", "tree", "clean"}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("position %d = %q, want %q (full order: %v)", i, got[i], name, got)
		}
	}
}

func TestSortByCommandOrder_UnknownCommandsSortAfterKnownOnes(t *testing.T) {
	parent := &cobra.Command{Use: "quarry"}
	parent.AddCommand(&cobra.Command{Use: "mystery"})
	parent.AddCommand(&cobra.Command{Use: "build"})

	sortByCommandOrder(parent)

	if parent.Commands()[0].Name() != "build" {
		t.Fatalf("expected build first, got %v", parent.Commands())
	}
}
