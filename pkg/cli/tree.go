package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/internal/ident"
	"github.com/quarrybuild/quarry/internal/resolver"
)

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().StringP("invert", "i", "", "show what depends on the named package instead of what it depends on")
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the resolved dependency tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		invert, _ := cmd.Flags().GetString("invert")

		r, err := resolveWorkspace(cmd, false)
		if err != nil {
			return err
		}

		if invert != "" {
			return printInvertedTree(r.resolved, invert)
		}
		for _, rootIdx := range r.resolved.Roots {
			printTree(r.resolved, rootIdx, "", map[ident.Name]bool{})
		}
		return nil
	},
}

func printTree(g *resolver.Graph, idx resolver.NodeIndex, prefix string, seen map[ident.Name]bool) {
	n := g.Nodes[idx]
	fmt.Printf("%s%s v%s\n", prefix, n.ID.Name, n.ID.Version)
	if seen[n.ID.Name] {
		return
	}
	seen[n.ID.Name] = true
	for _, e := range n.Edges {
		printTree(g, e.To, prefix+"  ", seen)
	}
}

// printInvertedTree prints, for the package named by name, every node
// that depends on it (directly or transitively), per spec.md §7's
// `quarry tree -i` supplemented "why does X depend on Y" feature.
func printInvertedTree(g *resolver.Graph, name string) error {
	parents := map[resolver.NodeIndex][]resolver.NodeIndex{}
	var target resolver.NodeIndex
	found := false
	for i, n := range g.Nodes {
		if n.ID.Name.String() == name {
			target = resolver.NodeIndex(i)
			found = true
		}
		for _, e := range n.Edges {
			parents[e.To] = append(parents[e.To], resolver.NodeIndex(i))
		}
	}
	if !found {
		return fmt.Errorf("no package named %q in the resolved graph", name)
	}

	fmt.Printf("%s v%s\n", g.Nodes[target].ID.Name, g.Nodes[target].ID.Version)
	printInvertedNode(g, target, parents, "  ", map[resolver.NodeIndex]bool{})
	return nil
}

func printInvertedNode(g *resolver.Graph, idx resolver.NodeIndex, parents map[resolver.NodeIndex][]resolver.NodeIndex, prefix string, seen map[resolver.NodeIndex]bool) {
	if seen[idx] {
		return
	}
	seen[idx] = true
	for _, p := range parents[idx] {
		n := g.Nodes[p]
		fmt.Printf("%s%s v%s\n", prefix, n.ID.Name, n.ID.Version)
		printInvertedNode(g, p, parents, prefix+"  ", seen)
	}
}
