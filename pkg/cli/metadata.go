package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quarrybuild/quarry/internal/diag"
)

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.Flags().String("format", "json", "output format: json or yaml")
}

// metadataPackage is one resolved package's serialized view, the shape
// `quarry metadata` emits for tooling that needs the full resolved
// graph (IDEs, external build systems) without re-implementing the
// resolver.
type metadataPackage struct {
	Name         string   `json:"name" yaml:"name"`
	Version      string   `json:"version" yaml:"version"`
	Source       string   `json:"source" yaml:"source"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Features     []string `json:"features" yaml:"features"`
}

type metadataDoc struct {
	Version    int               `json:"version" yaml:"version"`
	Workspace  []string          `json:"workspace_members" yaml:"workspace_members"`
	Packages   []metadataPackage `json:"packages" yaml:"packages"`
}

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Print the resolved dependency graph in a machine-readable format",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		r, err := resolveWorkspace(cmd, false)
		if err != nil {
			return err
		}

		doc := metadataDoc{Version: 1}
		for name := range r.workspace.Members {
			doc.Workspace = append(doc.Workspace, name)
		}
		for _, n := range r.resolved.Nodes {
			var deps []string
			for _, e := range n.Edges {
				deps = append(deps, r.resolved.Nodes[e.To].ID.Name.String())
			}
			var features []string
			for f, on := range n.ActivatedFeatures {
				if on {
					features = append(features, f)
				}
			}
			doc.Packages = append(doc.Packages, metadataPackage{
				Name:         n.ID.Name.String(),
				Version:      n.ID.Version.String(),
				Source:       n.ID.Source.Describe(),
				Dependencies: deps,
				Features:     features,
			})
		}

		switch format {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			return enc.Encode(doc)
		case "json", "":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		default:
			return diag.Wrap(diag.CategoryUserInput, fmt.Sprintf("unknown --format %q", format), nil)
		}
	},
}
