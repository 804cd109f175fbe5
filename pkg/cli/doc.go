package cli

import (
	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/internal/unitgraph"
)

func init() {
	rootCmd.AddCommand(docCmd)
	docCmd.Flags().StringP("package", "p", "", "document only the named workspace member")
}

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Build documentation for a package and its dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, unitgraph.ModeDoc, false)
	},
}
