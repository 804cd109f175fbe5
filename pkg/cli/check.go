package cli

import (
	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/internal/unitgraph"
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringP("package", "p", "", "check only the named workspace member")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a package for compile errors without producing a linked artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, unitgraph.ModeCheck, false)
	},
}
