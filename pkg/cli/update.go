package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Re-resolve dependencies, ignoring versions pinned by the existing lock file",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := resolveWorkspace(cmd, true)
		return err
	},
}
