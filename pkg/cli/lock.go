package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(generateLockfileCmd)
}

var generateLockfileCmd = &cobra.Command{
	Use:   "generate-lockfile",
	Short: "Resolve dependencies and write quarry.lock without building anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := resolveWorkspace(cmd, false)
		return err
	},
}
