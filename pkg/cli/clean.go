package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/internal/diag"
	"github.com/quarrybuild/quarry/internal/layout"
	"github.com/quarrybuild/quarry/internal/manifest"
)

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().String("profile", "", "remove only the given profile's output (default: remove all of target/)")
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the shared target directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return diag.Wrap(diag.CategoryInternal, "resolving working directory", err)
		}
		ws, err := manifest.WorkspaceFrom(cwd)
		if err != nil {
			return diag.Wrap(diag.CategoryUserInput, "loading workspace", err)
		}

		profile, _ := cmd.Flags().GetString("profile")
		var target string
		if profile != "" {
			target = layout.New(ws.RootDir, profile).ProfileDir()
		} else {
			target = filepath.Join(ws.RootDir, layout.TargetDir)
		}

		if err := os.RemoveAll(target); err != nil {
			return diag.Wrap(diag.CategoryInternal, "removing target directory", err)
		}
		return nil
	},
}
