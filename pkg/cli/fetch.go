package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/internal/source"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Resolve dependencies and ensure every package's source is available locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := resolveWorkspace(cmd, false)
		if err != nil {
			return err
		}

		paths := map[string]string{}
		for name, m := range r.workspace.Members {
			paths[name] = m.Dir
		}
		router := &source.WorkspaceRouter{Paths: paths}

		ctx := context.Background()
		for _, n := range r.resolved.Nodes {
			if _, err := router.Download(ctx, n.ID); err != nil && !errors.Is(err, source.ErrNotImplemented) {
				return fmt.Errorf("fetching %s: %w", n.ID, err)
			}
		}
		return nil
	},
}
