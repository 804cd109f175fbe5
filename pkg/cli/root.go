// Package cli implements the quarry command-line interface.
package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "quarry builds, tests, and manages multi-package workspaces",
	Long: `quarry is a source package manager and build orchestrator.

It resolves dependencies into a lockfile, compiles a workspace's
packages through an incremental, pipelined unit graph, and runs the
resulting tests and binaries.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, translating any returned error into
// the process exit code its diag.Category implies.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCodeOf(err))
	}
}

// commandOrder defines the display order of commands in help, grouping
// the build pipeline ahead of inspection and maintenance commands.
var commandOrder = map[string]int{
	"build": 1,
	"check": 2,
	"run":   3,
	"test":  4,
	"bench": 5,
	"doc":   6,
	// dependency management
	"update":            20,
	"fetch":             21,
	"generate-lockfile": 22,
	// inspection
	"metadata": 40,
	"pkgid":    41,
	"tree":     42,
	"config":   43,
	// maintenance
	"clean":      60,
	"completion": 90,
	"help":       91,
}

func init() {
	rootCmd.SetVersionTemplate("quarry {{.Version}}\n")

	rootCmd.PersistentFlags().StringSlice("config", nil, "override a config key, e.g. --config build.jobs=4")
	rootCmd.PersistentFlags().Bool("offline", false, "never attempt network access")
	rootCmd.PersistentFlags().Bool("locked", false, "require the lockfile to be up to date without updating it")
	rootCmd.PersistentFlags().Bool("frozen", false, "require the lockfile to be present and up to date, and forbid any network access")
	rootCmd.PersistentFlags().Int("jobs", 0, "number of parallel build jobs (0 = number of CPUs)")
	rootCmd.PersistentFlags().Bool("verbose", false, "print extra diagnostic detail")
	rootCmd.PersistentFlags().String("profile", "dev", "build profile to use (dev, release, or a custom profile)")

	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		sortByCommandOrder(cmd)
		defaultHelp(cmd, args)
	})

	defaultUsage := rootCmd.UsageFunc()
	rootCmd.SetUsageFunc(func(cmd *cobra.Command) error {
		sortByCommandOrder(cmd)
		return defaultUsage(cmd)
	})
}

func sortByCommandOrder(cmd *cobra.Command) {
	sort.SliceStable(cmd.Commands(), func(i, j int) bool {
		iOrder, iOk := commandOrder[cmd.Commands()[i].Name()]
		jOrder, jOk := commandOrder[cmd.Commands()[j].Name()]
		if !iOk {
			iOrder = 50
		}
		if !jOk {
			jOrder = 50
		}
		return iOrder < jOrder
	})
}
