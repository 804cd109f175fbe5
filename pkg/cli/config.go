package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/internal/config"
	"github.com/quarrybuild/quarry/internal/diag"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().Bool("show-origin", false, "print which layer each value came from")
}

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Inspect quarry's resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		showOrigin, _ := cmd.Flags().GetBool("show-origin")

		cwd, err := os.Getwd()
		if err != nil {
			return diag.Wrap(diag.CategoryInternal, "resolving working directory", err)
		}
		flags := readRootFlags(cmd)
		cfg, err := config.Resolve(cwd, flags.configOverrides, os.Environ())
		if err != nil {
			return diag.Wrap(diag.CategoryInternal, "resolving configuration", err)
		}

		if len(args) == 1 {
			return printConfigKey(cfg, args[0], showOrigin)
		}
		return printConfigAll(cfg, showOrigin)
	},
}

func printConfigKey(cfg *config.Config, key string, showOrigin bool) error {
	v, ok := cfg.Get(key)
	if !ok {
		return fmt.Errorf("no such config key %q", key)
	}
	if !showOrigin {
		fmt.Println(v)
		return nil
	}
	origin := "default"
	for _, l := range cfg.Layers() {
		if _, ok := l.Values[key]; ok {
			origin = l.Source
		}
	}
	fmt.Printf("%s = %s  (%s)\n", key, v, origin)
	return nil
}

func printConfigAll(cfg *config.Config, showOrigin bool) error {
	seen := map[string]string{}
	for _, l := range cfg.Layers() {
		for k, v := range l.Values {
			seen[k] = v
			if showOrigin {
				seen[k] = fmt.Sprintf("%s  (%s)", v, l.Source)
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s = %s\n", k, seen[k])
	}
	return nil
}
