package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/internal/diag"
	"github.com/quarrybuild/quarry/internal/manifest"
	"github.com/quarrybuild/quarry/internal/unitgraph"
)

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().StringP("package", "p", "", "test only the named workspace member")
	testCmd.Flags().String("filter", "", "only run tests whose name contains this substring")

	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringP("package", "p", "", "benchmark only the named workspace member")
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Compile and run a package's tests",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		return buildAndExecTargets(cmd, unitgraph.ModeTest, manifest.TargetTest, filter)
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Compile and run a package's benchmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return buildAndExecTargets(cmd, unitgraph.ModeBench, manifest.TargetBenchmark, "")
	},
}

// buildAndExecTargets builds every target of kind belonging to the
// selected package(s) under mode, then executes each resulting binary
// in turn, forwarding filterArg as a first positional argument (the
// test-name substring filter) when non-empty.
func buildAndExecTargets(cmd *cobra.Command, mode unitgraph.Mode, kind manifest.TargetKind, filterArg string) error {
	pkgFlag, _ := cmd.Flags().GetString("package")

	var execNames []string
	p, err := newPipeline(cmd, func(ws *manifest.Workspace) ([]unitgraph.RootSpec, error) {
		specs, names, err := testRoots(ws, pkgFlag, mode, kind)
		execNames = names
		return specs, err
	})
	if err != nil {
		return err
	}

	if err := p.run(context.Background(), nil); err != nil {
		return err
	}

	for _, name := range execNames {
		bin := filepath.Join(p.layout.Deps(), name)
		var args []string
		if filterArg != "" {
			args = []string{filterArg}
		}
		c := exec.CommandContext(context.Background(), bin, args...)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		c.Dir = p.workspace.RootDir
		if err := c.Run(); err != nil {
			exitCode := 1
			if ee, ok := err.(*exec.ExitError); ok {
				exitCode = ee.ExitCode()
			}
			return diag.WrapBuild(name, exitCode, err)
		}
	}
	return nil
}

func testRoots(ws *manifest.Workspace, pkgFlag string, mode unitgraph.Mode, kind manifest.TargetKind) ([]unitgraph.RootSpec, []string, error) {
	var names []string
	if pkgFlag != "" {
		names = []string{pkgFlag}
	} else {
		for name := range ws.Members {
			names = append(names, name)
		}
	}

	var specs []unitgraph.RootSpec
	var execNames []string
	for _, name := range names {
		m, ok := ws.Members[name]
		if !ok {
			return nil, nil, fmt.Errorf("no such package %q in workspace", name)
		}
		id := idFor(name, m)
		for _, t := range m.Targets {
			if t.Kind != kind && !(kind == manifest.TargetTest && t.Kind == manifest.TargetLibrary && t.Test) {
				continue
			}
			specs = append(specs, unitgraph.RootSpec{Package: id, Target: t, Mode: mode})
			execNames = append(execNames, t.Name)
		}
	}
	return specs, execNames, nil
}
