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
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("package", "p", "", "run a binary from the named workspace member")
	runCmd.Flags().String("bin", "", "name of the binary target to run, if the package has more than one")
}

var runCmd = &cobra.Command{
	Use:   "run [-- args...]",
	Short: "Build a binary target and run it",
	RunE: func(cmd *cobra.Command, args []string) error {
		pkgFlag, _ := cmd.Flags().GetString("package")
		binFlag, _ := cmd.Flags().GetString("bin")

		var target string
		p, err := newPipeline(cmd, func(ws *manifest.Workspace) ([]unitgraph.RootSpec, error) {
			spec, name, err := runRoot(ws, pkgFlag, binFlag)
			target = name
			if err != nil {
				return nil, err
			}
			return []unitgraph.RootSpec{spec}, nil
		})
		if err != nil {
			return err
		}

		if err := p.run(context.Background(), nil); err != nil {
			return err
		}

		bin := filepath.Join(p.layout.Deps(), target)
		c := exec.CommandContext(context.Background(), bin, args...)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		c.Stdin = os.Stdin
		c.Dir = p.workspace.RootDir
		if err := c.Run(); err != nil {
			exitCode := 1
			if ee, ok := err.(*exec.ExitError); ok {
				exitCode = ee.ExitCode()
			}
			return diag.WrapBuild(target, exitCode, err)
		}
		return nil
	},
}

func runRoot(ws *manifest.Workspace, pkgFlag, binFlag string) (unitgraph.RootSpec, string, error) {
	var m *manifest.Manifest
	var name string
	if pkgFlag != "" {
		var ok bool
		m, ok = ws.Members[pkgFlag]
		if !ok {
			return unitgraph.RootSpec{}, "", fmt.Errorf("no such package %q in workspace", pkgFlag)
		}
		name = pkgFlag
	} else if len(ws.Members) == 1 {
		for n, mm := range ws.Members {
			name, m = n, mm
		}
	} else if ws.Root != nil {
		name, m = ws.Root.Name, ws.Root
	} else {
		return unitgraph.RootSpec{}, "", fmt.Errorf("multiple packages in workspace; pass -p to choose one")
	}

	bins := packageTargets(m, manifest.TargetBinary)
	if len(bins) == 0 {
		return unitgraph.RootSpec{}, "", fmt.Errorf("package %q has no binary targets", name)
	}
	chosen := bins[0]
	if binFlag != "" {
		found := false
		for _, b := range bins {
			if b.Name == binFlag {
				chosen, found = b, true
				break
			}
		}
		if !found {
			return unitgraph.RootSpec{}, "", fmt.Errorf("package %q has no binary target named %q", name, binFlag)
		}
	} else if len(bins) > 1 {
		return unitgraph.RootSpec{}, "", fmt.Errorf("package %q has multiple binaries; pass --bin to choose one", name)
	}

	return unitgraph.RootSpec{Package: idFor(name, m), Target: chosen, Mode: unitgraph.ModeBuild}, chosen.Name, nil
}
