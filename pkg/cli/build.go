package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/internal/diag"
	"github.com/quarrybuild/quarry/internal/manifest"
	"github.com/quarrybuild/quarry/internal/scheduler"
	"github.com/quarrybuild/quarry/internal/unitgraph"
)

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().Bool("watch", false, "rebuild whenever a source file under the workspace changes")
	buildCmd.Flags().Bool("timings", false, "write a JSON build-timing report to target/<profile>/timings.json")
	buildCmd.Flags().StringP("package", "p", "", "build only the named workspace member")
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the current package and its dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		timings, _ := cmd.Flags().GetBool("timings")

		runBuild := func() error {
			return runOnce(cmd, unitgraph.ModeBuild, timings)
		}

		if !watch {
			return runBuild()
		}
		return watchAndRerun(cmd, runBuild)
	},
}

// runOnce loads/resolves/builds the unit graph for mode and drives it
// through the scheduler once, optionally recording a timing report.
func runOnce(cmd *cobra.Command, mode unitgraph.Mode, timings bool) error {
	pkgFlag, _ := cmd.Flags().GetString("package")

	p, err := newPipeline(cmd, func(ws *manifest.Workspace) ([]unitgraph.RootSpec, error) {
		return buildRoots(ws, pkgFlag, mode)
	})
	if err != nil {
		return err
	}

	var events chan scheduler.ProgressEvent
	var start time.Time
	if timings {
		events = make(chan scheduler.ProgressEvent, len(p.driver.Graph.Units)*3+8)
		start = time.Now()
	}

	runErr := p.run(context.Background(), events)
	if events != nil {
		close(events)
		writeTimings(events, p.layout.ProfileDir(), start)
	}
	return runErr
}

func writeTimings(events <-chan scheduler.ProgressEvent, profileDir string, start time.Time) {
	type entry struct {
		Unit    string `json:"unit"`
		Kind    string `json:"kind"`
		Elapsed string `json:"elapsed"`
	}
	var entries []entry
	for ev := range events {
		kind := "compiling"
		switch ev.Kind {
		case scheduler.ProgressFresh:
			kind = "fresh"
		case scheduler.ProgressFinished:
			kind = "finished"
		}
		entries = append(entries, entry{
			Unit:    ev.Unit.Package.String() + "/" + ev.Unit.Target.Name,
			Kind:    kind,
			Elapsed: time.Since(start).String(),
		})
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(profileDir+"/timings.json", data, 0o644)
}

// watchAndRerun runs fn once immediately, then again every time
// fsnotify observes a write under the current directory, per spec.md
// §7's `build --watch` supplement.
func watchAndRerun(cmd *cobra.Command, fn func() error) error {
	if err := fn(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return diag.Wrap(diag.CategoryInternal, "starting file watcher", err)
	}
	defer watcher.Close()

	cwd, _ := os.Getwd()
	if err := addWatchDirs(watcher, cwd); err != nil {
		return err
	}

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			debounce.Reset(200 * time.Millisecond)
		case <-debounce.C:
			if err := fn(); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", err)
		}
	}
}

func addWatchDirs(w *fsnotify.Watcher, root string) error {
	return filepathWalkDirs(root, func(dir string) error {
		return w.Add(dir)
	})
}

// buildRoots resolves the requested package filter to the set of
// RootSpec entries a build-family command should drive: every
// (binary|library) target of the selected package(s), under mode.
func buildRoots(ws *manifest.Workspace, pkgFlag string, mode unitgraph.Mode) ([]unitgraph.RootSpec, error) {
	var names []string
	if pkgFlag != "" {
		names = []string{pkgFlag}
	} else {
		for name := range ws.Members {
			names = append(names, name)
		}
	}

	var specs []unitgraph.RootSpec
	for _, name := range names {
		m, ok := ws.Members[name]
		if !ok {
			return nil, fmt.Errorf("no such package %q in workspace", name)
		}
		id := idFor(name, m)
		for _, t := range m.Targets {
			if t.Kind != manifest.TargetLibrary && t.Kind != manifest.TargetBinary {
				continue
			}
			specs = append(specs, unitgraph.RootSpec{Package: id, Target: t, Mode: mode})
		}
	}
	return specs, nil
}
