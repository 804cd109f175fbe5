package manifest

import (
	"os"
	"path/filepath"
	"strings"
)

// inferTargets walks the fixed filesystem convention for a package
// rooted at dir: a library at src/lib, a binary at src/main or each
// file under src/bin, one test per file under tests/, one benchmark per
// file under benches/, one example per file under examples/.
func inferTargets(dir string) []Target {
	var targets []Target

	if path := firstExisting(dir, "src/lib"); path != "" {
		targets = append(targets, Target{
			Kind: TargetLibrary, Name: libraryName(dir), SourcePath: path,
			Doc: true, Doctest: true, Test: true, Bench: true,
		})
	}

	if path := firstExisting(dir, "src/main"); path != "" {
		targets = append(targets, Target{
			Kind: TargetBinary, Name: libraryName(dir), SourcePath: path,
			Test: true, Bench: true,
		})
	}
	targets = append(targets, scanDir(dir, "src/bin", TargetBinary)...)
	targets = append(targets, scanDir(dir, "tests", TargetTest)...)
	targets = append(targets, scanDir(dir, "benches", TargetBenchmark)...)
	targets = append(targets, scanDir(dir, "examples", TargetExample)...)

	if path := firstExisting(dir, "build"); path != "" {
		targets = append(targets, Target{Kind: TargetBuildScript, Name: "build-script-build", SourcePath: path})
	}

	return targets
}

// firstExisting returns the first file under dir matching stem with any
// of the recognized source extensions, or "" if none exist.
func firstExisting(dir, stem string) string {
	for _, ext := range sourceExtensions {
		candidate := filepath.Join(dir, stem+ext)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			rel, err := filepath.Rel(dir, candidate)
			if err != nil {
				return candidate
			}
			return rel
		}
	}
	return ""
}

// sourceExtensions lists the source file extensions the filesystem
// convention recognizes, tried in order.
var sourceExtensions = []string{".rs", ".go", ".c", ".cpp"}

func scanDir(dir, sub string, kind TargetKind) []Target {
	entries, err := os.ReadDir(filepath.Join(dir, sub))
	if err != nil {
		return nil
	}
	var out []Target
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !isSourceExt(ext) {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		out = append(out, Target{
			Kind:       kind,
			Name:       stem,
			SourcePath: filepath.Join(sub, name),
			Test:       kind == TargetTest,
			Bench:      kind == TargetBenchmark,
		})
	}
	return out
}

func isSourceExt(ext string) bool {
	for _, e := range sourceExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// libraryName derives an inferred target's name from the base name of
// the package directory; the manifest's package.name is not consulted.
func libraryName(dir string) string {
	return filepath.Base(dir)
}
