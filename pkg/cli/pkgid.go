package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrybuild/quarry/internal/resolver"
)

func init() {
	rootCmd.AddCommand(pkgidCmd)
}

var pkgidCmd = &cobra.Command{
	Use:   "pkgid [spec]",
	Short: "Print the fully qualified package id matching a partial spec",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := resolveWorkspace(cmd, false)
		if err != nil {
			return err
		}

		var spec string
		if len(args) == 1 {
			spec = args[0]
		}

		matches := matchPkgID(r.resolved, spec)
		switch len(matches) {
		case 0:
			return fmt.Errorf("no package matches spec %q", spec)
		case 1:
			fmt.Println(matches[0].String())
			return nil
		default:
			var names []string
			for _, m := range matches {
				names = append(names, m.String())
			}
			return fmt.Errorf("spec %q is ambiguous, matches: %s", spec, strings.Join(names, ", "))
		}
	},
}

// matchPkgID resolves a partial spec (bare name, "name@version", or
// "name@version#source") against every node in the resolved graph,
// per spec.md §7's supplemented partial-spec resolution feature. An
// empty spec matches every node (used to report ambiguity with the
// full candidate list).
func matchPkgID(g *resolver.Graph, spec string) []fmt.Stringer {
	name, version, src := splitPkgSpec(spec)

	var out []fmt.Stringer
	for _, n := range g.Nodes {
		if name != "" && n.ID.Name.String() != name {
			continue
		}
		if version != "" && n.ID.Version.String() != version {
			continue
		}
		if src != "" && n.ID.Source.Describe() != src {
			continue
		}
		id := n.ID
		out = append(out, id)
	}
	return out
}

func splitPkgSpec(spec string) (name, version, source string) {
	if spec == "" {
		return "", "", ""
	}
	rest := spec
	if i := strings.Index(rest, "#"); i >= 0 {
		source = rest[:i]
		rest = rest[i+1:]
		name, version = rest, ""
		if j := strings.LastIndex(rest, "@"); j >= 0 {
			name, version = rest[:j], rest[j+1:]
		}
		return
	}
	if j := strings.LastIndex(rest, "@"); j >= 0 {
		return rest[:j], rest[j+1:], ""
	}
	return rest, "", ""
}
