package resolver

import (
	"sort"

	"github.com/quarrybuild/quarry/internal/source"
)

// versionQueue holds a package's remaining candidates in descending
// version order, already filtered by requirement (by the source's Query)
// and by yank policy (newVersionQueue drops yanked candidates unless the
// existing lock pins that exact version). Patch/replace overlays are not
// applied. The solver advances through it by calling advance() each time
// the current head fails a satisfiability check.
type versionQueue struct {
	name       string
	candidates []source.Summary
	pos        int
}

// newVersionQueue builds a queue from candidates, sorted so the
// highest version is tried first (the typical "prefer latest" resolution
// policy), with candidates pinned by an existing lock entry given
// priority so an unchanged lock is reproduced without churn.
func newVersionQueue(name string, candidates []source.Summary, lockedVersion string) *versionQueue {
	sorted := make([]source.Summary, 0, len(candidates))
	for _, c := range candidates {
		if c.Yanked && (lockedVersion == "" || c.ID.Version.String() != lockedVersion) {
			continue
		}
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if lockedVersion != "" {
			li := sorted[i].ID.Version.String() == lockedVersion
			lj := sorted[j].ID.Version.String() == lockedVersion
			if li != lj {
				return li
			}
		}
		return sorted[j].ID.Version.LessThan(sorted[i].ID.Version)
	})
	return &versionQueue{name: name, candidates: sorted}
}

// current returns the candidate currently being tried, or false once
// every candidate has been exhausted.
func (q *versionQueue) current() (source.Summary, bool) {
	if q.pos >= len(q.candidates) {
		return source.Summary{}, false
	}
	return q.candidates[q.pos], true
}

// advance moves to the next candidate after the current one fails a
// satisfiability check.
func (q *versionQueue) advance() {
	q.pos++
}

func (q *versionQueue) exhausted() bool {
	return q.pos >= len(q.candidates)
}
