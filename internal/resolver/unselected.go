package resolver

import "container/heap"

// unselected is a container/heap priority queue of pending dependency
// picks, ordered so that dependencies of already-activated packages with
// fewer remaining candidates are tried first — the deterministic
// ordering that lets the solver prune conflicting branches earlier
// rather than later.
type unselected struct {
	items []*pendingDep
	// candidateCount is consulted by Less to prefer fewer-candidate deps
	// first; populated by the solver as it queries sources.
	candidateCount map[string]int
}

func newUnselected() *unselected {
	return &unselected{candidateCount: map[string]int{}}
}

func (u *unselected) Len() int { return len(u.items) }

func (u *unselected) Less(i, j int) bool {
	a, b := u.items[i], u.items[j]
	ca, cb := u.candidateCount[a.name], u.candidateCount[b.name]
	if ca == 0 {
		ca = 1 << 30
	}
	if cb == 0 {
		cb = 1 << 30
	}
	if ca != cb {
		return ca < cb
	}
	if a.name != b.name {
		return a.name < b.name
	}
	return a.fromName < b.fromName
}

func (u *unselected) Swap(i, j int) { u.items[i], u.items[j] = u.items[j], u.items[i] }

func (u *unselected) Push(x any) { u.items = append(u.items, x.(*pendingDep)) }

func (u *unselected) Pop() any {
	old := u.items
	n := len(old)
	item := old[n-1]
	u.items = old[:n-1]
	return item
}

// enqueue adds a pending dependency to the queue, returning the record
// so the caller can remember it on the selection stack for backtracking.
func (u *unselected) enqueue(d *pendingDep) *pendingDep {
	heap.Push(u, d)
	return d
}

// next pops the highest-priority pending dependency, or reports false
// when the queue is empty (resolution is complete).
func (u *unselected) next() (*pendingDep, bool) {
	if u.Len() == 0 {
		return nil, false
	}
	return heap.Pop(u).(*pendingDep), true
}

// remove deletes every pending dep in victims from the queue, used
// during backtracking to undo a selection's enqueued edges.
func (u *unselected) remove(victims []*pendingDep) {
	if len(victims) == 0 {
		return
	}
	drop := make(map[*pendingDep]bool, len(victims))
	for _, v := range victims {
		drop[v] = true
	}
	kept := u.items[:0]
	for _, item := range u.items {
		if !drop[item] {
			kept = append(kept, item)
		}
	}
	u.items = kept
	heap.Init(u)
}
