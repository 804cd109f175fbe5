package resolver

import "github.com/quarrybuild/quarry/internal/ident"

// pendingDep is one not-yet-resolved dependency edge the unselected
// queue holds: which package requested it, what it requires, and why
// (so a conflict can report a blame chain).
type pendingDep struct {
	fromName    string
	name        string
	requirement ident.Requirement
	kind        EdgeKind
	platform    string
	optional    bool
	features    []string
	defaultFeat bool
}

// selectedAtom is one entry on the selection stack: a chosen package
// version plus the pending deps it was responsible for enqueuing, so
// backtracking can remove exactly those entries from the unselected
// queue.
type selectedAtom struct {
	id           ident.PackageID
	enqueued     []*pendingDep
	activatedFeatures map[string]bool
}

// selection is the stack of currently-selected atoms, along with an
// index for fast "is this package (at this compatibility class) already
// selected" checks during satisfiability testing.
type selection struct {
	stack []selectedAtom
	// byClass maps name -> compatibility class -> selected atom index,
	// enforcing "only once per compatibility class" from the identifier
	// invariant.
	byClass map[string]map[string]int
	// links maps a links value to the package name that claimed it.
	links map[string]string
}

func newSelection() *selection {
	return &selection{
		byClass: map[string]map[string]int{},
		links:   map[string]string{},
	}
}

func (s *selection) find(name string) (selectedAtom, bool) {
	classes := s.byClass[name]
	for _, idx := range classes {
		return s.stack[idx], true
	}
	return selectedAtom{}, false
}

func (s *selection) findClass(name, class string) (selectedAtom, bool) {
	classes, ok := s.byClass[name]
	if !ok {
		return selectedAtom{}, false
	}
	idx, ok := classes[class]
	if !ok {
		return selectedAtom{}, false
	}
	return s.stack[idx], true
}

func (s *selection) push(a selectedAtom, links string) {
	idx := len(s.stack)
	s.stack = append(s.stack, a)
	name := a.id.Name.String()
	class := a.id.Version.CompatibleClass()
	if s.byClass[name] == nil {
		s.byClass[name] = map[string]int{}
	}
	s.byClass[name][class] = idx
	if links != "" {
		s.links[links] = name
	}
}

// pop removes and returns the most recently selected atom.
func (s *selection) pop() selectedAtom {
	a := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	name := a.id.Name.String()
	class := a.id.Version.CompatibleClass()
	delete(s.byClass[name], class)
	for links, owner := range s.links {
		if owner == name {
			delete(s.links, links)
		}
	}
	return a
}

func (s *selection) depth() int { return len(s.stack) }
