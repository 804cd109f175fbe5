// Package scheduler drives compilation of a unit graph to completion in
// parallel: a single orchestrator goroutine owns the ready queue and
// in-flight count, a pool of worker goroutines run compiler
// invocations, and parallelism is bounded by job-slot tokens from
// internal/jobserver rather than a bare goroutine count, so the pool
// can be shared with a spawned build script or a nested quarry
// invocation.
package scheduler

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quarrybuild/quarry/internal/jobserver"
	"github.com/quarrybuild/quarry/internal/unitgraph"
)

// Executor runs one unit to completion: a compiler invocation for a
// regular unit, or a subprocess execution for a run-build-script unit.
// Callers supply the real implementation; tests supply a fake.
type Executor interface {
	Execute(ctx context.Context, u unitgraph.Unit) error
}

// MetadataExecutor is an Executor that can report a unit's .rmeta ready
// before the unit itself finishes (rustc's own pipelining signal). The
// scheduler type-asserts for this so a plain Executor (tests, or any
// future build-script-only executor) keeps working unmodified; only a
// real compiler.Driver implements it. When an Executor implements this,
// a MetadataReady-level dependent can start as soon as onMetadataReady
// fires, instead of waiting for the dependency's Execute to return.
type MetadataExecutor interface {
	Executor
	ExecuteWithMetadataSignal(ctx context.Context, u unitgraph.Unit, onMetadataReady func()) error
}

// FreshnessChecker decides whether a unit's persisted fingerprint still
// matches its current inputs, letting the scheduler skip recompiling
// it and "execute" it instantaneously instead.
type FreshnessChecker interface {
	Fresh(u unitgraph.Unit) (bool, error)
}

// ProgressKind distinguishes the structured progress events the
// scheduler emits for reporting (`quarry build --timings` et al.).
type ProgressKind int

const (
	ProgressCompiling ProgressKind = iota
	ProgressFresh
	ProgressFinished
)

// ProgressEvent is one structured progress message.
type ProgressEvent struct {
	Unit unitgraph.Unit
	Kind ProgressKind
	Err  error
}

// Scheduler orchestrates a unitgraph.Graph to completion. Fresh and
// Progress are optional: a nil FreshnessChecker always rebuilds, a nil
// Progress channel emits nothing.
type Scheduler struct {
	Graph    *unitgraph.Graph
	Jobs     *jobserver.Pool
	Executor Executor
	Fresh    FreshnessChecker
	Logger   *zap.Logger
	Progress chan<- ProgressEvent
}

type result struct {
	unit unitgraph.UnitIndex
	err  error
}

// Run schedules every unit in the graph until all are complete or a
// worker reports an error, in which case dispatch of new units stops,
// in-flight workers are allowed to finish (no forced kill — compiler
// processes are expected to exit on their own), and the first error is
// returned.
func (s *Scheduler) Run(ctx context.Context) error {
	total := len(s.Graph.Units)
	if total == 0 {
		return nil
	}

	depsByTarget := s.dependentEdges()
	indeg := s.inDegree()
	satisfied := map[edgeKey]bool{}

	ready := make(chan unitgraph.UnitIndex, total)
	done := make(chan result, total)
	meta := make(chan unitgraph.UnitIndex, total)

	eg, workerCtx := errgroup.WithContext(ctx)
	workers := s.Jobs.Capacity()
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			return s.worker(workerCtx, ready, done, meta)
		})
	}

	var initial []unitgraph.UnitIndex
	for idx := 0; idx < total; idx++ {
		i := unitgraph.UnitIndex(idx)
		if indeg[i] == 0 {
			initial = append(initial, i)
		}
	}
	sort.Slice(initial, func(a, b int) bool { return initial[a] < initial[b] })
	dispatched := len(initial)
	for _, i := range initial {
		ready <- i
	}

	// satisfy unblocks every dependent edge into unit that level now
	// satisfies (an edge requiring only MetadataReady is satisfied by
	// either a metadata signal or a full completion; an edge requiring
	// FullyBuilt only by full completion), deduplicated per edge so a
	// metadata signal followed later by that same unit's completion
	// doesn't double-decrement a dependent's in-degree.
	satisfy := func(unit unitgraph.UnitIndex, level unitgraph.ReadinessLevel) {
		for _, e := range depsByTarget[unit] {
			if level < e.Level {
				continue
			}
			key := edgeKey{from: e.From, to: e.To}
			if satisfied[key] {
				continue
			}
			satisfied[key] = true
			indeg[e.From]--
			if indeg[e.From] == 0 {
				ready <- e.From
				dispatched++
			}
		}
	}

	// finished tracks completions of dispatched work; once an error
	// occurs, dispatch of new units stops but already-dispatched or
	// in-flight units are still drained before returning, so the loop
	// condition is against dispatched, not the graph's total size.
	finished := 0
	var firstErr error

	for finished < dispatched {
		select {
		case <-ctx.Done():
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			dispatched = finished
		case u := <-meta:
			if firstErr == nil {
				satisfy(u, unitgraph.MetadataReady)
			}
		case r := <-done:
			finished++
			if r.err != nil && firstErr == nil {
				firstErr = fmt.Errorf("unit %s: %w", s.Graph.Units[r.unit].Package, r.err)
			}
			if r.err == nil && firstErr == nil {
				satisfy(r.unit, unitgraph.FullyBuilt)
			}
		}
	}

	close(ready)
	if waitErr := eg.Wait(); waitErr != nil && firstErr == nil {
		firstErr = waitErr
	}
	return firstErr
}

func (s *Scheduler) worker(ctx context.Context, ready <-chan unitgraph.UnitIndex, done chan<- result, meta chan<- unitgraph.UnitIndex) error {
	for {
		select {
		case idx, ok := <-ready:
			if !ok {
				return nil
			}
			done <- s.runOne(ctx, idx, meta)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduler) runOne(ctx context.Context, idx unitgraph.UnitIndex, meta chan<- unitgraph.UnitIndex) result {
	u := s.Graph.Units[idx]

	if s.Fresh != nil {
		fresh, err := s.Fresh.Fresh(u)
		if err == nil && fresh {
			s.emit(ProgressEvent{Unit: u, Kind: ProgressFresh})
			return result{unit: idx}
		}
	}

	if err := s.Jobs.Acquire(); err != nil {
		return result{unit: idx, err: err}
	}
	defer s.Jobs.Release()

	s.emit(ProgressEvent{Unit: u, Kind: ProgressCompiling})
	onMetadataReady := func() {
		select {
		case meta <- idx:
		default:
		}
	}

	var err error
	if me, ok := s.Executor.(MetadataExecutor); ok {
		err = me.ExecuteWithMetadataSignal(ctx, u, onMetadataReady)
	} else {
		err = s.Executor.Execute(ctx, u)
	}
	s.emit(ProgressEvent{Unit: u, Kind: ProgressFinished, Err: err})
	return result{unit: idx, err: err}
}

func (s *Scheduler) emit(ev ProgressEvent) {
	if s.Progress == nil {
		return
	}
	select {
	case s.Progress <- ev:
	default:
	}
}

// edgeKey identifies one DepEdge for the satisfied-dedup set; a bare
// (From, To) pair is unique since unitgraph never records a duplicate
// edge between the same two units.
type edgeKey struct {
	from, to unitgraph.UnitIndex
}

// dependentEdges returns, for every unit, the edges that depend on it —
// the reverse of Graph.Edges, since an edge records "From depends on
// To" but the ready-queue walk needs to know both what becomes ready
// once a unit reaches a given readiness level and what level each of
// its dependents actually required.
func (s *Scheduler) dependentEdges() map[unitgraph.UnitIndex][]unitgraph.DepEdge {
	out := map[unitgraph.UnitIndex][]unitgraph.DepEdge{}
	for _, e := range s.Graph.Edges {
		out[e.To] = append(out[e.To], e)
	}
	return out
}

// inDegree returns the number of not-yet-satisfied dependencies each
// unit has; a unit becomes ready when this reaches zero.
func (s *Scheduler) inDegree() map[unitgraph.UnitIndex]int {
	out := map[unitgraph.UnitIndex]int{}
	for idx := range s.Graph.Units {
		out[unitgraph.UnitIndex(idx)] = 0
	}
	for _, e := range s.Graph.Edges {
		out[e.From]++
	}
	return out
}
