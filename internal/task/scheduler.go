package task

import (
	"fmt"

	"github.com/colvar-go/colvar/internal/parallel"
)

// Performer is the per-task compute callback contract a component exposes to
// the scheduler.
type Performer interface {
	// PerformTask computes everything for one task, accumulating values and
	// sparse derivatives into the context.
	PerformTask(index int, ctx *Context)

	// StoreResults merges one finished task's contribution from the context
	// into the component's persistent value and derivative storage. Calls
	// for different tasks touch disjoint slots, so the scheduler may invoke
	// it concurrently; the numeric result is independent of task order.
	StoreResults(index int, ctx *Context)
}

// Dimensions describes the scratch sizes a component needs per context.
type Dimensions struct {
	Values      int // output components per task
	Derivatives int // derivative-space size
	Matrices    int // matrix outputs needing a row-index stash
	Columns     int // per-row column capacity of those matrices
}

// Scheduler iterates a component's active task set, dispatching each task to
// the component callback with a per-worker context, and merging results into
// persistent storage. Task activity survives across steps until the next
// rebuild epoch.
type Scheduler struct {
	cfg    parallel.Config
	active []bool

	contexts []*Context
	dims     Dimensions
}

// NewScheduler creates a scheduler for n tasks, all initially active.
func NewScheduler(n int, cfg parallel.Config) *Scheduler {
	s := &Scheduler{cfg: cfg, active: make([]bool, n)}
	s.ActivateAll()
	return s
}

// NumberOfTasks returns the size of the full task list.
func (s *Scheduler) NumberOfTasks() int { return len(s.active) }

// Resize changes the size of the task list, reactivating every task.
func (s *Scheduler) Resize(n int) {
	s.active = make([]bool, n)
	s.ActivateAll()
}

// ActivateAll begins a new rebuild epoch: every task becomes active again.
func (s *Scheduler) ActivateAll() {
	for i := range s.active {
		s.active[i] = true
	}
}

// Deactivate skips a task until the next rebuild epoch. A task may
// deactivate itself from inside PerformTask; deactivating other tasks during
// a run is a contract violation.
func (s *Scheduler) Deactivate(i int) {
	if i < 0 || i >= len(s.active) {
		panic(fmt.Sprintf("scheduler: task %d out of range %d", i, len(s.active)))
	}
	s.active[i] = false
}

// IsActive reports whether a task is scheduled this epoch.
func (s *Scheduler) IsActive(i int) bool { return s.active[i] }

// ActiveTasks returns the active task indices in ascending order.
func (s *Scheduler) ActiveTasks() []int {
	list := make([]int, 0, len(s.active))
	for i, on := range s.active {
		if on {
			list = append(list, i)
		}
	}
	return list
}

// RunAllTasks evaluates every active task. Each worker goroutine owns one
// Context; contexts are sized on first use per the component's dimensions
// and cleared between tasks. Merges into persistent storage go through the
// component's StoreResults, which writes disjoint per-task slots, so the
// final numbers do not depend on execution order.
func (s *Scheduler) RunAllTasks(p Performer, dims Dimensions) {
	tasks := s.ActiveTasks()
	nworkers := s.cfg.MaxWorkers(len(tasks))
	if len(s.contexts) < nworkers || s.dims != dims {
		s.contexts = make([]*Context, nworkers)
		for w := range s.contexts {
			ctx := NewContext()
			ctx.Resize(dims.Values, dims.Derivatives)
			if dims.Matrices > 0 {
				ctx.ResizeMatrixStash(dims.Matrices, dims.Columns)
			}
			s.contexts[w] = ctx
		}
		s.dims = dims
	}

	parallel.ForWorkers(len(tasks), func(w, k int) {
		ctx := s.contexts[w]
		ctx.ClearAll()
		ctx.SetTaskIndex(tasks[k])
		p.PerformTask(tasks[k], ctx)
		p.StoreResults(tasks[k], ctx)
	}, s.cfg)
}
