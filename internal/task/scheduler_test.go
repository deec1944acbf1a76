package task_test

import (
	"sync"
	"testing"

	"github.com/colvar-go/colvar/internal/parallel"
	"github.com/colvar-go/colvar/internal/task"
)

// squarePerformer fills out[t] = t*t and records which tasks ran.
type squarePerformer struct {
	mu  sync.Mutex
	ran map[int]int
	out []float64
}

func (p *squarePerformer) PerformTask(index int, ctx *task.Context) {
	ctx.SetValue(0, float64(index*index))
}

func (p *squarePerformer) StoreResults(index int, ctx *task.Context) {
	p.out[index] = ctx.Get(0)
	p.mu.Lock()
	p.ran[index]++
	p.mu.Unlock()
}

func TestScheduler_RunAllTasks(t *testing.T) {
	const n = 100
	s := task.NewScheduler(n, parallel.DefaultConfig())
	p := &squarePerformer{ran: make(map[int]int), out: make([]float64, n)}
	s.RunAllTasks(p, task.Dimensions{Values: 1, Derivatives: 1})

	for i := 0; i < n; i++ {
		if p.ran[i] != 1 {
			t.Errorf("task %d ran %d times, want 1", i, p.ran[i])
		}
		if p.out[i] != float64(i*i) {
			t.Errorf("out[%d] = %f, want %d", i, p.out[i], i*i)
		}
	}
}

func TestScheduler_Deactivate(t *testing.T) {
	const n = 10
	s := task.NewScheduler(n, parallel.Serial())
	s.Deactivate(3)
	s.Deactivate(7)

	active := s.ActiveTasks()
	if len(active) != n-2 {
		t.Fatalf("len(ActiveTasks) = %d, want %d", len(active), n-2)
	}
	for i := 1; i < len(active); i++ {
		if active[i] <= active[i-1] {
			t.Fatal("ActiveTasks not in ascending order")
		}
	}
	if s.IsActive(3) || s.IsActive(7) {
		t.Error("deactivated tasks still active")
	}

	p := &squarePerformer{ran: make(map[int]int), out: make([]float64, n)}
	s.RunAllTasks(p, task.Dimensions{Values: 1, Derivatives: 1})
	if p.ran[3] != 0 || p.ran[7] != 0 {
		t.Error("deactivated tasks were run")
	}
	if p.ran[0] != 1 || p.ran[9] != 1 {
		t.Error("active tasks were skipped")
	}
}

func TestScheduler_ActivateAllRestoresEveryTask(t *testing.T) {
	s := task.NewScheduler(6, parallel.Serial())
	s.Deactivate(1)
	s.Deactivate(4)
	s.ActivateAll()
	if len(s.ActiveTasks()) != 6 {
		t.Errorf("ActiveTasks after ActivateAll = %d, want 6", len(s.ActiveTasks()))
	}
}

func TestScheduler_SerialAndParallelAgree(t *testing.T) {
	const n = 64
	run := func(cfg parallel.Config) []float64 {
		s := task.NewScheduler(n, cfg)
		p := &squarePerformer{ran: make(map[int]int), out: make([]float64, n)}
		s.RunAllTasks(p, task.Dimensions{Values: 1, Derivatives: 1})
		return p.out
	}
	serial := run(parallel.Serial())
	par := run(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	for i := range serial {
		if serial[i] != par[i] {
			t.Fatalf("out[%d]: serial %f, parallel %f", i, serial[i], par[i])
		}
	}
}
