package task_test

import (
	"testing"

	"github.com/colvar-go/colvar/internal/task"
)

func TestContext_TwoPhaseRegistration(t *testing.T) {
	ctx := task.NewContext()
	ctx.Resize(1, 10)

	// Accumulation alone does not make a slot active.
	ctx.AddDerivative(0, 4, 0.5)
	ctx.AddDerivative(0, 4, 0.25)
	if n := ctx.NumberActive(0); n != 0 {
		t.Fatalf("NumberActive before UpdateIndex = %d, want 0", n)
	}
	if d := ctx.Derivative(0, 4); d != 0.75 {
		t.Errorf("Derivative(0,4) = %f, want 0.75", d)
	}

	ctx.UpdateIndex(0, 4)
	if n := ctx.NumberActive(0); n != 1 {
		t.Fatalf("NumberActive after UpdateIndex = %d, want 1", n)
	}
	if j := ctx.ActiveIndex(0, 0); j != 4 {
		t.Errorf("ActiveIndex(0,0) = %d, want 4", j)
	}

	// Registering again must not duplicate the entry.
	ctx.UpdateIndex(0, 4)
	if n := ctx.NumberActive(0); n != 1 {
		t.Errorf("duplicate UpdateIndex grew the active list to %d", n)
	}
}

func TestContext_UpdateIndexWithoutWrite(t *testing.T) {
	ctx := task.NewContext()
	ctx.Resize(1, 6)

	// A slot never written stays inactive even when registration is
	// attempted, so unconditional registration loops are safe.
	ctx.UpdateIndex(0, 3)
	if n := ctx.NumberActive(0); n != 0 {
		t.Errorf("NumberActive = %d, want 0 for an unwritten slot", n)
	}
}

func TestContext_ClearDerivativesIsIdempotent(t *testing.T) {
	ctx := task.NewContext()
	ctx.Resize(2, 8)
	ctx.AddDerivative(0, 2, 1.0)
	ctx.UpdateIndex(0, 2)
	ctx.AddDerivative(1, 5, -3.0)
	ctx.UpdateIndex(1, 5)

	ctx.ClearDerivatives(0)
	if ctx.NumberActive(0) != 0 || ctx.Derivative(0, 2) != 0 {
		t.Error("ClearDerivatives(0) left state behind")
	}
	// Other components keep their state.
	if ctx.NumberActive(1) != 1 || ctx.Derivative(1, 5) != -3.0 {
		t.Error("ClearDerivatives(0) touched component 1")
	}
	// A second clear is a no-op.
	ctx.ClearDerivatives(0)
	if ctx.NumberActive(0) != 0 {
		t.Error("second ClearDerivatives changed state")
	}

	// The context is reusable after a clear.
	ctx.AddDerivative(0, 7, 2.0)
	ctx.UpdateIndex(0, 7)
	if ctx.NumberActive(0) != 1 || ctx.ActiveIndex(0, 0) != 7 {
		t.Error("registration after clear failed")
	}
}

func TestContext_ClearAll(t *testing.T) {
	ctx := task.NewContext()
	ctx.Resize(1, 12)
	ctx.ResizeMatrixStash(1, 4)
	ctx.SetValue(0, 3.5)
	ctx.AddDerivative(0, 1, 1.0)
	ctx.UpdateIndex(0, 1)
	ctx.SetSplitIndex(1)
	ctx.SetNumberOfIndices(5)
	stash := ctx.MatrixIndices(0)
	stash[0] = 9
	ctx.SetNumberOfMatrixIndices(0, 1)

	ctx.ClearAll()
	if ctx.Get(0) != 0 || ctx.NumberActive(0) != 0 {
		t.Error("ClearAll left value state")
	}
	if ctx.SplitIndex() != 0 || ctx.NumberOfIndices() != 0 {
		t.Error("ClearAll left index state")
	}
	if ctx.NumberOfMatrixIndices(0) != 0 {
		t.Error("ClearAll left matrix stash state")
	}
}

func TestContext_SplitIndices(t *testing.T) {
	ctx := task.NewContext()
	ctx.Resize(1, 4)
	ind := ctx.Indices(5)
	ind[0] = 7
	for i := 1; i < 5; i++ {
		ind[i] = i - 1
	}
	ctx.SetSplitIndex(1)
	ctx.SetNumberOfIndices(5)

	if ctx.SplitIndex() != 1 {
		t.Errorf("SplitIndex() = %d, want 1", ctx.SplitIndex())
	}
	got := ctx.Indices(ctx.NumberOfIndices())
	if got[0] != 7 {
		t.Errorf("anchor = %d, want 7", got[0])
	}
	for i := ctx.SplitIndex(); i < ctx.NumberOfIndices(); i++ {
		if got[i] != i-1 {
			t.Errorf("neighbor slot %d = %d, want %d", i, got[i], i-1)
		}
	}
}

func TestContext_MatrixStashOverflow(t *testing.T) {
	ctx := task.NewContext()
	ctx.Resize(1, 3)
	ctx.ResizeMatrixStash(1, 2)
	defer func() {
		if recover() == nil {
			t.Error("stash overflow should panic")
		}
	}()
	ctx.SetNumberOfMatrixIndices(0, 4)
}
