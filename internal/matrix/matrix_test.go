package matrix_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/colvar-go/colvar/internal/check"
	"github.com/colvar-go/colvar/internal/engine"
	"github.com/colvar-go/colvar/internal/matrix"
	"github.com/colvar-go/colvar/internal/parallel"
	"github.com/colvar-go/colvar/internal/value"
)

func vectorOf(name string, data ...float64) *value.Value {
	v := value.NewVector(name, len(data))
	for i, x := range data {
		v.Set(i, x)
	}
	return v
}

func TestOuterProduct_Elements(t *testing.T) {
	u := vectorOf("u", 1, 2, 3, 4, 5)
	v := vectorOf("v", 0.5, 1.5, 2.5, 3.5, 4.5)
	o, err := matrix.NewOuterProduct("o", u, v, parallel.Serial())
	require.NoError(t, err)
	require.NoError(t, o.Calculate(engine.NewSystem(0)))

	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			assert.Equal(t, u.Get(i)*v.Get(j), o.Matrix().Element(i, j))
		}
	}

	// Against the dense reference product.
	var want mat.Dense
	want.Outer(1, mat.NewVecDense(5, u.Data()), mat.NewVecDense(5, v.Data()))
	assert.Zero(t, check.MatrixMaxDiff(o.Matrix().Dense(), &want))
}

func TestOuterProduct_TwoDerivativesPerElement(t *testing.T) {
	u := vectorOf("u", 1, 2, 3, 4, 5)
	v := vectorOf("v", 0.5, 1.5, 2.5, 3.5, 4.5)
	o, err := matrix.NewOuterProduct("o", u, v, parallel.Serial())
	require.NoError(t, err)
	require.NoError(t, o.Calculate(engine.NewSystem(0)))

	st := o.DerivativeStore()
	for i := 0; i < 5; i++ {
		require.Equal(t, 5, st.ElementCount(i))
		for k := 0; k < 5; k++ {
			idx, der := st.Element(i, k)
			col := o.Matrix().RowIndex(i, k)
			require.Len(t, idx, 2)
			assert.Equal(t, i, idx[0])
			assert.Equal(t, 5+col, idx[1])
			assert.Equal(t, v.Get(col), der[0])
			assert.Equal(t, u.Get(i), der[1])
		}
	}
}

func TestOuterProduct_ZeroRowSkipsStorageNotBookkeeping(t *testing.T) {
	u := vectorOf("u", 1, 0, 2)
	v := vectorOf("v", 1, 1, 1)
	o, err := matrix.NewOuterProduct("o", u, v, parallel.Serial())
	require.NoError(t, err)
	require.NoError(t, o.Calculate(engine.NewSystem(0)))

	// Every element of row 1 is zero: nothing stored, nothing to read.
	assert.Equal(t, 0, o.Matrix().RowLength(1))
	assert.Equal(t, 0, o.DerivativeStore().ElementCount(1))
	assert.Zero(t, o.Matrix().Element(1, 2))

	// The derivative-index bookkeeping for the row is still complete: the
	// zero elements had nonzero derivatives, and those indices were
	// registered even though the values were dropped.
	idx := o.DerivativeStore().RowIndices(1)
	assert.Contains(t, idx, 1)   // u[1]
	assert.Contains(t, idx, 3+0) // v[0]
	assert.Contains(t, idx, 3+2) // v[2]
	assert.Len(t, idx, 4)

	// Nonzero rows are unaffected.
	assert.Equal(t, 3, o.Matrix().RowLength(0))
}

func TestOuterProduct_DiagonalZero(t *testing.T) {
	u := vectorOf("u", 1, 2, 3)
	v := vectorOf("v", 4, 5, 6)
	o, err := matrix.NewOuterProduct("o", u, v, parallel.Serial(), matrix.WithDiagonalZero())
	require.NoError(t, err)
	require.NoError(t, o.Calculate(engine.NewSystem(0)))

	for i := 0; i < 3; i++ {
		assert.Zero(t, o.Matrix().Element(i, i))
		assert.Equal(t, 2, o.Matrix().RowLength(i))
	}
	assert.Equal(t, u.Get(0)*v.Get(1), o.Matrix().Element(0, 1))
}

func TestOuterProduct_MaskRestrictsColumns(t *testing.T) {
	u := vectorOf("u", 1, 2, 3)
	v := vectorOf("v", 4, 5, 6)
	mask, err := value.NewSparseMatrix("m", 3, 3, 2)
	require.NoError(t, err)
	mask.SetRowElement(0, 0, 2, 1)
	mask.SetRowLength(0, 1)
	mask.SetRowElement(2, 0, 0, 1)
	mask.SetRowElement(2, 1, 1, 1)
	mask.SetRowLength(2, 2)

	o, err := matrix.NewOuterProduct("o", u, v, parallel.Serial(), matrix.WithMask(mask))
	require.NoError(t, err)
	require.NoError(t, o.Calculate(engine.NewSystem(0)))

	assert.Equal(t, 1, o.Matrix().RowLength(0))
	assert.Equal(t, u.Get(0)*v.Get(2), o.Matrix().Element(0, 2))
	assert.Zero(t, o.Matrix().Element(0, 1))
	assert.Equal(t, 0, o.Matrix().RowLength(1))
	assert.Equal(t, 2, o.Matrix().RowLength(2))
}

func TestOuterProduct_ForceAdjoint(t *testing.T) {
	u := vectorOf("u", 1, 2, 3)
	v := vectorOf("v", 0.5, -1, 2)
	o, err := matrix.NewOuterProduct("o", u, v, parallel.Serial())
	require.NoError(t, err)
	sys := engine.NewSystem(0)
	require.NoError(t, o.Calculate(sys))

	forces := [][]float64{
		{1, 0, -2},
		{0, 3, 0},
		{0.5, 0.5, 0.5},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if forces[i][j] != 0 {
				o.Matrix().AddForce(i*3+j, forces[i][j])
			}
		}
	}
	o.Apply(sys)

	// d(sum_ij F_ij u_i v_j)/du_i = sum_j F_ij v_j and symmetrically.
	for i := 0; i < 3; i++ {
		want := 0.0
		for j := 0; j < 3; j++ {
			want += forces[i][j] * v.Get(j)
		}
		assert.InDelta(t, want, u.Force(i), 1e-13, "u[%d]", i)
	}
	for j := 0; j < 3; j++ {
		want := 0.0
		for i := 0; i < 3; i++ {
			want += forces[i][j] * u.Get(i)
		}
		assert.InDelta(t, want, v.Force(j), 1e-13, "v[%d]", j)
	}
}

func TestOuterProduct_SerialAndParallelAgree(t *testing.T) {
	u := vectorOf("u", 1, 2, 3, 4, 5, 6, 7, 8)
	v := vectorOf("v", 8, 7, 6, 5, 4, 3, 2, 1)
	run := func(cfg parallel.Config) *mat.Dense {
		o, err := matrix.NewOuterProduct("o", u, v, cfg)
		require.NoError(t, err)
		require.NoError(t, o.Calculate(engine.NewSystem(0)))
		return o.Matrix().Dense()
	}
	serial := run(parallel.Serial())
	par := run(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	assert.Zero(t, check.MatrixMaxDiff(serial, par))
}

func matrixOf(name string, rows, cols int, data ...float64) *value.Value {
	m := value.NewMatrix(name, rows, cols)
	for i, x := range data {
		m.Set(i, x)
	}
	return m
}

func TestProduct_MatrixTimesMatrix(t *testing.T) {
	a := matrixOf("A", 2, 3, 1, 2, 3, 4, 5, 6)
	b := matrixOf("B", 3, 2, 7, 8, 9, 10, 11, 12)
	p, err := matrix.NewProduct("p", a, b, parallel.Serial())
	require.NoError(t, err)
	require.NoError(t, p.Calculate(engine.NewSystem(0)))

	var want mat.Dense
	want.Mul(a.Dense(), b.Dense())
	assert.Zero(t, check.MatrixMaxDiff(p.Matrix().Dense(), &want))

	// One derivative entry per argument element the dot product touches.
	idx, der := p.DerivativeStore().Element(0, 0)
	require.Len(t, idx, 6)
	require.Len(t, der, 6)
}

func TestProduct_MatrixForceAdjoint(t *testing.T) {
	a := matrixOf("A", 2, 3, 1, 2, 3, 4, 5, 6)
	b := matrixOf("B", 3, 2, 7, 8, 9, 10, 11, 12)
	p, err := matrix.NewProduct("p", a, b, parallel.Serial())
	require.NoError(t, err)
	sys := engine.NewSystem(0)
	require.NoError(t, p.Calculate(sys))

	// Force on element (0,1) only.
	p.Matrix().AddForce(0*2+1, 2.0)
	p.Apply(sys)

	// d(P[0,1])/dA[0,q] = B[q,1], d/dB[q,1] = A[0,q].
	for q := 0; q < 3; q++ {
		assert.InDelta(t, 2.0*b.Get(q*2+1), a.Force(0*3+q), 1e-13)
		assert.InDelta(t, 2.0*a.Get(0*3+q), b.Force(q*2+1), 1e-13)
	}
	// Untouched elements receive nothing.
	assert.Zero(t, a.Force(1*3+0))
}

func TestProduct_MatrixAgainstOwnTranspose(t *testing.T) {
	a := matrixOf("A", 3, 2, 0.3, 0.7, -0.5, 0.2, 0.9, -0.1)
	tr, err := matrix.NewTranspose("At", a)
	require.NoError(t, err)
	sys := engine.NewSystem(0)
	require.NoError(t, tr.Calculate(sys))
	require.True(t, tr.IsTransposeOf(a))

	p, err := matrix.NewProduct("g", a, tr.Output(0), parallel.Serial())
	require.NoError(t, err)
	require.NoError(t, p.Calculate(sys))

	// The diagonal is the exact squared norm of each row: the same
	// multiplications in the same order as the hand-rolled sum.
	for i := 0; i < 3; i++ {
		want := 0.0
		for q := 0; q < 2; q++ {
			want += a.Get(i*2+q) * a.Get(i*2+q)
		}
		assert.Equal(t, want, p.Matrix().Element(i, i))
	}
	// The product is symmetric, bit for bit.
	assert.Equal(t, p.Matrix().Element(0, 1), p.Matrix().Element(1, 0))

	// With the diagonal skipped, the off-diagonal elements are untouched
	// and the diagonal is simply absent.
	ps, err := matrix.NewProduct("gs", a, tr.Output(0), parallel.Serial(), matrix.SkipSelfPairs())
	require.NoError(t, err)
	require.NoError(t, ps.Calculate(sys))
	for i := 0; i < 3; i++ {
		assert.Equal(t, 2, ps.Matrix().RowLength(i))
		assert.Zero(t, ps.Matrix().Element(i, i))
		for j := 0; j < 3; j++ {
			if i != j {
				assert.Equal(t, p.Matrix().Element(i, j), ps.Matrix().Element(i, j))
			}
		}
	}
}

func TestProduct_ShapeValidation(t *testing.T) {
	vec := vectorOf("u", 1, 2)
	m := matrixOf("A", 2, 2, 1, 2, 3, 4)

	_, err := matrix.NewProduct("p", m, vec, parallel.Serial())
	assert.Error(t, err)
	_, err = matrix.NewProduct("p", vec, m, parallel.Serial())
	assert.Error(t, err)

	bad := matrixOf("B", 3, 2, 1, 2, 3, 4, 5, 6)
	_, err = matrix.NewProduct("p", m, bad, parallel.Serial())
	assert.Error(t, err)
}

func TestTranspose_ValuesAndForces(t *testing.T) {
	a := matrixOf("A", 2, 3, 1, 2, 3, 4, 5, 6)
	tr, err := matrix.NewTranspose("At", a)
	require.NoError(t, err)
	sys := engine.NewSystem(0)
	require.NoError(t, tr.Calculate(sys))

	out := tr.Output(0)
	require.Equal(t, value.Shape{3, 2}, out.Shape())
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, a.Get(i*3+j), out.Get(j*2+i))
		}
	}

	// Forces pass straight through with the indices swapped.
	out.AddForce(2*2+1, 5.0) // element (2,1) of the transpose
	tr.Apply(sys)
	assert.Equal(t, 5.0, a.Force(1*3+2))
}

func TestTranspose_SparseArgument(t *testing.T) {
	s, err := value.NewSparseMatrix("c", 2, 3, 2)
	require.NoError(t, err)
	s.SetRowElement(0, 0, 2, 1.5)
	s.SetRowLength(0, 1)
	s.SetRowElement(1, 0, 0, -2.5)
	s.SetRowLength(1, 1)

	tr, err := matrix.NewTranspose("ct", s)
	require.NoError(t, err)
	require.NoError(t, tr.Calculate(engine.NewSystem(0)))

	out := tr.Output(0)
	assert.Equal(t, 1.5, out.Get(2*2+0))
	assert.Equal(t, -2.5, out.Get(0*2+1))
	assert.Zero(t, out.Get(1*2+0))
}

func TestRowSum_ValuesAndForceForwarding(t *testing.T) {
	s, err := value.NewSparseMatrix("c", 2, 4, 3)
	require.NoError(t, err)
	s.SetRowElement(0, 0, 1, 0.25)
	s.SetRowElement(0, 1, 3, 0.5)
	s.SetRowLength(0, 2)

	r, err := matrix.NewRowSum("cn", s)
	require.NoError(t, err)
	sys := engine.NewSystem(0)
	require.NoError(t, r.Calculate(sys))

	assert.InDelta(t, 0.75, r.Output(0).Get(0), 1e-15)
	assert.Zero(t, r.Output(0).Get(1))

	r.Output(0).AddForce(0, 3.0)
	r.Apply(sys)
	assert.Equal(t, 3.0, s.Force(0*4+1))
	assert.Equal(t, 3.0, s.Force(0*4+3))
	assert.Zero(t, s.Force(0*4+0))
}
