package geom_test

import (
	"math"
	"testing"

	"github.com/colvar-go/colvar/internal/geom"
)

func TestVec3_Arithmetic(t *testing.T) {
	v := geom.Vec3{1, 2, 3}
	w := geom.Vec3{4, -5, 6}

	if got := v.Add(w); got != (geom.Vec3{5, -3, 9}) {
		t.Errorf("Add = %v", got)
	}
	if got := v.Sub(w); got != (geom.Vec3{-3, 7, -3}) {
		t.Errorf("Sub = %v", got)
	}
	// 4 - 10 + 18 = 12
	if got := v.Dot(w); got != 12 {
		t.Errorf("Dot = %f, want 12", got)
	}
	cross := v.Cross(w)
	if cross != (geom.Vec3{27, 6, -13}) {
		t.Errorf("Cross = %v, want {27 6 -13}", cross)
	}
	if math.Abs(v.Norm()-math.Sqrt(14)) > 1e-15 {
		t.Errorf("Norm = %f, want sqrt(14)", v.Norm())
	}
	if v.Norm2() != 14 {
		t.Errorf("Norm2 = %f, want 14", v.Norm2())
	}
}

func TestOuter(t *testing.T) {
	o := geom.Outer(geom.Vec3{1, 2, 0}, geom.Vec3{3, 0, 4})
	want := geom.Tensor3{{3, 0, 4}, {6, 0, 8}, {0, 0, 0}}
	if o != want {
		t.Errorf("Outer = %v, want %v", o, want)
	}
}

func TestCell_MinimumImage(t *testing.T) {
	c := geom.Cell{Lengths: geom.Vec3{10, 10, 10}}
	// 9.5 - 0.5 wraps to -1, not +9.
	d := c.Distance(geom.Vec3{0.5, 0, 0}, geom.Vec3{9.5, 0, 0})
	if math.Abs(d[0]-(-1)) > 1e-15 {
		t.Errorf("Distance x = %f, want -1", d[0])
	}

	// A zero length disables wrapping along that axis.
	open := geom.Cell{Lengths: geom.Vec3{0, 10, 10}}
	d = open.Distance(geom.Vec3{0.5, 0, 0}, geom.Vec3{9.5, 0, 0})
	if d[0] != 9 {
		t.Errorf("aperiodic Distance x = %f, want 9", d[0])
	}
}

func TestCell_Volume(t *testing.T) {
	c := geom.Cell{Lengths: geom.Vec3{2, 3, 4}}
	if c.Volume() != 24 {
		t.Errorf("Volume = %f, want 24", c.Volume())
	}
	if (geom.Cell{}).Volume() != 0 {
		t.Error("aperiodic cell should have zero volume")
	}
}
