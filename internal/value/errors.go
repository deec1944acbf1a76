package value

import "fmt"

// ShapeError reports an attempt to reshape a value in a way that conflicts
// with data that has already been written to it.
type ShapeError struct {
	Name string
	Old  Shape
	New  Shape
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("value %s: cannot reshape from %v to %v after data has been written", e.Name, e.Old, e.New)
}

// NotAMatrixError reports a sparse-matrix accessor called on a value that
// does not use sparse row storage.
type NotAMatrixError struct {
	Name string
}

func (e *NotAMatrixError) Error() string {
	return fmt.Sprintf("value %s: not stored as a sparse matrix", e.Name)
}
