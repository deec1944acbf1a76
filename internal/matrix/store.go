package matrix

// Store keeps the per-element derivative records for one sparse matrix
// output.  The element records run parallel to the column stash held in
// the output value: entry k of row t belongs to the k-th stored column
// of that row.  The row record is the union of derivative indices that
// were active anywhere on the row, in write order, closed out with the
// row-level entries appended at end of row.
type Store struct {
	elemIdx [][][]int
	elemDer [][][]float64
	rowIdx  [][]int
}

func NewStore(rows int) *Store {
	return &Store{
		elemIdx: make([][][]int, rows),
		elemDer: make([][][]float64, rows),
		rowIdx:  make([][]int, rows),
	}
}

func (s *Store) NumberOfRows() int { return len(s.elemIdx) }

// BeginRow discards any records left from the previous pass over row t.
func (s *Store) BeginRow(t int) {
	s.elemIdx[t] = s.elemIdx[t][:0]
	s.elemDer[t] = s.elemDer[t][:0]
	s.rowIdx[t] = s.rowIdx[t][:0]
}

// SetRowIndices records the closed-out derivative index list for row t.
func (s *Store) SetRowIndices(t int, idx []int) {
	s.rowIdx[t] = append(s.rowIdx[t][:0], idx...)
}

func (s *Store) RowIndices(t int) []int { return s.rowIdx[t] }

func (s *Store) ElementCount(t int) int { return len(s.elemIdx[t]) }

func (s *Store) Element(t, k int) ([]int, []float64) {
	return s.elemIdx[t][k], s.elemDer[t][k]
}
