// Package neighbor implements the cutoff-based column-index collaborator
// consumed by matrix components. For each row anchor it returns the set of
// candidate columns within the cutoff; the returned set is a superset of all
// columns that will receive a nonzero element this step, and it is rebuilt
// lazily on a stride-controlled epoch rather than every step.
package neighbor

import (
	"fmt"

	"github.com/colvar-go/colvar/internal/geom"
)

// List is a cell-free O(N^2)-build neighbor list over two groups of atoms.
// RowAnchors and Columns index into the position array handed to Update.
type List struct {
	cutoff2 float64
	stride  int

	rows, cols []int

	// Per-row neighbor sets, rebuilt at epoch boundaries.
	neigh [][]int

	sinceRebuild int
	built        bool

	// Rows the consumer still considers active; inactive rows skip the
	// rebuild work entirely.
	activeRows []bool
}

// NewList creates a neighbor list with the given cutoff for the row and
// column atom groups. stride is the number of steps between rebuilds; a
// stride of 1 rebuilds every step.
func NewList(rowAtoms, colAtoms []int, cutoff float64, stride int) (*List, error) {
	if cutoff <= 0 {
		return nil, fmt.Errorf("neighbor list: cutoff must be positive, got %g", cutoff)
	}
	if stride < 1 {
		return nil, fmt.Errorf("neighbor list: stride must be at least 1, got %d", stride)
	}
	l := &List{
		cutoff2:    cutoff * cutoff,
		stride:     stride,
		rows:       append([]int(nil), rowAtoms...),
		cols:       append([]int(nil), colAtoms...),
		neigh:      make([][]int, len(rowAtoms)),
		activeRows: make([]bool, len(rowAtoms)),
	}
	for i := range l.activeRows {
		l.activeRows[i] = true
	}
	return l, nil
}

// NumberOfRows returns the number of row anchors.
func (l *List) NumberOfRows() int { return len(l.rows) }

// NumberOfColumns returns the number of candidate columns.
func (l *List) NumberOfColumns() int { return len(l.cols) }

// RowAtom returns the global atom index anchoring the given row.
func (l *List) RowAtom(row int) int { return l.rows[row] }

// ColumnAtom returns the global atom index behind the given column.
func (l *List) ColumnAtom(col int) int { return l.cols[col] }

// PrepareForTasks informs the list which row tasks are currently active, so
// the next rebuild skips deactivated rows.
func (l *List) PrepareForTasks(activeTasks []int) {
	for i := range l.activeRows {
		l.activeRows[i] = false
	}
	for _, t := range activeTasks {
		if t >= 0 && t < len(l.activeRows) {
			l.activeRows[t] = true
		}
	}
}

// Update rebuilds the neighbor sets if the rebuild epoch has arrived.
// Positions are indexed by global atom index; the cell provides minimum
// image convention.
func (l *List) Update(positions []geom.Vec3, cell geom.Cell) {
	if l.built && l.sinceRebuild < l.stride {
		l.sinceRebuild++
		return
	}
	for i, ra := range l.rows {
		l.neigh[i] = l.neigh[i][:0]
		if !l.activeRows[i] {
			continue
		}
		for j, ca := range l.cols {
			if ra == ca {
				continue
			}
			d := cell.Distance(positions[ra], positions[ca])
			if d.Norm2() <= l.cutoff2 {
				l.neigh[i] = append(l.neigh[i], j)
			}
		}
	}
	l.built = true
	l.sinceRebuild = 1
}

// RetrieveNeighbours copies the column indices within cutoff of the row
// anchor into out and returns how many were written. out must have capacity
// for NumberOfColumns entries.
func (l *List) RetrieveNeighbours(row int, out []int) int {
	if !l.built {
		panic("neighbor list: RetrieveNeighbours before Update")
	}
	n := copy(out, l.neigh[row])
	if n < len(l.neigh[row]) {
		panic(fmt.Sprintf("neighbor list: output slice too short for row %d (%d < %d)", row, len(out), len(l.neigh[row])))
	}
	return n
}
