package domain

import "fmt"

// Table is an in-memory tabular dataset with named columns. The checker reads
// URL cells from it and the writer emits it back widened with result columns.
type Table struct {
	Header []string
	Rows   [][]string
}

// ColumnIndex resolves a column name to its position.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	return 0, false
}

// Cell returns the value at (row, column index); rows shorter than the header
// read as empty cells.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// AddColumn appends a new named column and returns its index. Existing rows
// are padded lazily by Set.
func (t *Table) AddColumn(name string) int {
	t.Header = append(t.Header, name)
	return len(t.Header) - 1
}

// Set writes a value at (row, column index), padding the row as needed.
func (t *Table) Set(row, col int, value string) error {
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	for len(t.Rows[row]) <= col {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][col] = value
	return nil
}
