package table

// Table is a row-oriented tabular dataset: one header and the data rows in
// their original order. Rows may be ragged on input; readers and the decode
// pipeline pad short rows to header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// PadRow returns row extended with empty cells to header width.
func (t *Table) PadRow(row []string) []string {
	if len(row) >= len(t.Header) {
		return row
	}
	padded := make([]string, len(t.Header))
	copy(padded, row)
	return padded
}
