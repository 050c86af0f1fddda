package table

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// SniffDelimiter guesses the delimiter of a delimited file from its first
// line, trying comma, tab and semicolon in order of count. Comma wins ties.
func SniffDelimiter(sample string) rune {
	if i := strings.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', '\t', ';'} {
		if n := strings.Count(sample, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// ReadCSV reads a whole delimited file into a Table, sniffing the
// delimiter from the first line. The returned delimiter lets the caller
// write output with the same one.
func ReadCSV(path string) (*Table, rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open input table %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	sample, _ := br.Peek(2048)
	delim := SniffDelimiter(string(sample))

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read input table %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, 0, fmt.Errorf("input table %s is empty", path)
	}

	return &Table{Header: records[0], Rows: records[1:]}, delim, nil
}

// WriteCSV writes a table with the given delimiter.
func WriteCSV(t *Table, path string, delim rune) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output table %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	writer.Comma = delim
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush output table: %w", err)
	}
	return nil
}
