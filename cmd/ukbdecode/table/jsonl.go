package table

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ToRecords converts rows to header-keyed maps, dropping blank cells. A
// negative limit keeps all rows.
func ToRecords(t *Table, limit int) []map[string]string {
	records := make([]map[string]string, 0, t.NumRows())
	for i, row := range t.Rows {
		if limit >= 0 && i >= limit {
			break
		}
		row = t.PadRow(row)
		record := make(map[string]string)
		for j, name := range t.Header {
			if value := strings.TrimSpace(row[j]); value != "" {
				record[name] = row[j]
			}
		}
		records = append(records, record)
	}
	return records
}

// ExportJSONL writes records to <prefix>.jsonl (one object per line) and
// <prefix>.json (indented array).
func ExportJSONL(records []map[string]string, prefix string) error {
	jsonlPath := prefix + ".jsonl"
	f, err := os.Create(jsonlPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jsonlPath, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", jsonlPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", jsonlPath, err)
	}

	jsonPath := prefix + ".json"
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}
	return nil
}
