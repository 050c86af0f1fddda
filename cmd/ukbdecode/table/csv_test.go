package table_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencohort/ukbdecode/cmd/ukbdecode/table"
)

func TestSniffDelimiter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ',', table.SniffDelimiter("eid,31-0.0,53-0.0\n1,0,2009-01-12"))
	assert.Equal(t, '\t', table.SniffDelimiter("eid\t31-0.0\t53-0.0"))
	assert.Equal(t, ';', table.SniffDelimiter("eid;31-0.0;53-0.0"))
	assert.Equal(t, ',', table.SniffDelimiter("single_column"))
}

func TestReadWriteCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(in, []byte("eid;31-0.0\n1000001;0\n1000002;1\n"), 0644))

	tbl, delim, err := table.ReadCSV(in)
	require.NoError(t, err)
	assert.Equal(t, ';', delim)
	assert.Equal(t, []string{"eid", "31-0.0"}, tbl.Header)
	assert.Equal(t, [][]string{{"1000001", "0"}, {"1000002", "1"}}, tbl.Rows)

	out := filepath.Join(dir, "out.csv")
	require.NoError(t, table.WriteCSV(tbl, out, delim))

	back, delim2, err := table.ReadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, delim, delim2)
	assert.Equal(t, tbl, back)
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	_, _, err := table.ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, _, err = table.ReadCSV(empty)
	assert.Error(t, err)
}

func TestToRecords(t *testing.T) {
	t.Parallel()

	tbl := &table.Table{
		Header: []string{"eid", "age_3", "sex_7"},
		Rows: [][]string{
			{"1", "52", "male"},
			{"2", " ", "female"},
			{"3", "61"},
		},
	}

	records := table.ToRecords(tbl, -1)
	require.Len(t, records, 3)
	assert.Equal(t, map[string]string{"eid": "1", "age_3": "52", "sex_7": "male"}, records[0])
	assert.Equal(t, map[string]string{"eid": "2", "sex_7": "female"}, records[1], "blank cells are skipped")
	assert.Equal(t, map[string]string{"eid": "3", "age_3": "61"}, records[2], "short rows are padded")

	assert.Len(t, table.ToRecords(tbl, 2), 2)
}

func TestExportJSONL(t *testing.T) {
	t.Parallel()

	prefix := filepath.Join(t.TempDir(), "out")
	records := []map[string]string{
		{"eid": "1", "sex_7": "male"},
		{"eid": "2"},
	}
	require.NoError(t, table.ExportJSONL(records, prefix))

	jsonData, err := os.ReadFile(prefix + ".json")
	require.NoError(t, err)
	var fromJSON []map[string]string
	require.NoError(t, json.Unmarshal(jsonData, &fromJSON))
	assert.Equal(t, records, fromJSON)

	jsonlData, err := os.ReadFile(prefix + ".jsonl")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(jsonlData)), "\n")
	require.Len(t, lines, 2)
	var first map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, records[0], first)
}
