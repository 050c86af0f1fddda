package table

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// SQLSource reads the input table from a database query instead of a CSV
// file. Column names of the result set become the raw header; every value
// is rendered as its string form, matching what a CSV export would hold.
type SQLSource struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// NewSQLSource creates a source over an open connection.
func NewSQLSource(db *sqlx.DB, log zerolog.Logger) *SQLSource {
	return &SQLSource{db: db, log: log}
}

// Read runs the query and materializes the full result set.
func (s *SQLSource) Read(query string) (*Table, error) {
	rows, err := s.db.Queryx(query)
	if err != nil {
		return nil, fmt.Errorf("failed to run input query: %w", err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	t := &Table{Header: header}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = stringValue(v)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result rows: %w", err)
	}

	s.log.Info().Int("rows", t.NumRows()).Int("columns", len(header)).Msg("Read input table from database")
	return t, nil
}

func stringValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(value)
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}
