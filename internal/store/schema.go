package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed sql/table-columns.sql
var tableColumnsSQL string

// Schema lists, per table, the columns the API queries. Extra columns are allowed.
var Schema = map[string][]string{
	"measurement": {"station", "date", "prcp", "tobs"},
	"station":     {"station"},
}

// SchemaError reports tables or columns missing from the data source.
type SchemaError struct {
	Missing []string // "table" or "table.column"
}

func (e *SchemaError) Error() string {
	return "schema mismatch: missing " + strings.Join(e.Missing, ", ")
}

// VerifySchema checks that every table and column in Schema exists. It returns a
// *SchemaError listing everything absent, or the underlying error if the check itself fails.
func VerifySchema(ctx context.Context, db *sql.DB) error {
	tables := make([]string, 0, len(Schema))
	for t := range Schema {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var missing []string
	for _, table := range tables {
		cols, err := tableColumns(ctx, db, table)
		if err != nil {
			return fmt.Errorf("inspect table %s: %w", table, err)
		}
		if len(cols) == 0 {
			missing = append(missing, table)
			continue
		}
		for _, c := range Schema[table] {
			if _, ok := cols[c]; !ok {
				missing = append(missing, table+"."+c)
			}
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, tableColumnsSQL, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[strings.ToLower(name)] = struct{}{}
	}
	return cols, rows.Err()
}
