package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/bremcorr/internal/candidate"
)

// LoadTable reads a whole table as candidates. NULL cells become NaN.
func (s *Store) LoadTable(ctx context.Context, name string) (*candidate.Table, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(name))
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := candidate.NewTable(cols)

	vals := make([]sql.NullFloat64, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("reading table %s row %d: %w", name, t.Len(), err)
		}
		row := candidate.NewRow()
		for i, c := range cols {
			v := math.NaN()
			if vals[i].Valid {
				v = vals[i].Float64
			}
			row.Set(c, v)
		}
		t.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logs.Diagf("Loaded %d rows, %d columns from %s", t.Len(), len(cols), name)
	return t, nil
}

// WriteTable replaces table name with t in one transaction. Cells missing
// from a row and NaN values are written as NULL.
func (s *Store) WriteTable(ctx context.Context, name string, t *candidate.Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", name)
	}

	defs := make([]string, len(t.Columns))
	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = quoteIdent(c)
		defs[i] = quoted[i] + " DOUBLE"
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")

	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(name), strings.Join(quoted, ", "), placeholders))
		if err != nil {
			return err
		}
		defer stmt.Close()

		args := make([]interface{}, len(t.Columns))
		for n, row := range t.Rows {
			for i, c := range t.Columns {
				v, err := row.Get(c)
				if err != nil || math.IsNaN(v) {
					args[i] = nil
					continue
				}
				args[i] = v
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("writing row %d: %w", n, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		logs.Diagf("Wrote %d rows to %s", t.Len(), name)
		return nil
	})
}

// Tables returns the user table names, excluding bookkeeping tables.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		  AND name NOT IN ('schema_migrations', 'correction_runs')
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
