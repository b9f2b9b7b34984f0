package schema

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/koustreak/tablegate/internal/database"
)

// SQLiteIntrospector implements Reader for SQLite using sqlite_master and
// the pragma table-valued functions.
type SQLiteIntrospector struct {
	db database.DB
}

// NewSQLiteIntrospector creates a new SQLite schema introspector
func NewSQLiteIntrospector(db database.DB) *SQLiteIntrospector {
	return &SQLiteIntrospector{db: db}
}

// ListTables returns all user tables; sqlite_* internals are skipped.
func (s *SQLiteIntrospector) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name`

	tables, err := queryStrings(ctx, s.db, q)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// InspectTable returns the full schema of one table.
func (s *SQLiteIntrospector) InspectTable(ctx context.Context, table string) (*TableSchema, error) {
	return inspectTable(ctx, s, table)
}

func (s *SQLiteIntrospector) columns(ctx context.Context, table string) ([]Column, error) {
	const q = `
		SELECT name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid`

	rows, err := s.db.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	var (
		cols    []Column
		pkCount int
		rowid   = -1
	)
	for rows.Next() {
		var (
			col       Column
			declared  string
			notNull   int64
			pkOrdinal int64
		)
		if err := rows.Scan(&col.Name, &declared, &notNull, &col.Default, &pkOrdinal); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.Nullable = notNull == 0
		applyDeclaredType(&col, declared)

		if pkOrdinal > 0 {
			pkCount++
			if col.Type == "integer" {
				rowid = len(cols)
			}
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// A lone INTEGER PRIMARY KEY aliases the rowid and is assigned on insert,
	// with or without the AUTOINCREMENT keyword.
	if pkCount == 1 && rowid >= 0 {
		cols[rowid].IsAutoIncrement = true
	}
	return cols, nil
}

func (s *SQLiteIntrospector) primaryKeys(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT name
		FROM pragma_table_info(?)
		WHERE pk > 0
		ORDER BY pk`

	pks, err := queryStrings(ctx, s.db, q, table)
	if err != nil {
		return nil, fmt.Errorf("primary keys %s: %w", table, err)
	}
	return pks, nil
}

// foreignKeys reads pragma_foreign_key_list. SQLite constraints are unnamed,
// so names are synthesized as fk_<table>_<id>. A NULL "to" column means the
// parent's primary key and is resolved after all tables are read.
func (s *SQLiteIntrospector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	const q = `
		SELECT "from", "table", "to", id
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq`

	rows, err := s.db.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var (
			fk ForeignKey
			to *string
			id int64
		)
		if err := rows.Scan(&fk.ColumnName, &fk.ForeignTable, &to, &id); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		if to != nil {
			fk.ForeignColumn = *to
		}
		fk.ConstraintName = fmt.Sprintf("fk_%s_%d", table, id)
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (s *SQLiteIntrospector) reverseForeignKeys(ctx context.Context, table string) ([]ReverseForeignKey, error) {
	const q = `
		SELECT m.name, f."from", f."to", f.id
		FROM sqlite_master m
		JOIN pragma_foreign_key_list(m.name) f
		WHERE m.type = 'table'
		  AND f."table" = ?
		ORDER BY m.name, f.id, f.seq`

	rows, err := s.db.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("reverse foreign keys %s: %w", table, err)
	}
	defer rows.Close()

	var rfks []ReverseForeignKey
	for rows.Next() {
		var (
			r  ReverseForeignKey
			to *string
			id int64
		)
		if err := rows.Scan(&r.ReferencingTable, &r.ReferencingColumn, &to, &id); err != nil {
			return nil, fmt.Errorf("scan reverse foreign key: %w", err)
		}
		if to != nil {
			r.ReferencedColumn = *to
		}
		r.ConstraintName = fmt.Sprintf("fk_%s_%d", r.ReferencingTable, id)
		rfks = append(rfks, r)
	}
	return rfks, rows.Err()
}

// applyDeclaredType splits a declared type like "VARCHAR(255)" or
// "DECIMAL(10,2)" into a base name and its length or precision/scale.
// An empty declaration has BLOB affinity.
func applyDeclaredType(col *Column, declared string) {
	dt := lower(declared)
	if dt == "" {
		col.Type = "blob"
		return
	}

	open := strings.IndexByte(dt, '(')
	end := strings.LastIndexByte(dt, ')')
	if open < 0 || end <= open {
		col.Type = dt
		return
	}
	col.Type = strings.TrimSpace(dt[:open])

	parts := strings.Split(dt[open+1:end], ",")
	first, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return
	}
	if strings.Contains(col.Type, "char") || strings.Contains(col.Type, "text") || strings.Contains(col.Type, "clob") {
		col.MaxLength = &first
		return
	}
	col.Precision = &first
	if len(parts) > 1 {
		if scale, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64); err == nil {
			col.Scale = &scale
		}
	}
}
