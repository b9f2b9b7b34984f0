package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/tablegate/internal/database"
)

// MySQLIntrospector implements Reader for MySQL using information_schema.
// It reads the connection's current database (DATABASE()).
type MySQLIntrospector struct {
	db database.DB
}

// NewMySQLIntrospector creates a new MySQL schema introspector
func NewMySQLIntrospector(db database.DB) *MySQLIntrospector {
	return &MySQLIntrospector{db: db}
}

// ListTables returns all base tables of the current database.
func (m *MySQLIntrospector) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	tables, err := queryStrings(ctx, m.db, q)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// InspectTable returns the full schema of one table.
func (m *MySQLIntrospector) InspectTable(ctx context.Context, table string) (*TableSchema, error) {
	return inspectTable(ctx, m, table)
}

func (m *MySQLIntrospector) columns(ctx context.Context, table string) ([]Column, error) {
	const q = `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			COLUMN_TYPE,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			CHARACTER_MAXIMUM_LENGTH,
			NUMERIC_PRECISION,
			NUMERIC_SCALE,
			EXTRA
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := m.db.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			col                  Column
			dataType, columnType string
			isNullable, extra    string
		)
		if err := rows.Scan(
			&col.Name,
			&dataType,
			&columnType,
			&isNullable,
			&col.Default,
			&col.MaxLength,
			&col.Precision,
			&col.Scale,
			&extra,
		); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}

		col.Type = lower(dataType)
		col.Nullable = strings.EqualFold(isNullable, "YES")
		col.IsAutoIncrement = strings.Contains(lower(extra), "auto_increment")
		if col.Type == "enum" {
			// COLUMN_TYPE carries the label list: enum('a','b').
			opts, err := parseEnumLabels(columnType)
			if err != nil {
				return nil, err
			}
			col.EnumOptions = opts
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (m *MySQLIntrospector) primaryKeys(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_NAME = ?
		  AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION`

	pks, err := queryStrings(ctx, m.db, q, table)
	if err != nil {
		return nil, fmt.Errorf("primary keys %s: %w", table, err)
	}
	return pks, nil
}

func (m *MySQLIntrospector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	const q = `
		SELECT COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME, CONSTRAINT_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_NAME = ?
		  AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`

	rows, err := m.db.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.ColumnName, &fk.ForeignTable, &fk.ForeignColumn, &fk.ConstraintName); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (m *MySQLIntrospector) reverseForeignKeys(ctx context.Context, table string) ([]ReverseForeignKey, error) {
	const q = `
		SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_COLUMN_NAME, CONSTRAINT_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE()
		  AND REFERENCED_TABLE_SCHEMA = DATABASE()
		  AND REFERENCED_TABLE_NAME = ?
		ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`

	rows, err := m.db.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("reverse foreign keys %s: %w", table, err)
	}
	defer rows.Close()

	var rfks []ReverseForeignKey
	for rows.Next() {
		var r ReverseForeignKey
		if err := rows.Scan(&r.ReferencingTable, &r.ReferencingColumn, &r.ReferencedColumn, &r.ConstraintName); err != nil {
			return nil, fmt.Errorf("scan reverse foreign key: %w", err)
		}
		rfks = append(rfks, r)
	}
	return rfks, rows.Err()
}

// parseEnumLabels extracts the quoted labels of an enum(...) column type.
// Doubled quotes and backslash escapes inside a label are unescaped.
func parseEnumLabels(columnType string) ([]string, error) {
	open := strings.IndexByte(columnType, '(')
	end := strings.LastIndexByte(columnType, ')')
	if open < 0 || end <= open {
		return nil, fmt.Errorf("invalid enum column type %q", columnType)
	}

	inside := columnType[open+1 : end]
	var labels []string
	for i := 0; i < len(inside); {
		for i < len(inside) && (inside[i] == ' ' || inside[i] == ',') {
			i++
		}
		if i >= len(inside) {
			break
		}
		if inside[i] != '\'' {
			return nil, fmt.Errorf("invalid enum label list in %q", columnType)
		}
		i++

		var b strings.Builder
		closed := false
		for i < len(inside) && !closed {
			c := inside[i]
			switch {
			case c == '\\' && i+1 < len(inside):
				b.WriteByte(inside[i+1])
				i += 2
			case c == '\'' && i+1 < len(inside) && inside[i+1] == '\'':
				b.WriteByte('\'')
				i += 2
			case c == '\'':
				closed = true
				i++
			default:
				b.WriteByte(c)
				i++
			}
		}
		if !closed {
			return nil, fmt.Errorf("unterminated enum label in %q", columnType)
		}
		labels = append(labels, b.String())
	}
	return labels, nil
}
