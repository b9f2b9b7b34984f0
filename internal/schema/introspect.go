package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/dialect"
	"github.com/koustreak/tablegate/internal/errs"
)

// Reader reads one database's catalog. Each dialect implements the catalog
// queries; Introspect is shared.
type Reader interface {
	// ListTables returns every base table visible to the connection.
	ListTables(ctx context.Context) ([]string, error)

	// InspectTable returns columns, keys and relationships of one table.
	InspectTable(ctx context.Context, table string) (*TableSchema, error)
}

// catalog is the per-dialect half of InspectTable.
type catalog interface {
	columns(ctx context.Context, table string) ([]Column, error)
	primaryKeys(ctx context.Context, table string) ([]string, error)
	foreignKeys(ctx context.Context, table string) ([]ForeignKey, error)
	reverseForeignKeys(ctx context.Context, table string) ([]ReverseForeignKey, error)
}

// NewReader returns the catalog reader for d. pgSchema is only used by
// Postgres and defaults to "public".
func NewReader(d dialect.Dialect, db database.DB, pgSchema string) (Reader, error) {
	switch d.Family() {
	case dialect.FamilyPostgres:
		return NewPgIntrospector(db, pgSchema), nil
	case dialect.FamilyMySQL:
		return NewMySQLIntrospector(db), nil
	case dialect.FamilySQLite:
		return NewSQLiteIntrospector(db), nil
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "no introspector for dialect %q", d.Name())
	}
}

// Introspect reads every base table through r and returns a complete
// SchemaMap. Any failure, including cancellation, aborts the whole run;
// a partial map is never returned.
func Introspect(ctx context.Context, r Reader) (SchemaMap, error) {
	tables, err := r.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	m := make(SchemaMap, len(tables))
	for _, name := range tables {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.ErrKindTimeout, "introspection interrupted", err)
		}
		t, err := r.InspectTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("inspecting table %q: %w", name, err)
		}
		m[name] = t
	}

	resolveImplicitReferences(m)
	return m, nil
}

// inspectTable assembles a TableSchema from the catalog queries.
func inspectTable(ctx context.Context, c catalog, table string) (*TableSchema, error) {
	cols, err := c.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "table %q not found or has no columns", table)
	}

	pks, err := c.primaryKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	fks, err := c.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	rfks, err := c.reverseForeignKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	return &TableSchema{
		Name:               table,
		Columns:            cols,
		PrimaryKeys:        pks,
		ForeignKeys:        fks,
		ReverseForeignKeys: rfks,
	}, nil
}

// resolveImplicitReferences fills referenced columns a catalog left empty
// (SQLite "REFERENCES parent" without a column) with the target's first
// primary key.
func resolveImplicitReferences(m SchemaMap) {
	for _, t := range m {
		for i := range t.ForeignKeys {
			fk := &t.ForeignKeys[i]
			if fk.ForeignColumn != "" {
				continue
			}
			if target, ok := m[fk.ForeignTable]; ok {
				fk.ForeignColumn, _ = target.PrimaryKey()
			}
		}
		for i := range t.ReverseForeignKeys {
			if t.ReverseForeignKeys[i].ReferencedColumn == "" {
				t.ReverseForeignKeys[i].ReferencedColumn, _ = t.PrimaryKey()
			}
		}
	}
}

// queryStrings runs a query returning a single text column.
func queryStrings(ctx context.Context, db database.DB, q string, args ...any) ([]string, error) {
	rows, err := db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
