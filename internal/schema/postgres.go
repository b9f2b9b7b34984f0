package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/tablegate/internal/database"
)

// PgIntrospector implements Reader for PostgreSQL using information_schema
// plus pg_catalog for enum labels and serial/identity detection.
type PgIntrospector struct {
	db     database.DB
	schema string
}

// NewPgIntrospector creates a Postgres introspector bound to one schema.
// An empty schema means "public".
func NewPgIntrospector(db database.DB, schema string) *PgIntrospector {
	if schema == "" {
		schema = "public"
	}
	return &PgIntrospector{db: db, schema: schema}
}

// ListTables returns all base tables in the schema.
func (p *PgIntrospector) ListTables(ctx context.Context) ([]string, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	tables, err := queryStrings(ctx, p.db, q, p.schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// InspectTable returns the full schema of one table.
func (p *PgIntrospector) InspectTable(ctx context.Context, table string) (*TableSchema, error) {
	return inspectTable(ctx, p, table)
}

func (p *PgIntrospector) columns(ctx context.Context, table string) ([]Column, error) {
	const q = `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_schema,
			c.udt_name,
			c.is_nullable = 'YES' AS is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	rows, err := p.db.Query(ctx, q, p.schema, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s.%s: %w", p.schema, table, err)
	}

	type enumRef struct {
		idx          int
		schema, name string
	}
	var (
		cols  []Column
		enums []enumRef
	)
	for rows.Next() {
		var (
			col               Column
			dataType          string
			udtSchema, udtName string
		)
		if err := rows.Scan(
			&col.Name,
			&dataType,
			&udtSchema,
			&udtName,
			&col.Nullable,
			&col.Default,
			&col.MaxLength,
			&col.Precision,
			&col.Scale,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan column: %w", err)
		}

		switch dataType {
		case "USER-DEFINED":
			col.Type = lower(udtName)
			enums = append(enums, enumRef{idx: len(cols), schema: udtSchema, name: udtName})
		case "ARRAY":
			col.Type = lower(udtName)
		default:
			col.Type = lower(dataType)
		}
		cols = append(cols, col)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}

	auto, err := p.autoIncrementColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	for i := range cols {
		cols[i].IsAutoIncrement = auto[cols[i].Name]
	}

	// A user-defined type with no labels is a domain or composite, not an enum.
	for _, e := range enums {
		labels, err := p.enumLabels(ctx, e.schema, e.name)
		if err != nil {
			return nil, err
		}
		if len(labels) > 0 {
			cols[e.idx].EnumOptions = labels
		}
	}
	return cols, nil
}

// autoIncrementColumns returns columns backed by a sequence default
// (serial) or declared GENERATED ... AS IDENTITY.
func (p *PgIntrospector) autoIncrementColumns(ctx context.Context, table string) (map[string]bool, error) {
	const q = `
		SELECT a.attname
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_catalog.pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = $1 AND c.relname = $2
		  AND a.attnum > 0 AND NOT a.attisdropped
		  AND (a.attidentity IN ('a', 'd')
		       OR pg_catalog.pg_get_expr(d.adbin, d.adrelid) LIKE 'nextval(%')`

	names, err := queryStrings(ctx, p.db, q, p.schema, table)
	if err != nil {
		return nil, fmt.Errorf("auto-increment columns %s.%s: %w", p.schema, table, err)
	}
	return toSet(names), nil
}

// enumLabels returns the labels of an enum type in declaration order.
func (p *PgIntrospector) enumLabels(ctx context.Context, typSchema, typName string) ([]string, error) {
	const q = `
		SELECT e.enumlabel
		FROM pg_catalog.pg_enum e
		JOIN pg_catalog.pg_type t ON t.oid = e.enumtypid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1 AND t.typname = $2
		ORDER BY e.enumsortorder`

	labels, err := queryStrings(ctx, p.db, q, typSchema, typName)
	if err != nil {
		return nil, fmt.Errorf("enum labels %s.%s: %w", typSchema, typName, err)
	}
	return labels, nil
}

func (p *PgIntrospector) primaryKeys(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		ORDER BY kcu.ordinal_position`

	pks, err := queryStrings(ctx, p.db, q, p.schema, table)
	if err != nil {
		return nil, fmt.Errorf("primary keys %s.%s: %w", p.schema, table, err)
	}
	return pks, nil
}

func (p *PgIntrospector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	const q = `
		SELECT
			kcu.column_name,
			ccu.table_name  AS foreign_table,
			ccu.column_name AS foreign_column,
			tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := p.db.Query(ctx, q, p.schema, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s.%s: %w", p.schema, table, err)
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

func (p *PgIntrospector) reverseForeignKeys(ctx context.Context, table string) ([]ReverseForeignKey, error) {
	const q = `
		SELECT
			kcu.table_name  AS referencing_table,
			kcu.column_name AS referencing_column,
			ccu.column_name AS referenced_column,
			tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		  AND ccu.table_name = $2
		ORDER BY kcu.table_name, tc.constraint_name, kcu.ordinal_position`

	rows, err := p.db.Query(ctx, q, p.schema, table)
	if err != nil {
		return nil, fmt.Errorf("reverse foreign keys %s.%s: %w", p.schema, table, err)
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
