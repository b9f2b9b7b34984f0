package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/koustreak/tablegate/internal/database/dialect"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/schema"
)

// Statement is a generated SQL statement and its bound values, ready to
// execute verbatim. Returning is true when the text ends in RETURNING * and
// must be run as a query.
type Statement struct {
	Text      string
	Values    []any
	Returning bool
	Warnings  []string
}

// Builder generates statements for one table in one dialect.
//
// Usage:
//
//	stmt, err := query.New(orders, dialect.Postgres).SelectByID(42)
//	// stmt.Text   == `SELECT * FROM "orders" WHERE "id" = $1`
//	// stmt.Values == []any{42}
//
// A Builder only reads the TableSchema. Each build method starts a fresh
// parameter list, so a Builder yields one statement per call and is not
// safe for concurrent use; create one per request.
type Builder struct {
	table    *schema.TableSchema
	dialect  dialect.Dialect
	strict   bool
	values   []any
	warnings []string
}

// Option configures a Builder.
type Option func(*Builder)

// WithStrictRelationships makes an unqualified relationship lookup that
// matches more than one foreign key fail with ErrKindAmbiguousRelationship
// instead of picking the first match.
func WithStrictRelationships(strict bool) Option {
	return func(b *Builder) { b.strict = strict }
}

// New returns a Builder for table in dialect d.
func New(table *schema.TableSchema, d dialect.Dialect, opts ...Option) *Builder {
	b := &Builder{table: table, dialect: d}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Select builds a list query:
// SELECT * FROM t [WHERE ...] [ORDER BY ...] [LIMIT ...] [OFFSET ...].
// An OrderBy that is not a column of the table is ignored.
func (b *Builder) Select(filters Params, opts ListOptions) (Statement, error) {
	b.reset()

	from, err := b.quotedTable()
	if err != nil {
		return Statement{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(from)

	// --- WHERE ---
	where, err := b.where(ParseFilters(b.table, filters))
	if err != nil {
		return Statement{}, err
	}
	sb.WriteString(where)

	// --- ORDER BY ---
	if b.isValidColumn(opts.OrderBy) {
		col, err := b.quote(opts.OrderBy)
		if err != nil {
			return Statement{}, err
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", col, opts.direction())
	}

	// --- LIMIT / OFFSET ---
	switch {
	case opts.Limit != nil:
		fmt.Fprintf(&sb, " LIMIT %s", b.addParam(*opts.Limit))
	case opts.Offset != nil && b.dialect.NoLimit() != "":
		fmt.Fprintf(&sb, " LIMIT %s", b.dialect.NoLimit())
	}
	if opts.Offset != nil {
		fmt.Fprintf(&sb, " OFFSET %s", b.addParam(*opts.Offset))
	}

	return b.statement(sb.String(), false), nil
}

// SelectByID selects the row whose first primary-key column equals id.
// Composite keys are matched on their first column only.
func (b *Builder) SelectByID(id any) (Statement, error) {
	b.reset()

	from, pk, err := b.tableAndKey()
	if err != nil {
		return Statement{}, err
	}
	text := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", from, pk, b.addParam(b.keyValue(id)))
	return b.statement(text, false), nil
}

// Insert builds an INSERT from the payload keys that are columns of the
// table. Returning dialects append RETURNING * so the caller gets the
// stored row including server-generated values.
func (b *Builder) Insert(payload Params) (Statement, error) {
	b.reset()

	into, err := b.quotedTable()
	if err != nil {
		return Statement{}, err
	}

	var cols, phs []string
	for _, kv := range payload {
		if !b.isValidColumn(kv.Key) {
			continue
		}
		col, err := b.quote(kv.Key)
		if err != nil {
			return Statement{}, err
		}
		cols = append(cols, col)
		phs = append(phs, b.addParam(b.writeValue(kv.Key, kv.Value)))
	}
	if len(cols) == 0 {
		return Statement{}, errs.Newf(errs.ErrKindNoValidColumns, "no valid columns to insert into %q", b.table.Name)
	}

	text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", into, strings.Join(cols, ", "), strings.Join(phs, ", "))
	return b.returning(text), nil
}

// Update builds an UPDATE of the row matched by primary key. The key
// column itself is never part of the SET list.
func (b *Builder) Update(id any, payload Params) (Statement, error) {
	b.reset()

	table, pk, err := b.tableAndKey()
	if err != nil {
		return Statement{}, err
	}
	keyName, _ := b.table.PrimaryKey()

	var sets []string
	for _, kv := range payload {
		if kv.Key == keyName || !b.isValidColumn(kv.Key) {
			continue
		}
		col, err := b.quote(kv.Key)
		if err != nil {
			return Statement{}, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", col, b.addParam(b.writeValue(kv.Key, kv.Value))))
	}
	if len(sets) == 0 {
		return Statement{}, errs.Newf(errs.ErrKindNoValidColumns, "no valid columns to update in %q", b.table.Name)
	}

	text := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s", table, strings.Join(sets, ", "), pk, b.addParam(b.keyValue(id)))
	return b.returning(text), nil
}

// DeleteByID deletes the row matched by primary key.
func (b *Builder) DeleteByID(id any) (Statement, error) {
	b.reset()

	from, pk, err := b.tableAndKey()
	if err != nil {
		return Statement{}, err
	}
	return b.returning(fmt.Sprintf("DELETE FROM %s WHERE %s = %s", from, pk, b.addParam(b.keyValue(id)))), nil
}

// DeleteWhere deletes every row matching filters. It refuses to build a
// statement when no filter survives parsing, so a request can never wipe
// a table by accident.
func (b *Builder) DeleteWhere(filters Params) (Statement, error) {
	b.reset()

	parsed := ParseFilters(b.table, filters)
	if len(parsed) == 0 {
		return Statement{}, errs.Newf(errs.ErrKindUnsafeDelete, "refusing to delete from %q without a filter", b.table.Name)
	}

	from, err := b.quotedTable()
	if err != nil {
		return Statement{}, err
	}
	where, err := b.where(parsed)
	if err != nil {
		return Statement{}, err
	}
	return b.returning("DELETE FROM " + from + where), nil
}

func (b *Builder) reset() {
	b.values = nil
	b.warnings = nil
}

// addParam binds v and returns its placeholder.
func (b *Builder) addParam(v any) string {
	b.values = append(b.values, v)
	return b.dialect.Placeholder(len(b.values))
}

func (b *Builder) warn(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// isValidColumn reports whether name is a column of the table.
func (b *Builder) isValidColumn(name string) bool {
	return name != "" && b.table.HasColumn(name)
}

func (b *Builder) quote(ident string) (string, error) {
	return dialect.Sanitize(b.dialect, ident)
}

func (b *Builder) quotedTable() (string, error) {
	return b.quote(b.table.Name)
}

// tableAndKey returns the quoted table and its quoted first primary key.
func (b *Builder) tableAndKey() (string, string, error) {
	pk, ok := b.table.PrimaryKey()
	if !ok {
		return "", "", errs.Newf(errs.ErrKindNoPrimaryKey, "table %q has no primary key", b.table.Name)
	}
	table, err := b.quotedTable()
	if err != nil {
		return "", "", err
	}
	key, err := b.quote(pk)
	if err != nil {
		return "", "", err
	}
	return table, key, nil
}

// keyValue coerces id to the type of the first primary-key column.
func (b *Builder) keyValue(id any) any {
	pk, _ := b.table.PrimaryKey()
	return b.coerceFor(pk, id)
}

// where renders filters as " WHERE a AND b", or "" when there are none.
func (b *Builder) where(filters []Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		term, err := b.term(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, term)
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func (b *Builder) term(f Filter) (string, error) {
	col, err := b.quote(f.Column)
	if err != nil {
		return "", err
	}

	if c, _ := b.table.Column(f.Column); f.Op == OpEq && isJSONType(c.Type) {
		if doc, ok := jsonOperand(f.Value); ok {
			return b.dialect.JSONEquals(col, b.addParam(doc)), nil
		}
		b.warn("filter on JSON column %q is not valid JSON; comparing as text", f.Column)
		return b.dialect.TextEquals(col, b.addParam(f.Value)), nil
	}

	v := bindValue(f.Value)
	if f.Op != OpLike {
		v = b.coerceFor(f.Column, v)
	}
	return fmt.Sprintf("%s %s %s", col, f.Op, b.addParam(v)), nil
}

// returning appends RETURNING * for dialects that support it.
func (b *Builder) returning(text string) Statement {
	if b.dialect.Returning() {
		return b.statement(text+" RETURNING *", true)
	}
	return b.statement(text, false)
}

func (b *Builder) statement(text string, returning bool) Statement {
	return Statement{
		Text:      text,
		Values:    b.values,
		Returning: returning,
		Warnings:  b.warnings,
	}
}

// bindValue encodes structured payload values (objects, arrays) as JSON
// text so they bind to json columns on every driver.
func bindValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	default:
		return v
	}
}
