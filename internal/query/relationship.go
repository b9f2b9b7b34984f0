package query

import (
	"fmt"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/schema"
)

// Related selects rows of relatedTable connected to this table by a
// foreign key, in priority order:
//
//  1. a foreign key of this table (column fkColumn) referencing
//     relatedTable: the related rows whose referenced column is in the
//     values of fkColumn for rows where fkColumn = id;
//  2. a foreign key of relatedTable (column fkColumn) referencing this
//     table: the related rows whose referencing column = id;
//  3. with no fkColumn, the first outbound then the first inbound foreign
//     key between the two tables. Several candidates make the choice
//     depend on catalog order; it is reported as a warning, or as
//     ErrKindAmbiguousRelationship with WithStrictRelationships.
func (b *Builder) Related(relatedTable string, id any, fkColumn string) (Statement, error) {
	b.reset()

	if _, err := b.quote(relatedTable); err != nil {
		return Statement{}, err
	}

	fks, rfks := b.candidates(relatedTable, fkColumn)
	if fkColumn == "" && len(fks)+len(rfks) > 1 {
		if b.strict {
			return Statement{}, errs.Newf(errs.ErrKindAmbiguousRelationship,
				"%d foreign keys connect %q and %q; name one with fk", len(fks)+len(rfks), b.table.Name, relatedTable)
		}
		b.warn("%d foreign keys connect %q and %q; using the first", len(fks)+len(rfks), b.table.Name, relatedTable)
	}

	switch {
	case len(fks) > 0:
		return b.viaForeignKey(fks[0], id)
	case len(rfks) > 0:
		return b.viaReverseForeignKey(rfks[0], id)
	default:
		return Statement{}, errs.Newf(errs.ErrKindNoRelationship, "no relationship between %q and %q", b.table.Name, relatedTable)
	}
}

// candidates lists the foreign keys linking this table and related,
// restricted to column fkColumn when given.
func (b *Builder) candidates(related, fkColumn string) ([]schema.ForeignKey, []schema.ReverseForeignKey) {
	var fks []schema.ForeignKey
	for _, fk := range b.table.ForeignKeys {
		if fk.ForeignTable == related && (fkColumn == "" || fk.ColumnName == fkColumn) {
			fks = append(fks, fk)
		}
	}
	var rfks []schema.ReverseForeignKey
	for _, r := range b.table.ReverseForeignKeys {
		if r.ReferencingTable == related && (fkColumn == "" || r.ReferencingColumn == fkColumn) {
			rfks = append(rfks, r)
		}
	}
	return fks, rfks
}

// viaForeignKey: SELECT * FROM related WHERE fcol IN
// (SELECT col FROM this WHERE col = ?). IN keeps the statement valid when
// several rows of this table carry the value.
func (b *Builder) viaForeignKey(fk schema.ForeignKey, id any) (Statement, error) {
	if !b.isValidColumn(fk.ColumnName) {
		return Statement{}, errs.Newf(errs.ErrKindNoRelationship,
			"foreign key %q names column %q missing from %q", fk.ConstraintName, fk.ColumnName, b.table.Name)
	}

	related, err := b.quote(fk.ForeignTable)
	if err != nil {
		return Statement{}, err
	}
	foreignCol, err := b.quote(fk.ForeignColumn)
	if err != nil {
		return Statement{}, err
	}
	table, err := b.quotedTable()
	if err != nil {
		return Statement{}, err
	}
	col, err := b.quote(fk.ColumnName)
	if err != nil {
		return Statement{}, err
	}

	text := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (SELECT %s FROM %s WHERE %s = %s)",
		related, foreignCol, col, table, col, b.addParam(b.coerceFor(fk.ColumnName, id)))
	return b.statement(text, false), nil
}

// viaReverseForeignKey: SELECT * FROM related WHERE refcol = ?.
func (b *Builder) viaReverseForeignKey(r schema.ReverseForeignKey, id any) (Statement, error) {
	related, err := b.quote(r.ReferencingTable)
	if err != nil {
		return Statement{}, err
	}
	col, err := b.quote(r.ReferencingColumn)
	if err != nil {
		return Statement{}, err
	}

	text := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", related, col, b.addParam(b.coerceFor(r.ReferencedColumn, id)))
	return b.statement(text, false), nil
}
