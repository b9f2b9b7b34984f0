package schema

import "sort"

// Column is an immutable snapshot of one introspected column.
type Column struct {
	Name            string   `json:"name" yaml:"name" msgpack:"name"`
	Type            string   `json:"type" yaml:"type" msgpack:"type"` // dialect-native, lower-cased
	Nullable        bool     `json:"nullable" yaml:"nullable" msgpack:"nullable"`
	Default         *string  `json:"default" yaml:"default" msgpack:"default"`
	MaxLength       *int64   `json:"maxLength,omitempty" yaml:"max_length,omitempty" msgpack:"max_length"`
	Precision       *int64   `json:"precision,omitempty" yaml:"precision,omitempty" msgpack:"precision"`
	Scale           *int64   `json:"scale,omitempty" yaml:"scale,omitempty" msgpack:"scale"`
	EnumOptions     []string `json:"enumOptions,omitempty" yaml:"enum_options,omitempty" msgpack:"enum_options"`
	IsAutoIncrement bool     `json:"isAutoIncrement" yaml:"is_auto_increment" msgpack:"is_auto_increment"`
}

// ForeignKey says: this table's ColumnName references ForeignTable.ForeignColumn.
type ForeignKey struct {
	ColumnName     string `json:"columnName" yaml:"column_name" msgpack:"column_name"`
	ForeignTable   string `json:"foreignTable" yaml:"foreign_table" msgpack:"foreign_table"`
	ForeignColumn  string `json:"foreignColumn" yaml:"foreign_column" msgpack:"foreign_column"`
	ConstraintName string `json:"constraintName" yaml:"constraint_name" msgpack:"constraint_name"`
}

// ReverseForeignKey is the inbound view: ReferencingTable.ReferencingColumn
// points at this table's ReferencedColumn.
type ReverseForeignKey struct {
	ReferencingTable  string `json:"referencingTable" yaml:"referencing_table" msgpack:"referencing_table"`
	ReferencingColumn string `json:"referencingColumn" yaml:"referencing_column" msgpack:"referencing_column"`
	ReferencedColumn  string `json:"referencedColumn" yaml:"referenced_column" msgpack:"referenced_column"`
	ConstraintName    string `json:"constraintName" yaml:"constraint_name" msgpack:"constraint_name"`
}

// TableSchema is the normalized description of one base table.
// PrimaryKeys are in ordinal (declaration) order.
type TableSchema struct {
	Name               string              `json:"name" yaml:"name" msgpack:"name"`
	Columns            []Column            `json:"columns" yaml:"columns" msgpack:"columns"`
	PrimaryKeys        []string            `json:"primaryKeys" yaml:"primary_keys" msgpack:"primary_keys"`
	ForeignKeys        []ForeignKey        `json:"foreignKeys" yaml:"foreign_keys" msgpack:"foreign_keys"`
	ReverseForeignKeys []ReverseForeignKey `json:"reverseForeignKeys" yaml:"reverse_foreign_keys" msgpack:"reverse_foreign_keys"`
}

// Column returns the named column.
func (t *TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether name is one of the table's columns.
func (t *TableSchema) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// PrimaryKey returns the first declared primary-key column.
func (t *TableSchema) PrimaryKey() (string, bool) {
	if len(t.PrimaryKeys) == 0 {
		return "", false
	}
	return t.PrimaryKeys[0], true
}

// SchemaMap maps table name to schema for every base table of a connection.
// A SchemaMap handed out by the Cache is shared and must not be mutated.
type SchemaMap map[string]*TableSchema

// Table returns the named table.
func (m SchemaMap) Table(name string) (*TableSchema, bool) {
	t, ok := m[name]
	return t, ok
}

// Names returns the table names in sorted order.
func (m SchemaMap) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
