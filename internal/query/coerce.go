package query

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/koustreak/tablegate/internal/schema"
)

var (
	integerTypes = map[string]bool{
		"int": true, "integer": true, "bigint": true, "smallint": true, "tinyint": true, "mediumint": true,
		"int2": true, "int4": true, "int8": true, "serial": true, "bigserial": true, "smallserial": true,
	}
	floatTypes = map[string]bool{
		"real": true, "double": true, "double precision": true, "float": true, "float4": true, "float8": true,
	}
	boolTypes = map[string]bool{"boolean": true, "bool": true}
)

// coerce converts a string from a URL or query string, or a JSON number
// that is not an int64, to the Go type the column's driver expects. Values
// that do not parse are returned as strings and left for the database to
// reject. Exact numerics (numeric, decimal) stay strings so no precision
// is lost.
func coerce(col schema.Column, v any) any {
	if n, ok := v.(json.Number); ok {
		v = n.String()
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	typ := strings.ToLower(col.Type)
	s = strings.TrimSpace(s)

	switch {
	case integerTypes[typ]:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case floatTypes[typ]:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case boolTypes[typ]:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return v
}

// coerceFor is coerce keyed by column name; unknown columns pass through.
func (b *Builder) coerceFor(column string, v any) any {
	col, ok := b.table.Column(column)
	if !ok {
		return v
	}
	return coerce(col, v)
}

// writeValue prepares an INSERT or UPDATE payload value for column. JSON
// columns always receive a JSON document: strings that already are one
// pass through, anything else is marshaled.
func (b *Builder) writeValue(column string, v any) any {
	col, ok := b.table.Column(column)
	if ok && isJSONType(col.Type) {
		return jsonDocument(v)
	}
	v = bindValue(v)
	if !ok {
		return v
	}
	return coerce(col, v)
}

func jsonDocument(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if json.Valid([]byte(x)) {
			return x
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	return string(b)
}
