package query

import (
	"encoding/json"
	"strings"

	"github.com/koustreak/tablegate/internal/schema"
)

// Operator is a comparison operator allowed in generated WHERE clauses.
type Operator string

const (
	OpEq   Operator = "="
	OpGt   Operator = ">"
	OpGte  Operator = ">="
	OpLt   Operator = "<"
	OpLte  Operator = "<="
	OpLike Operator = "LIKE"
)

// suffixes maps the filter key suffix convention to operators.
var suffixes = []struct {
	suffix string
	op     Operator
}{
	{"__gte", OpGte},
	{"__gt", OpGt},
	{"__lte", OpLte},
	{"__lt", OpLt},
	{"__like", OpLike},
}

// Filter is one normalized WHERE term.
type Filter struct {
	Column string
	Op     Operator
	Value  any
}

// ParseFilters normalizes raw filter parameters against table. Keys that
// do not name a column of the table, with or without an operator suffix,
// are dropped silently.
func ParseFilters(table *schema.TableSchema, p Params) []Filter {
	filters := make([]Filter, 0, len(p))
	for _, kv := range p {
		col, op, ok := splitKey(table, kv.Key)
		if !ok {
			continue
		}
		filters = append(filters, Filter{Column: col, Op: op, Value: kv.Value})
	}
	return filters
}

// splitKey resolves "age__gte" to ("age", >=). A key whose suffixed base
// is not a column is tried as a plain column name.
func splitKey(table *schema.TableSchema, key string) (string, Operator, bool) {
	for _, s := range suffixes {
		if base, found := strings.CutSuffix(key, s.suffix); found && table.HasColumn(base) {
			return base, s.op, true
		}
	}
	if table.HasColumn(key) {
		return key, OpEq, true
	}
	return "", "", false
}

// isJSONType reports whether an introspected type holds JSON (json, jsonb).
func isJSONType(typ string) bool {
	return strings.Contains(strings.ToLower(typ), "json")
}

// jsonOperand turns a filter value into canonical JSON text. Strings must
// themselves be JSON documents; anything else is marshaled as is.
func jsonOperand(v any) (string, bool) {
	if s, ok := v.(string); ok {
		var probe any
		if err := json.Unmarshal([]byte(s), &probe); err != nil {
			return "", false
		}
		b, err := json.Marshal(probe)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}
