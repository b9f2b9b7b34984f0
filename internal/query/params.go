// Package query turns untrusted request input into parameterized SQL.
//
// Table and column names only reach SQL text after dialect.Sanitize and a
// lookup against the introspected schema; every value is bound through a
// placeholder. Request parameters are kept in their original order so the
// generated placeholders follow the order the client wrote them in.
package query

import (
	"encoding/json"
	"io"
	"net/url"
	"strings"

	"github.com/koustreak/tablegate/internal/errs"
)

// Param is one key/value pair of a query string or JSON object.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered list of request parameters. Keys may repeat.
type Params []Param

// Get returns the first value stored under key.
func (p Params) Get(key string) (any, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Without returns p minus every pair whose key is in keys.
func (p Params) Without(keys ...string) Params {
	out := make(Params, 0, len(p))
	for _, kv := range p {
		drop := false
		for _, k := range keys {
			if kv.Key == k {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, kv)
		}
	}
	return out
}

// Keys returns the keys in order.
func (p Params) Keys() []string {
	keys := make([]string, len(p))
	for i, kv := range p {
		keys[i] = kv.Key
	}
	return keys
}

// ParseQuery parses a raw query string keeping textual order, unlike
// url.ParseQuery which returns a map. Values are strings.
func ParseQuery(raw string) (Params, error) {
	var p Params
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed query string key", err)
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed query string value", err)
		}
		p = append(p, Param{Key: key, Value: val})
	}
	return p, nil
}

// DecodeObject reads one JSON object keeping key order. Top-level numbers
// become int64 when they fit and otherwise stay json.Number, so decimals
// keep every digit until the target column's type is known. Nested
// objects and arrays are left as decoded values.
func DecodeObject(r io.Reader) (Params, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "request body is not JSON", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errs.New(errs.ErrKindInvalidInput, "request body must be a JSON object")
	}

	var p Params
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed JSON object", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errs.New(errs.ErrKindInvalidInput, "malformed JSON object key")
		}

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed JSON value for "+key, err)
		}
		p = append(p, Param{Key: key, Value: normalizeNumber(v)})
	}

	if _, err := dec.Token(); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "malformed JSON object", err)
	}
	return p, nil
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	return n
}
