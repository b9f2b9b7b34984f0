package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Reserved list keys; everything else in a list request is a filter.
const (
	KeyLimit    = "limit"
	KeyOffset   = "offset"
	KeyOrderBy  = "orderBy"
	KeyOrderDir = "orderDir"
)

// ListOptions controls sorting and pagination of a list SELECT.
// Nil Limit/Offset mean the clause is omitted.
type ListOptions struct {
	Limit    *int
	Offset   *int
	OrderBy  string
	OrderDir string // "ASC" or "DESC"
}

// SplitListParams separates the reserved list keys from the filters.
// Non-numeric or negative limit/offset values are omitted, never coerced.
func SplitListParams(p Params) (ListOptions, Params) {
	var opts ListOptions
	if v, ok := p.Get(KeyLimit); ok {
		opts.Limit = parseCount(v)
	}
	if v, ok := p.Get(KeyOffset); ok {
		opts.Offset = parseCount(v)
	}
	if v, ok := p.Get(KeyOrderBy); ok {
		opts.OrderBy = fmt.Sprint(v)
	}
	if v, ok := p.Get(KeyOrderDir); ok {
		opts.OrderDir = fmt.Sprint(v)
	}
	return opts, p.Without(KeyLimit, KeyOffset, KeyOrderBy, KeyOrderDir)
}

// CapLimit bounds the limit to max; max <= 0 disables the cap.
func (o *ListOptions) CapLimit(max int) {
	if max <= 0 {
		return
	}
	if o.Limit == nil || *o.Limit > max {
		o.Limit = &max
	}
}

// direction is DESC only for a case-insensitive "desc".
func (o ListOptions) direction() string {
	if strings.EqualFold(strings.TrimSpace(o.OrderDir), "DESC") {
		return "DESC"
	}
	return "ASC"
}

func parseCount(v any) *int {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	if n < 0 {
		return nil
	}
	return &n
}
