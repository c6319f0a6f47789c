package query

import (
	"fmt"
	"strings"

	"github.com/atlekbai/document_registry/internal/filter"
)

// ShortOp is an operator of the query-string shorthand ?field=op.value.
type ShortOp string

const (
	ShortEq       ShortOp = "eq"
	ShortNeq      ShortOp = "neq"
	ShortGt       ShortOp = "gt"
	ShortGte      ShortOp = "gte"
	ShortLt       ShortOp = "lt"
	ShortLte      ShortOp = "lte"
	ShortContains ShortOp = "contains"
	ShortIn       ShortOp = "in"
	ShortIs       ShortOp = "is"
)

var shortOps = map[ShortOp]filter.Op{
	ShortEq:       filter.OpEq,
	ShortNeq:      filter.OpNot,
	ShortGt:       filter.OpGt,
	ShortGte:      filter.OpGte,
	ShortLt:       filter.OpLt,
	ShortLte:      filter.OpLte,
	ShortContains: filter.OpContains,
	ShortIn:       filter.OpIn,
}

// ParseShorthand parses a value like "eq.hello" into a filter on field.
// Dotted field names ("meta.title") descend into nested fields.
func ParseShorthand(field, raw string) (filter.Expr, error) {
	before, after, ok := strings.Cut(raw, ".")
	if !ok {
		return nil, fmt.Errorf("invalid filter format %q, expected op.value", raw)
	}

	var leaf filter.Expr
	switch op := ShortOp(before); op {
	case ShortIs:
		switch after {
		case "null":
			leaf = filter.Cmp(filter.OpEq, nil)
		case "not_null":
			leaf = filter.Cmp(filter.OpNot, nil)
		default:
			return nil, fmt.Errorf("is operator only accepts null or not_null, got %q", after)
		}
	case ShortIn:
		leaf = filter.Cmp(filter.OpIn, InValues(after))
	default:
		fop, ok := shortOps[op]
		if !ok {
			return nil, fmt.Errorf("unknown filter operator %q", op)
		}
		leaf = filter.Cmp(fop, after)
	}

	path := strings.Split(field, ".")
	expr := leaf
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == "" {
			return nil, fmt.Errorf("invalid filter field %q", field)
		}
		expr = filter.Field(path[i], expr)
	}
	return expr, nil
}

// InValues splits a comma-separated "in" filter value into individual values.
func InValues(value string) []any {
	parts := strings.Split(value, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}
