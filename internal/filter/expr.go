package filter

// Mode is the boolean combinator a clause attaches with.
type Mode int

const (
	ModeAnd Mode = iota
	ModeOr
)

func (m Mode) String() string {
	if m == ModeOr {
		return "OR"
	}
	return "AND"
}

// Logical group keys.
const (
	KeyAnd = "AND"
	KeyOr  = "OR"
)

var groupModes = map[string]Mode{
	KeyAnd: ModeAnd,
	KeyOr:  ModeOr,
}

type Op string

const (
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpContains Op = "contains"
	OpNot      Op = "not"
)

var opSymbols = map[Op]string{
	OpGt:       ">",
	OpGte:      ">=",
	OpLt:       "<",
	OpLte:      "<=",
	OpEq:       "=",
	OpIn:       "IN",
	OpContains: "LIKE",
	OpNot:      "!=",
}

// Symbol returns the SQL operator for op, or "" if op is not recognized.
func (op Op) Symbol() string { return opSymbols[op] }

// IsValid reports whether op is a recognized comparison token.
func (op Op) IsValid() bool {
	_, ok := opSymbols[op]
	return ok
}

// Kind classifies a filter entry.
type Kind int

const (
	KindGroup Kind = iota
	KindComparison
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindComparison:
		return "comparison"
	case KindField:
		return "field"
	default:
		return "unknown"
	}
}

// Entry is one classified key of a filter object.
//
//	KindGroup:      Key is AND/OR, Mode is its combinator, Items are the sub-filters.
//	KindComparison: Op and Value hold the operator token and its operand.
//	KindField:      Key is the field name, Sub is the filter scoped to that field.
type Entry struct {
	Kind  Kind
	Key   string
	Mode  Mode
	Items []Expr
	Op    Op
	Value any
	Sub   Expr
}

// Expr is a filter object: its entries in source order.
type Expr []Entry

// And groups sub-filters with AND.
func And(items ...Expr) Expr {
	return Expr{{Kind: KindGroup, Key: KeyAnd, Mode: ModeAnd, Items: items}}
}

// Or groups sub-filters with OR.
func Or(items ...Expr) Expr {
	return Expr{{Kind: KindGroup, Key: KeyOr, Mode: ModeOr, Items: items}}
}

// Field scopes sub to the field called name.
func Field(name string, sub Expr) Expr {
	return Expr{{Kind: KindField, Key: name, Sub: sub}}
}

// Cmp is a single comparison leaf.
func Cmp(op Op, value any) Expr {
	return Expr{{Kind: KindComparison, Key: string(op), Op: op, Value: value}}
}

// Merge concatenates filter objects, keeping entry order.
func Merge(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		out = append(out, e...)
	}
	return out
}
