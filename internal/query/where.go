package query

import (
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/document_registry/internal/filter"
)

// Where collects compiled filter conditions. It implements filter.Builder for the
// compiler and sq.Sqlizer for squirrel, so a compiled filter drops into any
// SelectBuilder.Where call.
//
// Clauses are joined left to right with their own AND/OR and no implicit
// brackets, so grouping is exactly what the filter's AND/OR groups ask for.
type Where struct {
	terms []term
}

type term struct {
	mode   filter.Mode
	sql    string
	params filter.Params
	group  *Where
}

func NewWhere() *Where { return &Where{} }

func (w *Where) Group(mode filter.Mode, build func(filter.Builder)) {
	inner := &Where{}
	build(inner)
	if len(inner.terms) == 0 {
		return
	}
	w.terms = append(w.terms, term{mode: mode, group: inner})
}

func (w *Where) Clause(mode filter.Mode, fragment string, params filter.Params) {
	w.terms = append(w.terms, term{mode: mode, sql: fragment, params: params})
}

func (w *Where) Subquery(source, alias, projection string) filter.Subquery {
	return &subquery{source: source, alias: alias, projection: projection}
}

// Len returns the number of leaf conditions, nested groups included.
func (w *Where) Len() int {
	n := 0
	for _, t := range w.terms {
		if t.group != nil {
			n += t.group.Len()
		} else {
			n++
		}
	}
	return n
}

// Named renders the conditions with :name placeholders and returns every bound value.
func (w *Where) Named() (string, filter.Params) {
	var b strings.Builder
	params := filter.Params{}
	for i, t := range w.terms {
		if i > 0 {
			b.WriteString(" " + t.mode.String() + " ")
		}
		if t.group != nil {
			sql, p := t.group.Named()
			b.WriteString("(" + sql + ")")
			mergeParams(params, p)
			continue
		}
		b.WriteString(t.sql)
		mergeParams(params, t.params)
	}
	return b.String(), params
}

// ToSql renders positional (?) SQL. Several top-level terms are bracketed so the
// result composes with the AND that squirrel puts between WHERE parts.
func (w *Where) ToSql() (string, []any, error) {
	sql, params := w.Named()
	if sql == "" {
		return "", nil, nil
	}
	if len(w.terms) > 1 {
		sql = "(" + sql + ")"
	}
	return Bind(sql, params)
}

// subquery is a SELECT over one table whose WHERE is built by the compiler.
type subquery struct {
	Where
	source     string
	alias      string
	projection string
	base       []string
	baseParams filter.Params
}

func (s *subquery) FilterEq(column, param string, value any) {
	s.base = append(s.base, fmt.Sprintf("%s.%s = :%s", qi(s.alias), qi(column), param))
	if s.baseParams == nil {
		s.baseParams = filter.Params{}
	}
	s.baseParams[param] = value
}

func (s *subquery) Render() (string, filter.Params) {
	params := filter.Params{}
	mergeParams(params, s.baseParams)

	conds := append([]string{}, s.base...)
	if where, p := s.Where.Named(); where != "" {
		if len(s.Where.terms) > 1 {
			where = "(" + where + ")"
		}
		conds = append(conds, where)
		mergeParams(params, p)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s %s", s.projection, qi(s.source), qi(s.alias))
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	return sql, params
}

func mergeParams(dst, src filter.Params) {
	for k, v := range src {
		dst[k] = v
	}
}

// Bind rewrites :name placeholders to ? in order of appearance and returns the
// matching arguments. Quoted literals and identifiers and :: casts are left alone.
// List values expand to one placeholder per element; an empty list becomes NULL.
func Bind(sql string, params filter.Params) (string, []any, error) {
	var (
		b    strings.Builder
		args []any
	)
	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			j := skipQuoted(sql, i)
			b.WriteString(sql[i:j])
			i = j

		case c == ':' && i+1 < len(sql) && sql[i+1] == ':':
			b.WriteString("::")
			i += 2

		case c == ':' && i+1 < len(sql) && isIdentStart(sql[i+1]):
			j := i + 1
			for j < len(sql) && isIdentChar(sql[j]) {
				j++
			}
			name := sql[i+1 : j]
			v, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("query: no value bound for parameter %q", name)
			}
			placeholders, values := expandParam(v)
			b.WriteString(placeholders)
			args = append(args, values...)
			i = j

		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), args, nil
}

// ToDollar renders a squirrel condition with $n placeholders.
func ToDollar(cond sq.Sqlizer) (string, []any, error) {
	sql, args, err := cond.ToSql()
	if err != nil {
		return "", nil, err
	}
	sql, err = sq.Dollar.ReplacePlaceholders(sql)
	return sql, args, err
}

func skipQuoted(sql string, start int) int {
	q := sql[start]
	for i := start + 1; i < len(sql); i++ {
		if sql[i] != q {
			continue
		}
		if i+1 < len(sql) && sql[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(sql)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func expandParam(v any) (string, []any) {
	list, ok := v.([]any)
	if !ok {
		return "?", []any{bindValue(v)}
	}
	if len(list) == 0 {
		return "NULL", nil
	}
	values := make([]any, len(list))
	for i, item := range list {
		values[i] = bindValue(item)
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", "), values
}

// bindValue converts JSON scalars to the text ->> produces, so comparisons against
// payload values bind as text. Other values (uuids for column filters) pass through.
func bindValue(v any) any {
	switch v.(type) {
	case string, json.Number, float64, float32, int, int64, bool:
		return filter.Text(v)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return v
	}
}
