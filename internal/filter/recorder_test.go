package filter

import (
	"fmt"
	"strings"

	"github.com/atlekbai/document_registry/internal/schema"
)

// recorder is a Builder that keeps every emitted clause as data.
type recorder struct {
	items []recorded

	// Set when the recorder stands for a subquery.
	source     string
	alias      string
	projection string
	eq         []string
	eqParams   Params
}

type recorded struct {
	mode   Mode
	sql    string
	params Params
	group  *recorder
}

func (r *recorder) Group(mode Mode, build func(Builder)) {
	inner := &recorder{}
	build(inner)
	r.items = append(r.items, recorded{mode: mode, group: inner})
}

func (r *recorder) Clause(mode Mode, fragment string, params Params) {
	r.items = append(r.items, recorded{mode: mode, sql: fragment, params: params})
}

func (r *recorder) Subquery(source, alias, projection string) Subquery {
	return &recorder{source: source, alias: alias, projection: projection, eqParams: Params{}}
}

func (r *recorder) FilterEq(column, param string, value any) {
	r.eq = append(r.eq, fmt.Sprintf("%s.%s = :%s", schema.QuoteIdent(r.alias), schema.QuoteIdent(column), param))
	r.eqParams[param] = value
}

func (r *recorder) Render() (string, Params) {
	conds := append([]string{}, r.eq...)
	if w := r.where(); w != "" {
		conds = append(conds, w)
	}
	sql := fmt.Sprintf("SELECT %s FROM %s %s WHERE %s",
		r.projection, schema.QuoteIdent(r.source), schema.QuoteIdent(r.alias), strings.Join(conds, " AND "))
	return sql, r.params()
}

// where renders the recorded clauses the way SQL would read them.
func (r *recorder) where() string {
	var b strings.Builder
	for i, it := range r.items {
		if i > 0 {
			b.WriteString(" " + it.mode.String() + " ")
		}
		if it.group != nil {
			b.WriteString("(" + it.group.where() + ")")
		} else {
			b.WriteString(it.sql)
		}
	}
	return b.String()
}

// params collects every bound parameter, nested groups included.
func (r *recorder) params() Params {
	out := Params{}
	for k, v := range r.eqParams {
		out[k] = v
	}
	for _, it := range r.items {
		for k, v := range it.params {
			out[k] = v
		}
		if it.group != nil {
			for k, v := range it.group.params() {
				out[k] = v
			}
		}
	}
	return out
}

// clauses counts leaf clauses, nested groups included.
func (r *recorder) clauses() int {
	n := 0
	for _, it := range r.items {
		if it.group != nil {
			n += it.group.clauses()
		} else {
			n++
		}
	}
	return n
}
