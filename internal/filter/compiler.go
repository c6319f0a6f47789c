// Package filter compiles document filter expressions into parameterized SQL
// conditions over the JSON payload of stored documents.
package filter

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlekbai/document_registry/internal/schema"
)

const (
	// DefaultDocumentsTable is the table document-reference subqueries select from.
	DefaultDocumentsTable = "documents"

	subqueryAlias = "f"
)

// Compiler translates filter expressions into conditions on a Builder.
// It holds only configuration, so one Compiler may serve concurrent compilations
// as long as each uses its own Builder.
type Compiler struct {
	catalog   Catalog
	documents string
	strict    bool
	logger    *zap.Logger
}

type Option func(*Compiler)

// WithStrict makes unknown fields and unresolvable document targets errors
// instead of silently dropped constraints.
func WithStrict(strict bool) Option {
	return func(c *Compiler) { c.strict = strict }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDocumentsTable overrides the table used for document-reference subqueries.
func WithDocumentsTable(name string) Option {
	return func(c *Compiler) { c.documents = name }
}

func NewCompiler(catalog Catalog, opts ...Option) *Compiler {
	c := &Compiler{
		catalog:   catalog,
		documents: DefaultDocumentsTable,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Strict reports whether the compiler rejects unknown fields.
func (c *Compiler) Strict() bool { return c.strict }

// DocumentsTable is the table document-reference subqueries select from.
func (c *Compiler) DocumentsTable() string { return c.documents }

// Compile appends the conditions of expr to qb.
// table is the alias of the documents row being filtered and fields are the
// definitions of that row's schema. Entries that cannot be resolved contribute
// nothing unless the compiler is strict.
func (c *Compiler) Compile(qb Builder, table string, fields []schema.FieldDef, expr Expr) error {
	run := &compilation{Compiler: c}
	return run.compile(qb, table, fields, expr, nil, ModeAnd)
}

// ReferenceKey is the value a document field stores to point at another document:
// "<schemaId>,<documentId>" of the row aliased as alias.
func ReferenceKey(alias string) string {
	a := schema.QuoteIdent(alias)
	return fmt.Sprintf(`concat(%s."schemaId"::text, ',', %s."documentId"::text)`, a, a)
}

// compilation is the state of one Compile call. Parameter names are drawn from
// seq so they stay unique across the whole query, subqueries included.
type compilation struct {
	*Compiler
	seq int
}

func (r *compilation) param() string {
	r.seq++
	return "p" + strconv.Itoa(r.seq)
}

func (r *compilation) compile(qb Builder, table string, fields []schema.FieldDef, expr Expr, scope []uuid.UUID, mode Mode) error {
	for _, e := range expr {
		switch e.Kind {
		case KindGroup:
			var err error
			qb.Group(mode, func(inner Builder) {
				for _, item := range e.Items {
					if err = r.compile(inner, table, fields, item, scope, e.Mode); err != nil {
						return
					}
				}
			})
			if err != nil {
				return err
			}

		case KindComparison:
			r.comparison(qb, table, e, scope, mode)

		case KindField:
			if err := r.field(qb, table, fields, e, scope, mode); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *compilation) comparison(qb Builder, table string, e Entry, scope []uuid.UUID, mode Mode) {
	acc := TextPath(table, scope)
	if acc == "" {
		r.logger.Debug("filter comparison outside a field dropped", zap.String("op", e.Key))
		return
	}
	sym := e.Op.Symbol()
	if sym == "" {
		r.logger.Debug("filter operator not recognized", zap.String("op", e.Key))
		return
	}

	if e.Value == nil {
		switch e.Op {
		case OpEq:
			qb.Clause(mode, acc+" IS NULL", nil)
		case OpNot:
			qb.Clause(mode, acc+" IS NOT NULL", nil)
		default:
			r.logger.Debug("filter comparison with null operand dropped", zap.String("op", e.Key))
		}
		return
	}

	name := r.param()
	value := e.Value
	fragment := fmt.Sprintf("%s %s :%s", acc, sym, name)

	switch e.Op {
	case OpContains:
		value = "%" + Text(value) + "%"
	case OpIn:
		value = list(value)
		fragment = fmt.Sprintf("%s %s (:%s)", acc, sym, name)
	}

	qb.Clause(mode, fragment, Params{name: value})
}

func (r *compilation) field(qb Builder, table string, fields []schema.FieldDef, e Entry, scope []uuid.UUID, mode Mode) error {
	parent := innermost(scope)
	fd := schema.FindField(fields, e.Key, parent)
	if fd == nil {
		if r.strict {
			return &UnknownFieldError{Name: e.Key, Parent: parent}
		}
		r.logger.Debug("filter field not found", zap.String("field", e.Key))
		return nil
	}

	switch {
	case fd.IsDocument():
		return r.document(qb, table, fd, e.Sub, scope, mode)
	case fd.PrimeField:
		return r.compile(qb, table, fields, e.Sub, withScope(scope, fd.ID), mode)
	default:
		r.logger.Debug("filter field is not filterable", zap.String("field", e.Key), zap.String("type", string(fd.Type)))
		return nil
	}
}

// document filters a reference field by the fields of the referenced document:
// the stored reference key must be among the keys of matching rows of the target schema.
func (r *compilation) document(qb Builder, table string, fd *schema.FieldDef, sub Expr, scope []uuid.UUID, mode Mode) error {
	targetID, ok := fd.TargetSchemaID()
	var target *schema.Schema
	if ok && r.catalog != nil {
		target = r.catalog.SchemaByID(targetID)
	}
	if target == nil {
		if r.strict {
			return &UnknownSchemaError{Field: fd.Name, SchemaID: targetID}
		}
		r.logger.Debug("filter document target not found", zap.String("field", fd.Name), zap.Stringer("schema", targetID))
		return nil
	}

	subq := qb.Subquery(r.documents, subqueryAlias, ReferenceKey(subqueryAlias))
	subq.FilterEq("schemaId", r.param(), target.ID)
	if err := r.compile(subq, subqueryAlias, target.Fields, sub, nil, ModeAnd); err != nil {
		return err
	}

	sql, params := subq.Render()
	column := TextPath(table, withScope(scope, fd.ID))
	qb.Clause(mode, fmt.Sprintf("%s IN (%s)", column, sql), params)
	return nil
}

// Text renders a comparison operand the way ->> renders JSON scalars.
func Text(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func list(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}
