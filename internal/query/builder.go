package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/atlekbai/document_registry/internal/filter"
	"github.com/atlekbai/document_registry/internal/schema"
)

const qAlias = "_d"

// Builder generates SQL queries over the documents of one schema.
type Builder interface {
	BuildList(params *QueryParams) (string, []any, error)
	BuildGetByID(id uuid.UUID) (string, []any, error)
	BuildCount(params *QueryParams) (string, []any, error)
	// BuildEstimate returns SELECT 1 FROM ... WHERE ... for use with EXPLAIN (FORMAT JSON).
	BuildEstimate(params *QueryParams) (string, []any, error)
	// BuildFilter returns only the compiled filter condition ($n placeholders).
	BuildFilter(params *QueryParams) (string, []any, error)
}

// DocumentBuilder builds SQL for documents stored as JSONB payloads.
type DocumentBuilder struct {
	schema   *schema.Schema
	compiler *filter.Compiler
	table    string
}

// NewBuilder returns a query builder for documents of s. Rows are read from
// the compiler's documents table, so references resolve against the same table.
func NewBuilder(s *schema.Schema, compiler *filter.Compiler) Builder {
	return &DocumentBuilder{
		schema:   s,
		compiler: compiler,
		table:    compiler.DocumentsTable(),
	}
}

func (b *DocumentBuilder) BuildList(params *QueryParams) (string, []any, error) {
	columns := []string{buildJsonObject() + " AS _row"}
	columns = append(columns, fmt.Sprintf(`%s::text AS _cursor_id`, column(qAlias, "documentId")))
	if sortCol := b.sortExpr(params); sortCol != "" {
		columns = append(columns, fmt.Sprintf(`%s AS _cursor_val`, sortCol))
	}

	from, baseWhere := TableSource(b.table, b.schema, qAlias)
	qb := sq.Select(columns...).From(from).Where(baseWhere).PlaceholderFormat(sq.Dollar)

	qb, err := b.applyFilter(qb, params)
	if err != nil {
		return "", nil, err
	}
	for _, clause := range b.buildOrderBy(params) {
		qb = qb.OrderBy(clause)
	}
	qb = b.applyCursor(qb, params)
	qb = qb.Suffix("LIMIT ?", params.Limit+1)

	return qb.ToSql()
}

func (b *DocumentBuilder) BuildGetByID(id uuid.UUID) (string, []any, error) {
	from, baseWhere := TableSource(b.table, b.schema, qAlias)
	return sq.Select(buildJsonObject() + " AS _row").
		From(from).
		Where(baseWhere).
		Where(sq.Eq{column(qAlias, "documentId"): id}).
		PlaceholderFormat(sq.Dollar).
		Limit(1).
		ToSql()
}

func (b *DocumentBuilder) BuildCount(params *QueryParams) (string, []any, error) {
	return b.buildScan("count(*)", params)
}

func (b *DocumentBuilder) BuildEstimate(params *QueryParams) (string, []any, error) {
	return b.buildScan("1", params)
}

func (b *DocumentBuilder) BuildFilter(params *QueryParams) (string, []any, error) {
	where, err := b.compile(params)
	if err != nil {
		return "", nil, err
	}
	return ToDollar(where)
}

func (b *DocumentBuilder) buildScan(selectExpr string, params *QueryParams) (string, []any, error) {
	from, baseWhere := TableSource(b.table, b.schema, qAlias)
	qb := sq.Select(selectExpr).From(from).Where(baseWhere).PlaceholderFormat(sq.Dollar)
	qb, err := b.applyFilter(qb, params)
	if err != nil {
		return "", nil, err
	}
	return qb.ToSql()
}

func (b *DocumentBuilder) compile(params *QueryParams) (*Where, error) {
	where := NewWhere()
	if err := b.compiler.Compile(where, qAlias, b.schema.Fields, params.Filter); err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}
	return where, nil
}

func (b *DocumentBuilder) applyFilter(qb sq.SelectBuilder, params *QueryParams) (sq.SelectBuilder, error) {
	where, err := b.compile(params)
	if err != nil {
		return qb, err
	}
	if where.Len() > 0 {
		qb = qb.Where(where)
	}
	return qb, nil
}

// buildJsonObject builds the json_build_object(...) expression for the SELECT clause.
func buildJsonObject() string {
	pairs := []string{
		fmt.Sprintf(`'schemaId', %s`, column(qAlias, "schemaId")),
		fmt.Sprintf(`'documentId', %s`, column(qAlias, "documentId")),
		fmt.Sprintf(`'data', %s`, column(qAlias, "data")),
		fmt.Sprintf(`'createdAt', %s`, column(qAlias, "createdAt")),
		fmt.Sprintf(`'updatedAt', %s`, column(qAlias, "updatedAt")),
	}
	return fmt.Sprintf("json_build_object(%s)", strings.Join(pairs, ", "))
}

func (b *DocumentBuilder) sortExpr(params *QueryParams) string {
	if params.Order == nil {
		return ""
	}
	fd := b.schema.FindField(params.Order.FieldName, nil)
	if fd == nil {
		return ""
	}
	return FieldExpr(qAlias, fd)
}

func (b *DocumentBuilder) buildOrderBy(params *QueryParams) []string {
	dir := orderDir(params)
	var clauses []string
	if sortCol := b.sortExpr(params); sortCol != "" {
		clauses = append(clauses, fmt.Sprintf(`%s %s`, sortCol, dir))
	}
	clauses = append(clauses, fmt.Sprintf(`%s %s`, column(qAlias, "documentId"), dir))
	return clauses
}

func orderDir(params *QueryParams) string {
	if params.Order != nil && params.Order.Desc {
		return "DESC"
	}
	return "ASC"
}

func (b *DocumentBuilder) applyCursor(qb sq.SelectBuilder, params *QueryParams) sq.SelectBuilder {
	if params.Cursor == nil {
		return qb
	}
	idCol := column(qAlias, "documentId")
	cmp := ">"
	if params.Order != nil && params.Order.Desc {
		cmp = "<"
	}

	if sortCol := b.sortExpr(params); sortCol != "" && params.Cursor.OrderVal != "" {
		return qb.Where(fmt.Sprintf(`(%s, %s) %s (?, ?)`, sortCol, idCol, cmp),
			params.Cursor.OrderVal, params.Cursor.ID)
	}

	return qb.Where(fmt.Sprintf(`%s %s ?`, idCol, cmp), params.Cursor.ID)
}
