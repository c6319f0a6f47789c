package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/atlekbai/document_registry/internal/filter"
	"github.com/atlekbai/document_registry/internal/schema"
)

// qi is shorthand for schema.QuoteIdent.
func qi(name string) string { return schema.QuoteIdent(name) }

// Alias returns the alias of the documents row in all generated SQL.
func Alias() string { return qAlias }

// column returns alias."name".
func column(alias, name string) string {
	return fmt.Sprintf(`%s.%s`, qi(alias), qi(name))
}

// FieldExpr returns the text accessor of a top-level payload field.
func FieldExpr(alias string, fd *schema.FieldDef) string {
	return filter.TextPath(alias, []uuid.UUID{fd.ID})
}

// TableSource returns the FROM clause and base WHERE restricting rows to one schema.
func TableSource(table string, s *schema.Schema, alias string) (string, sq.Sqlizer) {
	return qi(table) + " " + qi(alias), sq.Eq{column(alias, "schemaId"): s.ID}
}
