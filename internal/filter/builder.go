package filter

import (
	"github.com/google/uuid"

	"github.com/atlekbai/document_registry/internal/schema"
)

// Params are named bound parameters referenced as :name inside a clause fragment.
type Params map[string]any

// Builder is the query-building capability the compiler appends conditions to.
// Implementations own clause composition, parameter binding and subquery rendering.
type Builder interface {
	// Group appends a bracketed sub-clause attached with mode.
	// build receives the builder for the inside of the brackets.
	Group(mode Mode, build func(Builder))
	// Clause appends a raw condition attached with mode.
	Clause(mode Mode, fragment string, params Params)
	// Subquery opens a subquery selecting projection from source aliased as alias.
	Subquery(source, alias, projection string) Subquery
}

// Subquery is a Builder whose conditions form a nested SELECT.
type Subquery interface {
	Builder
	// FilterEq restricts the subquery to rows where alias.column equals value,
	// bound under the parameter name param.
	FilterEq(column, param string, value any)
	// Render returns the subquery as SQL text with named parameters.
	Render() (string, Params)
}

// Catalog resolves schemas referenced by document fields.
type Catalog interface {
	SchemaByID(id uuid.UUID) *schema.Schema
}
