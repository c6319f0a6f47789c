package filter

import (
	"strings"

	"github.com/google/uuid"

	"github.com/atlekbai/document_registry/internal/schema"
)

const dataColumn = "data"

// TextPath returns the accessor for the value at scope inside table's JSON payload.
// Intermediate steps use -> so they stay JSON; the last step uses ->> and yields text:
//
//	"t"."data"->'<a>'->'<b>'->>'<c>'
//
// An empty scope has no text value to compare and yields "".
func TextPath(table string, scope []uuid.UUID) string {
	if len(scope) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(schema.QuoteIdent(table))
	b.WriteByte('.')
	b.WriteString(schema.QuoteIdent(dataColumn))
	for i, id := range scope {
		if i == len(scope)-1 {
			b.WriteString("->>")
		} else {
			b.WriteString("->")
		}
		b.WriteString(schema.QuoteLit(id.String()))
	}
	return b.String()
}

// withScope returns scope extended by id without sharing scope's backing array.
func withScope(scope []uuid.UUID, id uuid.UUID) []uuid.UUID {
	next := make([]uuid.UUID, len(scope), len(scope)+1)
	copy(next, scope)
	return append(next, id)
}

// innermost returns the enclosing field id, or nil at the top level.
func innermost(scope []uuid.UUID) *uuid.UUID {
	if len(scope) == 0 {
		return nil
	}
	id := scope[len(scope)-1]
	return &id
}
