package query

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/atlekbai/document_registry/internal/filter"
	"github.com/atlekbai/document_registry/internal/schema"
)

var (
	articleSchemaID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	authorSchemaID  = uuid.MustParse("00000000-0000-0000-0000-000000000002")

	titleID   = uuid.MustParse("00000000-0000-0000-0000-000000000a01")
	viewsID   = uuid.MustParse("00000000-0000-0000-0000-000000000a02")
	metaID    = uuid.MustParse("00000000-0000-0000-0000-000000000a03")
	metaTitle = uuid.MustParse("00000000-0000-0000-0000-000000000a04")
	authorID  = uuid.MustParse("00000000-0000-0000-0000-000000000a06")
	nameID    = uuid.MustParse("00000000-0000-0000-0000-000000000b01")
)

func testCatalog() *schema.Cache {
	article := &schema.Schema{
		ID:   articleSchemaID,
		Name: "article",
		Fields: []schema.FieldDef{
			{ID: titleID, Name: "title", Type: schema.FieldString, PrimeField: true},
			{ID: viewsID, Name: "views", Type: schema.FieldNumber, PrimeField: true},
			{ID: metaID, Name: "meta", Type: schema.FieldGroup, PrimeField: true},
			{ID: metaTitle, Name: "title", Type: schema.FieldString, PrimeField: true, ParentFieldID: &metaID},
			{ID: authorID, Name: "author", Type: schema.FieldDocument, Options: schema.FieldOptions{SchemaID: &authorSchemaID}},
		},
	}
	author := &schema.Schema{
		ID:   authorSchemaID,
		Name: "author",
		Fields: []schema.FieldDef{
			{ID: nameID, Name: "name", Type: schema.FieldString, PrimeField: true},
		},
	}
	return schema.NewCacheFromSchemas(article, author)
}

func testCompiler(t *testing.T, cache *schema.Cache) *filter.Compiler {
	t.Helper()
	return filter.NewCompiler(cache, filter.WithLogger(zaptest.NewLogger(t)))
}

// path renders the text accessor of a payload field on the documents alias.
func path(ids ...uuid.UUID) string {
	return filter.TextPath(qAlias, ids)
}
