package filter

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/atlekbai/document_registry/internal/schema"
)

// Stable UUIDs for predictable SQL output.
var (
	articleSchemaID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	authorSchemaID  = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	missingSchemaID = uuid.MustParse("00000000-0000-0000-0000-000000000999")

	titleID   = uuid.MustParse("00000000-0000-0000-0000-000000000a01")
	viewsID   = uuid.MustParse("00000000-0000-0000-0000-000000000a02")
	metaID    = uuid.MustParse("00000000-0000-0000-0000-000000000a03")
	metaTitle = uuid.MustParse("00000000-0000-0000-0000-000000000a04")
	metaTags  = uuid.MustParse("00000000-0000-0000-0000-000000000a05")
	editorID  = uuid.MustParse("00000000-0000-0000-0000-000000000a0a")
	authorID  = uuid.MustParse("00000000-0000-0000-0000-000000000a06")
	relatedID = uuid.MustParse("00000000-0000-0000-0000-000000000a07")
	legacyID  = uuid.MustParse("00000000-0000-0000-0000-000000000a08")
	orphanID  = uuid.MustParse("00000000-0000-0000-0000-000000000a09")
	nameID    = uuid.MustParse("00000000-0000-0000-0000-000000000b01")
)

const docAlias = "_d"

func testCatalog() *schema.Cache {
	article := &schema.Schema{
		ID:   articleSchemaID,
		Name: "article",
		Fields: []schema.FieldDef{
			{ID: titleID, Name: "title", Type: schema.FieldString, PrimeField: true},
			{ID: viewsID, Name: "views", Type: schema.FieldNumber, PrimeField: true},
			{ID: metaID, Name: "meta", Type: schema.FieldGroup, PrimeField: true},
			{ID: metaTitle, Name: "title", Type: schema.FieldString, PrimeField: true, ParentFieldID: &metaID},
			{ID: metaTags, Name: "tags", Type: schema.FieldString, PrimeField: true, ParentFieldID: &metaID},
			{ID: editorID, Name: "editor", Type: schema.FieldDocument, ParentFieldID: &metaID, Options: schema.FieldOptions{SchemaID: &authorSchemaID}},
			{ID: authorID, Name: "author", Type: schema.FieldDocument, Options: schema.FieldOptions{SchemaID: &authorSchemaID}},
			{ID: relatedID, Name: "related", Type: schema.FieldDocument, Options: schema.FieldOptions{SchemaIDs: []uuid.UUID{articleSchemaID, authorSchemaID}}},
			{ID: legacyID, Name: "legacy", Type: schema.FieldString},
			{ID: orphanID, Name: "orphan", Type: schema.FieldDocument, Options: schema.FieldOptions{SchemaID: &missingSchemaID}},
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

func compileExpr(t *testing.T, expr Expr, opts ...Option) (*recorder, error) {
	t.Helper()
	cache := testCatalog()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c := NewCompiler(cache, opts...)
	rec := &recorder{}
	err := c.Compile(rec, docAlias, cache.Get("article").Fields, expr)
	return rec, err
}

func mustCompile(t *testing.T, expr Expr, opts ...Option) *recorder {
	t.Helper()
	rec, err := compileExpr(t, expr, opts...)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return rec
}

func mustParse(t *testing.T, src string) Expr {
	t.Helper()
	expr, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse %s: %v", src, err)
	}
	return expr
}

func textAt(ids ...uuid.UUID) string {
	return TextPath(docAlias, ids)
}

// --- Comparison leaves ---

func TestCompileSingleComparison(t *testing.T) {
	rec := mustCompile(t, Field("title", Cmp(OpEq, "hello")))

	if len(rec.items) != 1 {
		t.Fatalf("expected 1 clause, got %d", len(rec.items))
	}
	got := rec.items[0]
	want := textAt(titleID) + " = :p1"
	if got.sql != want {
		t.Fatalf("expected %q, got %q", want, got.sql)
	}
	if got.mode != ModeAnd {
		t.Fatalf("expected AND mode, got %s", got.mode)
	}
	if len(got.params) != 1 || got.params["p1"] != "hello" {
		t.Fatalf("expected p1=hello, got %v", got.params)
	}
}

func TestCompileOperatorSymbols(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpGt, ">"},
		{OpGte, ">="},
		{OpLt, "<"},
		{OpLte, "<="},
		{OpEq, "="},
		{OpNot, "!="},
		{OpContains, "LIKE"},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			rec := mustCompile(t, Field("views", Cmp(tt.op, "10")))
			want := textAt(viewsID) + " " + tt.want + " :p1"
			if rec.items[0].sql != want {
				t.Fatalf("expected %q, got %q", want, rec.items[0].sql)
			}
		})
	}
}

func TestCompileContainsWrapsValue(t *testing.T) {
	rec := mustCompile(t, Field("title", Cmp(OpContains, "go")))
	if v := rec.items[0].params["p1"]; v != "%go%" {
		t.Fatalf("expected %%go%%, got %v", v)
	}
}

func TestCompileInBindsList(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"title": {"in": ["a", "b"]}}`))
	want := textAt(titleID) + " IN (:p1)"
	if rec.items[0].sql != want {
		t.Fatalf("expected %q, got %q", want, rec.items[0].sql)
	}
	if !reflect.DeepEqual(rec.items[0].params["p1"], []any{"a", "b"}) {
		t.Fatalf("expected [a b], got %v", rec.items[0].params["p1"])
	}

	rec = mustCompile(t, Field("title", Cmp(OpIn, "solo")))
	if !reflect.DeepEqual(rec.items[0].params["p1"], []any{"solo"}) {
		t.Fatalf("expected scalar wrapped in a list, got %v", rec.items[0].params["p1"])
	}
}

func TestCompileNullComparisons(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"title": {"eq": null, "not": null, "gt": null}}`))
	if len(rec.items) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(rec.items))
	}
	if rec.items[0].sql != textAt(titleID)+" IS NULL" {
		t.Fatalf("unexpected eq null clause %q", rec.items[0].sql)
	}
	if rec.items[1].sql != textAt(titleID)+" IS NOT NULL" {
		t.Fatalf("unexpected not null clause %q", rec.items[1].sql)
	}
	if len(rec.params()) != 0 {
		t.Fatalf("expected no params, got %v", rec.params())
	}
}

func TestCompileFalsyOperandsAreKept(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"views": {"eq": 0}}`))
	if len(rec.items) != 1 {
		t.Fatalf("expected zero operand to compile, got %d clauses", len(rec.items))
	}
}

func TestCompileRootComparisonDropped(t *testing.T) {
	rec := mustCompile(t, Cmp(OpEq, "x"))
	if len(rec.items) != 0 {
		t.Fatalf("expected no clause, got %v", rec.items)
	}
}

// --- Logical groups ---

func TestCompileAndGroup(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"AND": [{"title": {"eq": 1}}, {"views": {"eq": 2}}]}`))

	want := "(" + textAt(titleID) + " = :p1 AND " + textAt(viewsID) + " = :p2)"
	if got := rec.where(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileOrGroup(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"OR": [{"title": {"eq": 1}}, {"title": {"eq": 2}}]}`))

	want := "(" + textAt(titleID) + " = :p1 OR " + textAt(titleID) + " = :p2)"
	if got := rec.where(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileNestedGroups(t *testing.T) {
	// (a OR b) AND (c AND d)
	rec := mustCompile(t, mustParse(t, `{"AND": [
		{"OR": [{"title": {"eq": "a"}}, {"title": {"eq": "b"}}]},
		{"AND": [{"views": {"gt": 1}}, {"views": {"lt": 9}}]}
	]}`))

	want := "((" + textAt(titleID) + " = :p1 OR " + textAt(titleID) + " = :p2) AND (" +
		textAt(viewsID) + " > :p3 AND " + textAt(viewsID) + " < :p4))"
	if got := rec.where(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCompileGroupAttachesWithOuterMode(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"OR": [{"title": {"eq": "a"}}, {"AND": [{"views": {"eq": 1}}]}]}`))

	outer := rec.items[0].group
	if outer == nil || len(outer.items) != 2 {
		t.Fatalf("expected one group with two entries, got %+v", rec.items)
	}
	if outer.items[1].group == nil || outer.items[1].mode != ModeOr {
		t.Fatalf("expected inner AND group attached with OR, got %+v", outer.items[1])
	}
	if outer.items[1].group.items[0].mode != ModeAnd {
		t.Fatalf("expected inner clause attached with AND")
	}
}

// --- Nested composite fields ---

func TestCompileNestedFieldPath(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"meta": {"title": {"eq": "x"}}}`))

	want := `"_d"."data"->'` + metaID.String() + `'->>'` + metaTitle.String() + `' = :p1`
	if rec.items[0].sql != want {
		t.Fatalf("expected %q, got %q", want, rec.items[0].sql)
	}
}

func TestCompileScopeDisambiguatesNames(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"title": {"eq": "top"}, "meta": {"title": {"eq": "inner"}}}`))

	if len(rec.items) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(rec.items))
	}
	if !strings.HasSuffix(rec.items[0].sql, `->>'`+titleID.String()+`' = :p1`) {
		t.Fatalf("top-level title resolved wrongly: %q", rec.items[0].sql)
	}
	if !strings.HasSuffix(rec.items[1].sql, `->>'`+metaTitle.String()+`' = :p2`) {
		t.Fatalf("nested title resolved wrongly: %q", rec.items[1].sql)
	}
}

func TestCompileChildNotVisibleAtTopLevel(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"tags": {"eq": "x"}}`))
	if len(rec.items) != 0 {
		t.Fatalf("expected nested-only field to be skipped at top level, got %v", rec.items)
	}
}

func TestCompileNestedFieldKeepsMode(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"OR": [{"meta": {"title": {"eq": "a"}, "tags": {"eq": "b"}}}]}`))

	group := rec.items[0].group
	if len(group.items) != 2 {
		t.Fatalf("expected 2 clauses inside group, got %d", len(group.items))
	}
	for _, it := range group.items {
		if it.mode != ModeOr {
			t.Fatalf("expected nested clauses to attach with OR, got %s", it.mode)
		}
	}
}

// --- Document references ---

func TestCompileDocumentReference(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"author": {"name": {"eq": "y"}}}`))

	if len(rec.items) != 1 {
		t.Fatalf("expected 1 clause, got %d", len(rec.items))
	}
	want := textAt(authorID) + ` IN (SELECT concat("f"."schemaId"::text, ',', "f"."documentId"::text) FROM "documents" "f" ` +
		`WHERE "f"."schemaId" = :p1 AND "f"."data"->>'` + nameID.String() + `' = :p2)`
	if got := rec.items[0].sql; got != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, got)
	}
	params := rec.items[0].params
	if params["p1"] != authorSchemaID || params["p2"] != "y" {
		t.Fatalf("unexpected params %v", params)
	}
}

func TestCompileNestedDocumentReference(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"meta": {"editor": {"name": {"eq": "y"}}}}`))

	if len(rec.items) != 1 {
		t.Fatalf("expected 1 clause, got %d", len(rec.items))
	}
	accessor := `"_d"."data"->'` + metaID.String() + `'->>'` + editorID.String() + `'`
	if accessor != textAt(metaID, editorID) {
		t.Fatalf("unexpected accessor helper %s", textAt(metaID, editorID))
	}
	want := accessor + ` IN (SELECT concat("f"."schemaId"::text, ',', "f"."documentId"::text) FROM "documents" "f" ` +
		`WHERE "f"."schemaId" = :p1 AND "f"."data"->>'` + nameID.String() + `' = :p2)`
	if got := rec.items[0].sql; got != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, got)
	}
	if rec.items[0].params["p1"] != authorSchemaID {
		t.Fatalf("unexpected params %v", rec.items[0].params)
	}
}

func TestCompileDocumentReferenceFirstCandidate(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"related": {"title": {"eq": "z"}}}`))

	if rec.items[0].params["p1"] != articleSchemaID {
		t.Fatalf("expected first candidate schema, got %v", rec.items[0].params["p1"])
	}
}

func TestCompileSelfReferenceTerminates(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"related": {"related": {"title": {"eq": "deep"}}}}`))

	sql := rec.items[0].sql
	if n := strings.Count(sql, "SELECT"); n != 2 {
		t.Fatalf("expected 2 nested subqueries, got %d in %q", n, sql)
	}
	if len(rec.items[0].params) != 3 {
		t.Fatalf("expected 3 params, got %v", rec.items[0].params)
	}
}

func TestCompileDocumentMissingSchema(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"orphan": {"name": {"eq": "y"}}}`))
	if len(rec.items) != 0 {
		t.Fatalf("expected no clause, got %v", rec.items)
	}

	_, err := compileExpr(t, mustParse(t, `{"orphan": {"name": {"eq": "y"}}}`), WithStrict(true))
	var schemaErr *UnknownSchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected UnknownSchemaError, got %v", err)
	}
	if schemaErr.SchemaID != missingSchemaID {
		t.Fatalf("expected %s, got %s", missingSchemaID, schemaErr.SchemaID)
	}
}

func TestCompileDocumentCustomTable(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"author": {"name": {"eq": "y"}}}`), WithDocumentsTable("doc_versions"))
	if !strings.Contains(rec.items[0].sql, `FROM "doc_versions" "f"`) {
		t.Fatalf("expected custom documents table, got %q", rec.items[0].sql)
	}
}

// --- Skipped entries ---

func TestCompileUnknownFieldSkipped(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"nope": {"eq": 1}, "title": {"eq": "a"}}`))
	if len(rec.items) != 1 {
		t.Fatalf("expected only the known field to compile, got %d", len(rec.items))
	}
}

func TestCompileUnknownFieldStrict(t *testing.T) {
	_, err := compileExpr(t, mustParse(t, `{"meta": {"nope": {"eq": 1}}}`), WithStrict(true))
	var fieldErr *UnknownFieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected UnknownFieldError, got %v", err)
	}
	if fieldErr.Name != "nope" || fieldErr.Parent == nil || *fieldErr.Parent != metaID {
		t.Fatalf("unexpected error detail %+v", fieldErr)
	}
}

func TestCompileStrictErrorInsideGroup(t *testing.T) {
	_, err := compileExpr(t, mustParse(t, `{"OR": [{"title": {"eq": 1}}, {"nope": {"eq": 2}}]}`), WithStrict(true))
	if err == nil {
		t.Fatal("expected error from inside group")
	}
}

func TestCompileNonFilterableFieldSkipped(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"legacy": {"eq": "a"}}`))
	if len(rec.items) != 0 {
		t.Fatalf("expected non-prime field to be skipped, got %v", rec.items)
	}
}

func TestCompileEmptyFilter(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{}`))
	if len(rec.items) != 0 {
		t.Fatalf("expected no clauses, got %v", rec.items)
	}
	rec = mustCompile(t, nil)
	if len(rec.items) != 0 {
		t.Fatalf("expected no clauses for nil filter, got %v", rec.items)
	}
}

// --- Determinism and binding ---

func TestCompileDeterministic(t *testing.T) {
	src := `{"OR": [{"author": {"name": {"contains": "a"}}}, {"meta": {"tags": {"in": ["x", "y"]}}}], "views": {"gte": 3}}`

	first := mustCompile(t, mustParse(t, src))
	second := mustCompile(t, mustParse(t, src))

	if first.where() != second.where() {
		t.Fatalf("SQL differs:\n%s\n%s", first.where(), second.where())
	}
	if !reflect.DeepEqual(first.params(), second.params()) {
		t.Fatalf("params differ: %v vs %v", first.params(), second.params())
	}
}

func TestCompileEqualValuesGetDistinctParams(t *testing.T) {
	rec := mustCompile(t, mustParse(t, `{"title": {"eq": "same"}, "meta": {"title": {"eq": "same"}}}`))

	params := rec.params()
	if len(params) != 2 {
		t.Fatalf("expected 2 distinct params for equal values, got %v", params)
	}
}

func TestCompileParamsRoundTrip(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{`{"title": {"eq": "héllo 'q'"}}`, "héllo 'q'"},
		{`{"views": {"gt": 1.50}}`, "1.50"},
		{`{"title": {"contains": "50%"}}`, "%50%%"},
		{`{"title": {"not": true}}`, true},
	}
	for _, tt := range tests {
		rec := mustCompile(t, mustParse(t, tt.src))
		if rec.clauses() != 1 {
			t.Fatalf("%s: expected 1 clause, got %d", tt.src, rec.clauses())
		}
		got := rec.items[0].params["p1"]
		if Text(got) != Text(tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.src, tt.want, got)
		}
	}
}

func TestCompilerSharedAcrossCompilations(t *testing.T) {
	cache := testCatalog()
	c := NewCompiler(cache)
	fields := cache.Get("article").Fields

	for i := 0; i < 3; i++ {
		rec := &recorder{}
		if err := c.Compile(rec, docAlias, fields, Field("title", Cmp(OpEq, "a"))); err != nil {
			t.Fatal(err)
		}
		if _, ok := rec.items[0].params["p1"]; !ok {
			t.Fatalf("expected numbering to restart per compilation, got %v", rec.items[0].params)
		}
	}
}
