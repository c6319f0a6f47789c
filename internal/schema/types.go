package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// QuoteIdent quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLit returns a single-quoted SQL string literal with escaping.
func QuoteLit(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type FieldType string

const (
	FieldString   FieldType = "string"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDatetime FieldType = "datetime"
	FieldDocument FieldType = "document"
	FieldGroup    FieldType = "group"
	FieldSlice    FieldType = "slice"
	FieldAsset    FieldType = "asset"
	FieldRichText FieldType = "richtext"
)

// FieldOptions holds the type-specific settings of a field.
// Document fields point at one schema (SchemaID) or a set of candidates (SchemaIDs).
type FieldOptions struct {
	SchemaID  *uuid.UUID  `json:"schemaId,omitempty"`
	SchemaIDs []uuid.UUID `json:"schemaIds,omitempty"`
	Multiple  bool        `json:"multiple,omitempty"`
}

// ParseFieldOptions decodes the raw options column. Empty input yields zero options.
func ParseFieldOptions(raw json.RawMessage) (FieldOptions, error) {
	var opts FieldOptions
	if len(raw) == 0 || string(raw) == "null" {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("field options: %w", err)
	}
	return opts, nil
}

type FieldDef struct {
	ID            uuid.UUID    `json:"id"`
	SchemaID      uuid.UUID    `json:"schemaId"`
	Name          string       `json:"name"`
	Title         string       `json:"title"`
	Type          FieldType    `json:"type"`
	ParentFieldID *uuid.UUID   `json:"parentFieldId,omitempty"`
	PrimeField    bool         `json:"primeField"`
	Options       FieldOptions `json:"options"`
	Position      int          `json:"position"`
}

// IsDocument returns true for fields referencing documents of another schema.
func (f *FieldDef) IsDocument() bool {
	return f.Type == FieldDocument
}

// TargetSchemaID returns the schema a document field points at.
// A single schemaId wins over the first entry of schemaIds.
func (f *FieldDef) TargetSchemaID() (uuid.UUID, bool) {
	if f.Options.SchemaID != nil && *f.Options.SchemaID != uuid.Nil {
		return *f.Options.SchemaID, true
	}
	if len(f.Options.SchemaIDs) > 0 {
		return f.Options.SchemaIDs[0], true
	}
	return uuid.Nil, false
}

// HasParent reports whether the field's parent equals parent (nil means top level).
func (f *FieldDef) HasParent(parent *uuid.UUID) bool {
	if f.ParentFieldID == nil || parent == nil {
		return f.ParentFieldID == nil && parent == nil
	}
	return *f.ParentFieldID == *parent
}

type Schema struct {
	ID      uuid.UUID  `json:"id"`
	Name    string     `json:"name"`
	Title   string     `json:"title"`
	Variant string     `json:"variant"`
	Fields  []FieldDef `json:"fields"`
}

// FindField resolves a field by name within the nesting level identified by parent.
// Same-named fields under different parents are distinct.
func (s *Schema) FindField(name string, parent *uuid.UUID) *FieldDef {
	return FindField(s.Fields, name, parent)
}

// FindField is the slice form of Schema.FindField.
func FindField(fields []FieldDef, name string, parent *uuid.UUID) *FieldDef {
	for i := range fields {
		if fields[i].Name == name && fields[i].HasParent(parent) {
			return &fields[i]
		}
	}
	return nil
}
