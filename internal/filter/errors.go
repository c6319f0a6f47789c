package filter

import (
	"fmt"

	"github.com/google/uuid"
)

// UnknownFieldError is returned in strict mode for a filter key that matches
// no field at the current nesting level.
type UnknownFieldError struct {
	Name   string
	Parent *uuid.UUID
}

func (e *UnknownFieldError) Error() string {
	if e.Parent == nil {
		return fmt.Sprintf("unknown field %q", e.Name)
	}
	return fmt.Sprintf("unknown field %q under field %s", e.Name, e.Parent)
}

// UnknownSchemaError is returned in strict mode when a document field points
// at a schema missing from the catalog (or at none at all).
type UnknownSchemaError struct {
	Field    string
	SchemaID uuid.UUID
}

func (e *UnknownSchemaError) Error() string {
	if e.SchemaID == uuid.Nil {
		return fmt.Sprintf("document field %q has no target schema", e.Field)
	}
	return fmt.Sprintf("document field %q references unknown schema %s", e.Field, e.SchemaID)
}
