package main

import (
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atlekbai/document_registry/internal/schema"
)

type schemaListing struct {
	ID     uuid.UUID      `json:"id"`
	Name   string         `json:"name"`
	Fields []fieldListing `json:"fields"`
}

type fieldListing struct {
	ID     uuid.UUID        `json:"id"`
	Name   string           `json:"name"`
	Type   schema.FieldType `json:"type"`
	Parent *uuid.UUID       `json:"parent,omitempty"`
	Prime  bool             `json:"prime"`
}

func newSchemasCmd() *cobra.Command {
	var catalog string
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List the schemas and fields a catalog defines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchemas(cmd.OutOrStdout(), catalog)
		},
	}
	cmd.Flags().StringVar(&catalog, "catalog", "", "path to the JSON schema catalog")
	cmd.MarkFlagRequired("catalog")
	return cmd
}

func runSchemas(out io.Writer, catalog string) error {
	cache, err := loadCatalog(catalog)
	if err != nil {
		return err
	}

	schemas := cache.Schemas()
	listing := make([]schemaListing, 0, len(schemas))
	for _, s := range schemas {
		l := schemaListing{ID: s.ID, Name: s.Name, Fields: make([]fieldListing, 0, len(s.Fields))}
		for _, fd := range s.Fields {
			l.Fields = append(l.Fields, fieldListing{
				ID:     fd.ID,
				Name:   fd.Name,
				Type:   fd.Type,
				Parent: fd.ParentFieldID,
				Prime:  fd.PrimeField,
			})
		}
		listing = append(listing, l)
	}
	return writeJSON(out, listing)
}
