package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const loadQuery = `
SELECT
	s.id, s.name, s.title, s.variant,
	f.id, f.name, f.title, f.type, f."parentFieldId",
	f."primeField", f.options, f.position
FROM "schemas" s
LEFT JOIN "schema_fields" f ON f."schemaId" = s.id
ORDER BY s.name, f.position, f.name
`

// Cache is an in-memory snapshot of every schema and its fields.
// Readers get *Schema values that are never mutated after a load.
type Cache struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
	byID    map[uuid.UUID]*Schema
}

func NewCache() *Cache {
	return &Cache{
		schemas: make(map[string]*Schema),
		byID:    make(map[uuid.UUID]*Schema),
	}
}

// NewCacheFromSchemas builds a cache from in-memory definitions (tests, CLI).
func NewCacheFromSchemas(schemas ...*Schema) *Cache {
	c := NewCache()
	c.replace(schemas)
	return c
}

func (c *Cache) Load(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, loadQuery)
	if err != nil {
		return fmt.Errorf("schema cache load: %w", err)
	}
	defer rows.Close()

	var ordered []*Schema
	byID := make(map[uuid.UUID]*Schema)

	for rows.Next() {
		var (
			sID       uuid.UUID
			sName     string
			sTitle    string
			sVariant  string
			fID       *uuid.UUID
			fName     *string
			fTitle    *string
			fType     *string
			fParentID *uuid.UUID
			fPrime    *bool
			fOptions  json.RawMessage
			fPosition *int
		)

		err := rows.Scan(
			&sID, &sName, &sTitle, &sVariant,
			&fID, &fName, &fTitle, &fType, &fParentID,
			&fPrime, &fOptions, &fPosition,
		)
		if err != nil {
			return fmt.Errorf("schema cache scan: %w", err)
		}

		s, exists := byID[sID]
		if !exists {
			s = &Schema{
				ID:      sID,
				Name:    sName,
				Title:   sTitle,
				Variant: sVariant,
			}
			byID[sID] = s
			ordered = append(ordered, s)
		}

		if fID == nil {
			continue
		}

		opts, err := ParseFieldOptions(fOptions)
		if err != nil {
			return fmt.Errorf("schema cache field %s: %w", *fID, err)
		}
		field := FieldDef{
			ID:            *fID,
			SchemaID:      sID,
			Name:          *fName,
			Title:         *fTitle,
			Type:          FieldType(*fType),
			ParentFieldID: fParentID,
			Options:       opts,
		}
		if fPrime != nil {
			field.PrimeField = *fPrime
		}
		if fPosition != nil {
			field.Position = *fPosition
		}
		s.Fields = append(s.Fields, field)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("schema cache rows: %w", err)
	}

	c.replace(ordered)
	return nil
}

func (c *Cache) replace(schemas []*Schema) {
	byName := make(map[string]*Schema, len(schemas))
	byID := make(map[uuid.UUID]*Schema, len(schemas))
	for _, s := range schemas {
		byName[s.Name] = s
		byID[s.ID] = s
	}

	c.mu.Lock()
	c.schemas = byName
	c.byID = byID
	c.mu.Unlock()
}

func (c *Cache) Get(name string) *Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schemas[name]
}

// GetByID finds a schema by its UUID.
func (c *Cache) GetByID(id uuid.UUID) *Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID[id]
}

// SchemaByID makes the cache usable as a filter catalog.
func (c *Cache) SchemaByID(id uuid.UUID) *Schema {
	return c.GetByID(id)
}

// Count returns the number of loaded schemas.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schemas)
}

// Schemas returns all schemas ordered by name.
func (c *Cache) Schemas() []*Schema {
	c.mu.RLock()
	out := make([]*Schema, 0, len(c.schemas))
	for _, s := range c.schemas {
		out = append(out, s)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DecodeCatalog reads a JSON array of schemas (with nested fields) into a cache.
// Field SchemaID is filled from the enclosing schema when omitted.
func DecodeCatalog(r io.Reader) (*Cache, error) {
	var schemas []*Schema
	if err := json.NewDecoder(r).Decode(&schemas); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for _, s := range schemas {
		if s.ID == uuid.Nil {
			return nil, fmt.Errorf("decode catalog: schema %q has no id", s.Name)
		}
		for i := range s.Fields {
			if s.Fields[i].SchemaID == uuid.Nil {
				s.Fields[i].SchemaID = s.ID
			}
		}
	}
	return NewCacheFromSchemas(schemas...), nil
}
