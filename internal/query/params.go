package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/atlekbai/document_registry/internal/filter"
	"github.com/atlekbai/document_registry/internal/schema"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var reservedParams = map[string]bool{
	"where":  true,
	"order":  true,
	"limit":  true,
	"cursor": true,
}

type OrderClause struct {
	FieldName string
	Desc      bool
}

// Cursor holds keyset pagination state: the last row's document ID and optional sort value.
type Cursor struct {
	ID       string `json:"id"`
	OrderVal string `json:"v,omitempty"`
}

// EncodeCursor returns an opaque base64 token for the cursor.
func EncodeCursor(id string, orderVal string) string {
	c := Cursor{ID: id, OrderVal: orderVal}
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a cursor token. Accepts both base64 tokens and plain UUIDs.
func DecodeCursor(raw string) (*Cursor, error) {
	if _, err := uuid.Parse(raw); err == nil {
		return &Cursor{ID: raw}, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding")
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format")
	}
	if _, err := uuid.Parse(c.ID); err != nil {
		return nil, fmt.Errorf("invalid cursor id")
	}
	return &c, nil
}

type QueryParams struct {
	Filter filter.Expr
	Order  *OrderClause
	Limit  int
	Cursor *Cursor
}

// ParamsInput is the transport-neutral form of a document query.
type ParamsInput struct {
	Where   []byte            // JSON filter expression
	Filter  filter.Expr       // already-decoded filter, applied after Where
	Filters map[string]string // shorthand filters: field -> "op.value"
	Order   string            // "field" or "field.desc"
	Limit   int
	Cursor  string
}

// ParseParams validates a query against the schema it targets.
func ParseParams(s *schema.Schema, in ParamsInput) (*QueryParams, error) {
	p := &QueryParams{Limit: DefaultLimit}

	where, err := filter.Parse(in.Where)
	if err != nil {
		return nil, err
	}
	p.Filter = filter.Merge(where, in.Filter)

	keys := make([]string, 0, len(in.Filters))
	for k := range in.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		expr, err := ParseShorthand(key, in.Filters[key])
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", key, err)
		}
		p.Filter = filter.Merge(p.Filter, expr)
	}

	if in.Order != "" {
		fieldName, dir, _ := strings.Cut(in.Order, ".")
		fd := s.FindField(fieldName, nil)
		if fd == nil || !fd.PrimeField || fd.IsDocument() {
			return nil, fmt.Errorf("unknown field %q in order", fieldName)
		}
		p.Order = &OrderClause{FieldName: fieldName, Desc: strings.EqualFold(dir, "desc")}
	}

	if in.Limit < 0 {
		return nil, fmt.Errorf("invalid limit %d", in.Limit)
	}
	if in.Limit > 0 {
		p.Limit = min(in.Limit, MaxLimit)
	}

	if in.Cursor != "" {
		c, err := DecodeCursor(in.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", in.Cursor, err)
		}
		p.Cursor = c
	}

	return p, nil
}

// InputFromRequest reads ?where=, ?order=, ?limit=, ?cursor= and shorthand
// ?field=op.value filters from the URL.
func InputFromRequest(r *http.Request) (ParamsInput, error) {
	q := r.URL.Query()
	in := ParamsInput{
		Order:  q.Get("order"),
		Cursor: q.Get("cursor"),
	}
	if w := q.Get("where"); w != "" {
		in.Where = []byte(w)
	}
	if lim := q.Get("limit"); lim != "" {
		n, err := strconv.Atoi(lim)
		if err != nil || n < 1 {
			return in, fmt.Errorf("invalid limit %q", lim)
		}
		in.Limit = n
	}

	for key, values := range q {
		if reservedParams[key] || len(values) == 0 {
			continue
		}
		if in.Filters == nil {
			in.Filters = make(map[string]string)
		}
		in.Filters[key] = values[0]
	}
	return in, nil
}
