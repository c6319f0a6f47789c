package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/atlekbai/document_registry/internal/query"
	"github.com/atlekbai/document_registry/internal/service"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// Documents is the document service as the REST surface sees it.
type Documents interface {
	List(ctx context.Context, schemaName string, in query.ParamsInput) (*service.ListResult, error)
	Count(ctx context.Context, schemaName string, in query.ParamsInput) (int64, error)
	Get(ctx context.Context, schemaName, id string) (json.RawMessage, error)
	Compile(schemaName string, in query.ParamsInput) (*service.Compiled, error)
}

type Handler struct {
	docs   Documents
	logger *zap.Logger
}

func New(docs Documents, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{docs: docs, logger: logger}
}

// Routes registers the REST endpoints on r.
func (h *Handler) Routes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/{schema}", h.List).Methods(http.MethodGet)
	api.HandleFunc("/{schema}/count", h.Count).Methods(http.MethodGet)
	api.HandleFunc("/{schema}/query", h.Query).Methods(http.MethodPost)
	api.HandleFunc("/{schema}/compile", h.Compile).Methods(http.MethodPost)
	api.HandleFunc("/{schema}/{id}", h.GetByID).Methods(http.MethodGet)
}

// List handles GET /api/{schema}
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	in, err := query.InputFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), "")
		return
	}
	h.list(w, r, in)
}

// Query handles POST /api/{schema}/query with the filter in the body.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.list(w, r, in)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, in query.ParamsInput) {
	res, err := h.docs.List(r.Context(), mux.Vars(r)["schema"], in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSONList(w, res)
}

// Count handles GET /api/{schema}/count and always returns the exact count.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	in, err := query.InputFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error(), "")
		return
	}
	count, err := h.docs.Count(r.Context(), mux.Vars(r)["schema"], in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// GetByID handles GET /api/{schema}/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, err := h.docs.Get(r.Context(), vars["schema"], vars["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
	w.Write([]byte{'\n'})
}

// Compile handles POST /api/{schema}/compile and returns the generated SQL.
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readBody(w, r)
	if !ok {
		return
	}
	compiled, err := h.docs.Compile(mux.Vars(r)["schema"], in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compiled)
}

// queryBody is the POST form of a query. Where stays raw so key order survives.
type queryBody struct {
	Where   json.RawMessage   `json:"where"`
	Filters map[string]string `json:"filters"`
	Order   string            `json:"order"`
	Limit   int               `json:"limit"`
	Cursor  string            `json:"cursor"`
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) (query.ParamsInput, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to read body", err.Error())
		return query.ParamsInput{}, false
	}
	var qb queryBody
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &qb); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "Body must be a JSON object", err.Error())
			return query.ParamsInput{}, false
		}
	}
	return query.ParamsInput{
		Where:   qb.Where,
		Filters: qb.Filters,
		Order:   qb.Order,
		Limit:   qb.Limit,
		Cursor:  qb.Cursor,
	}, true
}

// writeJSONList writes the list response, streaming raw JSON rows without re-marshaling.
func writeJSONList(w http.ResponseWriter, res *service.ListResult) {
	buf := &bytes.Buffer{}
	buf.WriteString(fmt.Sprintf(`{"total_count":%d`, res.TotalCount))
	if res.NextCursor != nil {
		buf.WriteString(`,"next_cursor":`)
		enc, _ := json.Marshal(*res.NextCursor)
		buf.Write(enc)
	}
	buf.WriteString(`,"results":[`)
	for i, r := range res.Results {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(r)
	}
	buf.WriteString("]}\n")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
