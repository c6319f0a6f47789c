package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// writeServiceError maps a connect error code to an HTTP status and error code.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		h.logger.Error("unexpected service error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err.Error())
		return
	}

	switch cerr.Code() {
	case connect.CodeNotFound:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", cerr.Message())
	case connect.CodeInvalidArgument:
		writeError(w, http.StatusBadRequest, "INVALID_PARAM", cerr.Message(), "")
	default:
		h.logger.Error("service error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Query failed", cerr.Message())
	}
}
