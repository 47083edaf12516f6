package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"faturamento/internal/core"
	applog "faturamento/internal/log"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to 400, 404 or 500 and writes {"error": message}.
// Internal errors are logged and their details are not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	applog.LogError(r.Context(), "Request failed", err, operation)

	switch {
	case core.IsValidation(err):
		var ve *core.ValidationError
		errors.As(err, &ve)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error()})
	case core.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// decodeJSON reads a JSON body into dst. Malformed input is a validation error.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Message: "request body is empty", Err: io.EOF}
		}
		return core.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// pathID parses the {name} route variable as a positive id.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(name, fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// sanitizeInput removes control characters (except tab and newlines) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := decodeJSON(r, dst); !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
