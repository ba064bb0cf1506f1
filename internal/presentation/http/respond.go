package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/escrowshop/internal/application/apperr"
	"github.com/Zhima-Mochi/escrowshop/internal/observability"
	"github.com/Zhima-Mochi/escrowshop/internal/observability/logctx"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched
// when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps the application error kinds onto HTTP statuses.
// Unclassified errors are logged and answered with a generic 500.
func writeDomainError(ctx context.Context, log observability.Logger, w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, apperr.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrUnauthorized):
		status, kind = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperr.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	case errors.Is(err, apperr.ErrExternal):
		status, kind = http.StatusBadGateway, "external"
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logctx.FromOr(ctx, log).Error("http_internal_error", observability.Err(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "validation"})
}
