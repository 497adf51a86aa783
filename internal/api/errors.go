package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/gate"
	"github.com/camhive/live-core/internal/signal"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the core taxonomy onto HTTP. ErrSessionEnded joins
// ErrNotFound on 404: for a polling client a finished session and a
// missing one read the same, both distinct from a 403 gate.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrSessionEnded):
		writeJSONError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, core.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, core.ErrConflict):
		writeJSONError(w, http.StatusConflict, "conflict")
	case errors.Is(err, core.ErrInsufficientFunds):
		writeJSONError(w, http.StatusPaymentRequired, "insufficient_funds")
	case errors.Is(err, core.ErrGated):
		writeJSONError(w, http.StatusForbidden, "gated")
	case errors.Is(err, gate.ErrTipTooSmall), errors.Is(err, signal.ErrInvalidKind),
		errors.Is(err, core.ErrThumbnailTooLarge), errors.Is(err, core.ErrThumbnailMalformed):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
