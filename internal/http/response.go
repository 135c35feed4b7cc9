package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/middleware/trace"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var kindStatus = map[core.Kind]int{
	core.KindValidation: http.StatusBadRequest,
	core.KindConflict:   http.StatusConflict,
	core.KindForbidden:  http.StatusForbidden,
	core.KindNotFound:   http.StatusNotFound,
	core.KindInvariant:  http.StatusUnprocessableEntity,
}

// writeError renders a kinded error. Anything unkinded is logged and
// answered with a generic 500 so internals never leak.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	requestID := trace.RequestID(r.Context())
	logger := log.FromContext(r.Context())
	kind := core.KindOf(err)

	status, ok := kindStatus[kind]
	if !ok {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:     string(core.KindInternal),
			Message:   "internal error",
			RequestID: requestID,
		})
		return
	}

	msg := err.Error()
	var kinded *core.Error
	if errors.As(err, &kinded) {
		msg = kinded.Message
	}
	logger.DebugContext(r.Context(), "Request rejected",
		log.FieldOperation, op,
		log.FieldErrorKind, kind,
		log.FieldError, msg)
	writeJSON(w, status, errorResponse{Error: string(kind), Message: msg, RequestID: requestID})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "missing " + headerUserID + " header"})
}
