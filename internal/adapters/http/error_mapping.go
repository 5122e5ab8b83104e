package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("http_handler_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}
