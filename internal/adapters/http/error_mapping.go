package httpadapter

import (
	"errors"
	"net/http"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrThrottled):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders the error with its mapped status. Conflicts carry the
// document's current state so the client can re-fetch and retry; throttle
// responses advise when to come back.
func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		payload := map[string]any{
			"error":       "state conflict",
			"document_id": conflict.DocumentID,
			"status":      conflict.Status,
		}
		if conflict.AssignedReviewerID != nil {
			payload["assigned_reviewer_id"] = *conflict.AssignedReviewerID
		}
		writeJSON(w, status, payload)
		return
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
