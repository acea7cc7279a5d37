package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/quickapply/backend/internal/auth"
	"github.com/quickapply/backend/internal/models"
	"github.com/quickapply/backend/internal/services"
)

// maxBodyBytes caps request bodies; job posts are the largest thing clients send.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return false
	}
	return true
}

func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

// writeServiceError is the one place service errors become HTTP responses.
func writeServiceError(w http.ResponseWriter, op string, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, models.NewCodedErrorResponse(models.CodeUnauthenticated, "Invalid or expired token"))
	case errors.Is(err, services.ErrProfileNotFound):
		writeJSON(w, http.StatusNotFound, models.NewCodedErrorResponse(models.CodeProfileNotFound, "Profile not found. Please complete your profile first."))
	case errors.Is(err, services.ErrNoCredential), errors.Is(err, services.ErrReauthRequired):
		log.Printf("[%s] reauth required: %v", op, err)
		writeJSON(w, http.StatusUnauthorized, models.NewCodedErrorResponse(models.CodeReauthRequired, "Google authorization expired. Please log in with Google again."))
	case errors.Is(err, services.ErrSendFailed):
		log.Printf("[%s] error=%v", op, err)
		writeJSON(w, http.StatusBadGateway, models.NewCodedErrorResponse(models.CodeSendFailed, "Failed to send email: "+err.Error()))
	case errors.Is(err, services.ErrUpstreamUnavailable):
		log.Printf("[%s] error=%v", op, err)
		writeJSON(w, http.StatusServiceUnavailable, models.NewCodedErrorResponse(models.CodeUpstreamUnavailable, fallback))
	case errors.Is(err, services.ErrInvalidProfile), errors.Is(err, services.ErrInvalidRequest), errors.Is(err, services.ErrInvalidRecipient):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
	default:
		log.Printf("[%s] error=%v", op, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse(fallback))
	}
}
