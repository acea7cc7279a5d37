package handlers

import (
	"net/http"
	"time"

	"github.com/quickapply/backend/internal/middleware"
	"github.com/quickapply/backend/internal/models"
	"github.com/quickapply/backend/internal/services"
)

// applyTimeout covers one LLM call or one token refresh plus two send attempts.
const applyTimeout = 60 * time.Second

type ApplyHandler struct {
	apply *services.ApplyService
}

func NewApplyHandler(apply *services.ApplyService) *ApplyHandler {
	return &ApplyHandler{apply: apply}
}

func (h *ApplyHandler) decode(w http.ResponseWriter, r *http.Request) (*models.ApplyRequest, bool) {
	var req models.ApplyRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return nil, false
	}
	return &req, true
}

func (h *ApplyHandler) Draft(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r.Context(), applyTimeout)
	defer cancel()

	draft, err := h.apply.Draft(ctx, middleware.GetClaims(r.Context()), req)
	if err != nil {
		writeServiceError(w, "GenerateDraft", err, "Email generation failed")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(draft))
}

func (h *ApplyHandler) Send(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r.Context(), applyTimeout)
	defer cancel()

	sent, err := h.apply.Send(ctx, middleware.GetClaims(r.Context()), req)
	if err != nil {
		writeServiceError(w, "SendApplication", err, "Failed to send email")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(sent))
}

// Apply sends when emailBody is present and drafts otherwise.
func (h *ApplyHandler) Apply(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	ctx, cancel := contextWithTimeout(r.Context(), applyTimeout)
	defer cancel()

	out, err := h.apply.Apply(ctx, middleware.GetClaims(r.Context()), req)
	if err != nil {
		writeServiceError(w, "Apply", err, "Failed to process application")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(out))
}

func (h *ApplyHandler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req models.RewriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}
	ctx, cancel := contextWithTimeout(r.Context(), applyTimeout)
	defer cancel()

	out, err := h.apply.Rewrite(ctx, &req)
	if err != nil {
		writeServiceError(w, "RewriteDraft", err, "Failed to rewrite email")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(out))
}
