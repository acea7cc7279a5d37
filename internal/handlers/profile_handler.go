package handlers

import (
	"net/http"
	"time"

	"github.com/quickapply/backend/internal/middleware"
	"github.com/quickapply/backend/internal/models"
	"github.com/quickapply/backend/internal/services"
)

type ProfileHandler struct {
	profiles *services.ProfileService
}

func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// SaveProfile works with or without a credential; an OAuth credential contributes the
// Google identity and tokens.
func (h *ProfileHandler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	var req models.SaveProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	resp, err := h.profiles.Save(ctx, &req, middleware.GetClaims(r.Context()))
	if err != nil {
		writeServiceError(w, "SaveProfile", err, "Failed to save profile")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(resp))
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	prof, err := h.profiles.Update(ctx, middleware.GetClaims(r.Context()), &req)
	if err != nil {
		writeServiceError(w, "UpdateProfile", err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(prof))
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	prof, err := h.profiles.Get(ctx, middleware.GetClaims(r.Context()))
	if err != nil {
		writeServiceError(w, "GetProfile", err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(prof))
}
