package handlers

import (
	"net/http"
	"time"

	"github.com/quickapply/backend/internal/models"
	"github.com/quickapply/backend/internal/services"
)

type StatusHandler struct {
	store   services.ProfileStore
	backend string
}

// NewStatusHandler reports on store; backend names it ("mongo" or "file").
func NewStatusHandler(store services.ProfileStore, backend string) *StatusHandler {
	return &StatusHandler{store: store, backend: backend}
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	database := "connected"
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		database = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, models.NewSuccessResponse(map[string]string{
		"status":   "running",
		"storage":  h.backend,
		"database": database,
	}))
}
