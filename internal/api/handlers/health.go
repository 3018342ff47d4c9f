package handlers

import (
	"fleet-dispatch-service/internal/services"
	"net/http"
)

type HealthHandler struct {
	Engine *services.Engine
}

// Health reports liveness and the size of the shared distance cache.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	res := map[string]any{"status": "ok"}
	if h.Engine != nil {
		res["distance_samples"] = h.Engine.Dispatcher().Cache().Len()
	}
	writeJSON(w, r, http.StatusOK, res)
}
