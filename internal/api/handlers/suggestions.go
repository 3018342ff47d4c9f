package handlers

import (
	"fleet-dispatch-service/internal/api/dto"
	"fleet-dispatch-service/internal/services"
	"net/http"
	"time"
)

type SuggestionHandler struct {
	Engine   *services.Engine
	Location *time.Location
	Now      func() time.Time
}

// Suggest validates a fleet snapshot, runs the dispatch pipeline and returns
// one result per order.
func (h *SuggestionHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSnapshot(w, r)
	if !ok {
		return
	}

	snap, err := req.Snapshot(h.Location, clock(h.Now))
	if err != nil {
		writeRunError(w, r, "suggest", err)
		return
	}

	d := h.Engine.Dispatcher()
	opts := req.RunOptions(d.Params())

	s, err := h.Engine.Suggest(r.Context(), snap, opts)
	if err != nil {
		writeRunError(w, r, "suggest", err)
		return
	}

	view := req.View(s, d.Cache(), opts, h.Location)
	writeJSON(w, r, http.StatusOK, dto.NewSuggestionResponse(view))
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
