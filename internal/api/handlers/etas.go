package handlers

import (
	"fleet-dispatch-service/internal/api/dto"
	"fleet-dispatch-service/internal/services"
	"net/http"
	"time"
)

type ETAHandler struct {
	Engine   *services.Engine
	Location *time.Location
	Now      func() time.Time
}

// ETAs returns driving seconds from every usable courier to every active order.
func (h *ETAHandler) ETAs(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSnapshot(w, r)
	if !ok {
		return
	}

	snap, err := req.Snapshot(h.Location, clock(h.Now))
	if err != nil {
		writeRunError(w, r, "etas", err)
		return
	}

	opts := req.RunOptions(h.Engine.Dispatcher().Params())
	etas, calls, err := h.Engine.ComputeETAs(r.Context(), snap, opts)
	if err != nil {
		writeRunError(w, r, "etas", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.NewETAResponse(etas, calls))
}
