package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

// WatchHandler manages watch registrations made through any transport.
type WatchHandler struct {
	Geo ports.Geolocation
}

func NewWatchHandler(geo ports.Geolocation) *WatchHandler {
	return &WatchHandler{Geo: geo}
}

func (h *WatchHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ids := h.Geo.ActiveWatches()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"watches": out})
}

func (h *WatchHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseWatchID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Geo.ClearWatch(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStopAll stops every watch and pending request.
func (h *WatchHandler) HandleStopAll(w http.ResponseWriter, r *http.Request) {
	h.Geo.StopObserving()
	w.WriteHeader(http.StatusNoContent)
}
