package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

// PositionHandler serves single-shot position requests.
type PositionHandler struct {
	Geo ports.Geolocation
}

func NewPositionHandler(geo ports.Geolocation) *PositionHandler {
	return &PositionHandler{Geo: geo}
}

// HandleCurrent blocks until the façade yields a position or an error.
// Closing the connection abandons the request.
func (h *PositionHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	doc, err := ParseOptions(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	pos, err := h.Geo.CurrentPosition(r.Context(), doc.Request())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
