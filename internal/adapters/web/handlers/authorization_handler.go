package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

type AuthorizationHandler struct {
	Geo ports.Geolocation
}

func NewAuthorizationHandler(geo ports.Geolocation) *AuthorizationHandler {
	return &AuthorizationHandler{Geo: geo}
}

func (h *AuthorizationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": h.Geo.AuthorizationStatus()})
}

// HandleRequest starts the permission negotiation without waiting for it.
func (h *AuthorizationHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	h.Geo.RequestAuthorization()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": h.Geo.AuthorizationStatus()})
}
