package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
)

// ConfigHandler handles the process-wide platform configuration
type ConfigHandler struct {
	Geo ports.Geolocation
}

func NewConfigHandler(geo ports.Geolocation) *ConfigHandler {
	return &ConfigHandler{Geo: geo}
}

// HandleGetConfig returns the configuration in effect
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.DocumentFromConfig(h.Geo.Configuration()))
}

// HandleSetConfig replaces the configuration for all subsequent requests
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	var doc domain.ConfigDocument
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&doc); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidOptions, err))
		return
	}

	cfg, err := doc.Config()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Geo.SetConfiguration(cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.DocumentFromConfig(h.Geo.Configuration()))
}
