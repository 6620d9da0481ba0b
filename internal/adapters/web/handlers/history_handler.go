package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/core/ports"
	"github.com/lcalzada-xor/geoloc/internal/core/services/export"
)

const defaultHistoryLimit = 1000

// TrackExporter renders recorded fixes as a document.
type TrackExporter interface {
	ExportTrack(title string, platform domain.Platform, fixes []domain.FixRecord) ([]byte, error)
}

// HistoryHandler exposes persisted fixes.
type HistoryHandler struct {
	Store    ports.PositionStore
	Exporter TrackExporter
	Platform domain.Platform
}

func NewHistoryHandler(store ports.PositionStore, exporter TrackExporter, platform domain.Platform) *HistoryHandler {
	return &HistoryHandler{Store: store, Exporter: exporter, Platform: platform}
}

// HandleHistory lists persisted fixes, oldest first. format=csv|geojson
// downloads them instead.
func (h *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	format := r.URL.Query().Get("format")
	switch format {
	case "", export.FormatJSON, export.FormatCSV, export.FormatGeoJSON:
	default:
		writeError(w, fmt.Errorf("%w: unknown format %q", domain.ErrInvalidOptions, format))
		return
	}

	fixes, err := h.Store.History(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if format == "" {
		writeJSON(w, http.StatusOK, map[string]any{"fixes": fixes})
		return
	}

	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "track."+format))
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, format, fixes); err != nil {
		slog.Debug("Failed to write export", "format", format, "error", err)
	}
}

// HandleReport streams the history as a PDF track report.
func (h *HistoryHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	fixes, err := h.Store.History(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	pdf, err := h.Exporter.ExportTrack("Track Report", h.Platform, fixes)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("track_%s.pdf", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func parseHistoryFilter(r *http.Request) (domain.HistoryFilter, error) {
	filter := domain.HistoryFilter{Limit: defaultHistoryLimit}
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidOptions)
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("%w: since must be milliseconds since epoch", domain.ErrInvalidOptions)
		}
		filter.Since = time.UnixMilli(ms)
	}
	return filter, nil
}
