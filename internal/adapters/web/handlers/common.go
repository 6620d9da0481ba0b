package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps façade errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var pe *domain.PositionError
	switch {
	case errors.As(err, &pe):
		writeJSON(w, positionErrorStatus(pe.Code), pe)
	case errors.Is(err, domain.ErrInvalidOptions):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPlatformMismatch):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnknownWatch):
		writeMessage(w, http.StatusNotFound, err.Error())
	default:
		writeMessage(w, http.StatusInternalServerError, err.Error())
	}
}

func positionErrorStatus(code domain.ErrorCode) int {
	switch code {
	case domain.PermissionDenied:
		return http.StatusForbidden
	case domain.Timeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusServiceUnavailable
}

// ParseOptions reads request and watch options from query parameters.
func ParseOptions(q url.Values) (domain.OptionsDocument, error) {
	var doc domain.OptionsDocument

	for _, p := range []struct {
		name string
		dst  **int64
	}{
		{"timeout", &doc.Timeout},
		{"maximumAge", &doc.MaximumAge},
	} {
		if v := q.Get(p.name); v != "" {
			ms, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return doc, fmt.Errorf("%w: %s: %v", domain.ErrInvalidOptions, p.name, err)
			}
			*p.dst = &ms
		}
	}

	if v := q.Get("distanceFilter"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return doc, fmt.Errorf("%w: distanceFilter: %v", domain.ErrInvalidOptions, err)
		}
		doc.DistanceFilter = &d
	}

	var err error
	if doc.EnableHighAccuracy, err = parseBool(q, "enableHighAccuracy"); err != nil {
		return doc, err
	}
	if doc.UseSignificantChanges, err = parseBool(q, "useSignificantChanges"); err != nil {
		return doc, err
	}
	return doc, nil
}

func parseBool(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", domain.ErrInvalidOptions, name, err)
	}
	return b, nil
}
