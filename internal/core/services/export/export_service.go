package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
)

// Formats accepted by Write.
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatGeoJSON = "geojson"
)

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatGeoJSON:
		return "application/geo+json"
	}
	return "application/json"
}

// Write renders fixes in the named format.
func Write(w io.Writer, format string, fixes []domain.FixRecord) error {
	switch format {
	case FormatJSON, "":
		return ExportJSON(w, fixes)
	case FormatCSV:
		return ExportCSV(w, fixes)
	case FormatGeoJSON:
		return ExportGeoJSON(w, fixes)
	}
	return fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidOptions, format)
}

// ExportJSON writes fixes as a JSON array
func ExportJSON(w io.Writer, fixes []domain.FixRecord) error {
	if fixes == nil {
		fixes = []domain.FixRecord{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(fixes)
}

// ExportCSV writes fixes as CSV with headers. Unknown optional readings are
// left empty.
func ExportCSV(w io.Writer, fixes []domain.FixRecord) error {
	writer := csv.NewWriter(w)

	headers := []string{
		"ID", "Source", "WatchID", "Timestamp",
		"Latitude", "Longitude", "Accuracy",
		"Altitude", "AltitudeAccuracy", "Heading", "Speed",
		"RecordedAt",
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, f := range fixes {
		c := f.Position.Coords
		watchID := ""
		if f.WatchID != 0 {
			watchID = f.WatchID.String()
		}
		row := []string{
			f.ID,
			string(f.Source),
			watchID,
			time.UnixMilli(f.Position.Timestamp).UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%.7f", c.Latitude),
			fmt.Sprintf("%.7f", c.Longitude),
			formatFloat(&c.Accuracy),
			formatFloat(c.Altitude),
			formatFloat(c.AltitudeAccuracy),
			formatFloat(c.Heading),
			formatFloat(c.Speed),
			f.RecordedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Geometry   geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// ExportGeoJSON writes fixes as a FeatureCollection: one Point per fix and,
// with two or more fixes, a LineString tracing the path.
func ExportGeoJSON(w io.Writer, fixes []domain.FixRecord) error {
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, len(fixes)+1)}
	line := make([][]float64, 0, len(fixes))

	for _, f := range fixes {
		c := f.Position.Coords
		// GeoJSON positions are longitude first
		pt := []float64{c.Longitude, c.Latitude}
		if c.Altitude != nil {
			pt = append(pt, *c.Altitude)
		}
		line = append(line, pt[:2])

		props := map[string]any{
			"id":        f.ID,
			"source":    f.Source,
			"timestamp": f.Position.Timestamp,
			"accuracy":  c.Accuracy,
		}
		if f.WatchID != 0 {
			props["watchId"] = f.WatchID.String()
		}
		if c.Speed != nil {
			props["speed"] = *c.Speed
		}
		if c.Heading != nil {
			props["heading"] = *c.Heading
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   geometry{Type: "Point", Coordinates: pt},
			Properties: props,
		})
	}

	if len(line) >= 2 {
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   geometry{Type: "LineString", Coordinates: line},
			Properties: map[string]any{"fixes": len(line)},
		})
	}

	return json.NewEncoder(w).Encode(fc)
}
