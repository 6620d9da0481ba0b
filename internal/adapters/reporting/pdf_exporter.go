package reporting

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	"github.com/lcalzada-xor/geoloc/internal/geo"
)

// maxRows caps the fix table so long tracks still produce a readable report.
const maxRows = 500

// TrackSummary aggregates a recorded track.
type TrackSummary struct {
	Fixes        int
	First, Last  time.Time
	Distance     float64 // meters along the track
	MeanAccuracy float64
	BestAccuracy float64
	MinLat       float64
	MaxLat       float64
	MinLng       float64
	MaxLng       float64
}

// Summarize computes a TrackSummary over fixes in chronological order.
func Summarize(fixes []domain.FixRecord) TrackSummary {
	var s TrackSummary
	if len(fixes) == 0 {
		return s
	}
	s.Fixes = len(fixes)
	s.First = fixes[0].Position.Time()
	s.Last = fixes[len(fixes)-1].Position.Time()
	s.BestAccuracy = math.Inf(1)
	s.MinLat, s.MinLng = math.Inf(1), math.Inf(1)
	s.MaxLat, s.MaxLng = math.Inf(-1), math.Inf(-1)

	var sumAcc float64
	for i, f := range fixes {
		c := f.Position.Coords
		sumAcc += c.Accuracy
		s.BestAccuracy = math.Min(s.BestAccuracy, c.Accuracy)
		s.MinLat = math.Min(s.MinLat, c.Latitude)
		s.MaxLat = math.Max(s.MaxLat, c.Latitude)
		s.MinLng = math.Min(s.MinLng, c.Longitude)
		s.MaxLng = math.Max(s.MaxLng, c.Longitude)
		if i > 0 {
			s.Distance += geo.Distance(geo.FromCoords(fixes[i-1].Position.Coords), geo.FromCoords(c))
		}
	}
	s.MeanAccuracy = sumAcc / float64(len(fixes))
	return s
}

// PDFExporter exports recorded tracks to PDF format
type PDFExporter struct {
	now func() time.Time
}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{now: time.Now}
}

// ExportTrack renders the fix history as a PDF report.
func (e *PDFExporter) ExportTrack(title string, platform domain.Platform, fixes []domain.FixRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	e.addFooter(pdf)
	pdf.AddPage()

	e.addHeader(pdf, title, platform)
	e.addSummary(pdf, Summarize(fixes))
	e.addFixTable(pdf, fixes)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, title string, platform domain.Platform) {
	pdf.SetFont("Arial", "B", 22)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 14, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", e.now().Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Platform: %s", platform), "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (e *PDFExporter) addSummary(pdf *gofpdf.Fpdf, s TrackSummary) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Track Overview", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(60, 60, 60)

	if s.Fixes == 0 {
		pdf.CellFormat(0, 7, "No fixes recorded.", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	stats := []struct {
		label string
		value string
	}{
		{"Fixes", fmt.Sprintf("%d", s.Fixes)},
		{"Period", fmt.Sprintf("%s to %s", s.First.Format("2006-01-02 15:04:05"), s.Last.Format("2006-01-02 15:04:05"))},
		{"Distance", formatDistance(s.Distance)},
		{"Mean accuracy", fmt.Sprintf("%.1f m", s.MeanAccuracy)},
		{"Best accuracy", fmt.Sprintf("%.1f m", s.BestAccuracy)},
		{"Bounds", fmt.Sprintf("%.5f, %.5f / %.5f, %.5f", s.MinLat, s.MinLng, s.MaxLat, s.MaxLng)},
	}
	for _, st := range stats {
		pdf.CellFormat(45, 7, st.label+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, st.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

func (e *PDFExporter) addFixTable(pdf *gofpdf.Fpdf, fixes []domain.FixRecord) {
	if len(fixes) == 0 {
		return
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Fixes", "", 1, "L", false, 0, "")

	widths := []float64{45, 35, 35, 25, 25, 25}
	headers := []string{"Time", "Latitude", "Longitude", "Accuracy", "Speed", "Source"}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 236, 245)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(40, 40, 40)
	rows := fixes
	if len(rows) > maxRows {
		rows = rows[len(rows)-maxRows:]
	}
	for _, f := range rows {
		c := f.Position.Coords
		speed := "-"
		if c.Speed != nil {
			speed = fmt.Sprintf("%.1f m/s", *c.Speed)
		}
		cells := []string{
			f.Position.Time().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.6f", c.Latitude),
			fmt.Sprintf("%.6f", c.Longitude),
			fmt.Sprintf("%.1f m", c.Accuracy),
			speed,
			string(f.Source),
		}
		for i, v := range cells {
			pdf.CellFormat(widths[i], 6, v, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(fixes) > maxRows {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 7, fmt.Sprintf("Showing the latest %d of %d fixes.", maxRows, len(fixes)), "", 1, "L", false, 0, "")
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf) {
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}

func formatDistance(m float64) string {
	if m >= 1000 {
		return fmt.Sprintf("%.2f km", m/1000)
	}
	return fmt.Sprintf("%.0f m", m)
}
