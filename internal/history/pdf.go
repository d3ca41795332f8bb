package history

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/quickpen-app/quickpen/pkg/models"
)

// ExportPDF writes a paginated report: one summary page, then one page per
// sprint in ascending completion order showing WPM, words, duration, tags,
// and the full content.
func ExportPDF(w io.Writer, records []*models.Sprint, now time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	if len(records) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, 8, "No sprints selected for export.", "", "L", false)
		return pdf.Output(w)
	}

	m := buildMeta(records)
	writeSummaryPage(pdf, m, now)
	for _, s := range m.sprints {
		writeSprintPage(pdf, s)
	}

	return pdf.Output(w)
}

func writeSummaryPage(pdf *fpdf.Fpdf, m exportMeta, now time.Time) {
	pdf.AddPage()

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.CellFormat(0, 12, "QuickPen Sprint Export Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 10, "Generated on "+now.Format("2006-01-02"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetTextColor(0, 0, 0)
	sectionTitle(pdf, "Overall Summary")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Number of Sprints: %d", len(m.sprints)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date Range: "+m.dateRange(), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "All Unique Tags: "+m.tagList(), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	avgWPM := 0
	if m.totalSecs > 0 {
		avgWPM = int(float64(m.totalWords)/float64(m.totalSecs)*60 + 0.5)
	}
	statRow(pdf, [3][2]string{
		{fmt.Sprintf("%d", m.totalWords), "Total Words"},
		{fmt.Sprintf("%d", avgWPM), "Average WPM"},
		{models.FormatDuration(m.totalSecs), "Total Time"},
	})
	pdf.Ln(8)

	sectionTitle(pdf, "Included Sprints")
	pdf.SetFont("Helvetica", "", 11)
	for _, s := range m.sprints {
		line := fmt.Sprintf("- Sprint from %s (%d words)", s.CompletedAt.Format("2006-01-02 15:04"), s.WordCount)
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
}

func writeSprintPage(pdf *fpdf.Fpdf, s *models.Sprint) {
	pdf.AddPage()

	pdf.SetTextColor(0, 0, 0)
	sectionTitle(pdf, "Sprint from "+s.CompletedAt.Format("2006-01-02 15:04"))

	statRow(pdf, [3][2]string{
		{fmt.Sprintf("%d", s.RoundedWPM()), "WPM"},
		{fmt.Sprintf("%d", s.WordCount), "Words"},
		{models.FormatDuration(s.EffectiveDuration()), "Duration"},
	})
	pdf.Ln(6)

	tags := "None"
	if len(s.Tags) > 0 {
		tags = strings.Join(s.Tags, ", ")
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Tags: "+tags, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Courier", "", 10)
	pdf.MultiCell(0, 5, s.Content, "1", "L", false)
}

func sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, title, "B", 1, "L", false, 0, "")
	pdf.Ln(3)
}

func statRow(pdf *fpdf.Fpdf, stats [3][2]string) {
	width := 63.0
	pdf.SetFont("Helvetica", "B", 18)
	for _, st := range stats {
		pdf.CellFormat(width, 9, st[0], "", 0, "C", false, 0, "")
	}
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(128, 128, 128)
	for _, st := range stats {
		pdf.CellFormat(width, 6, st[1], "", 0, "C", false, 0, "")
	}
	pdf.Ln(8)
	pdf.SetTextColor(0, 0, 0)
}
