package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/jobshare/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// Generate renders the hand-off sheet of a chain view. Core fonts only
// cover Latin-1, so text is passed through the cp1252 translator.
func (g *Generator) Generate(view model.ChainView) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, tr("Job hand-off sheet"), "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Job %s, zip %s", safeValue(view.JobNumber), safeValue(view.Zip))), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Status: %s, generated %s", safeValue(string(view.Status)), formatDate(view.GeneratedAt))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, tr("Chain of custody"), "", 1, "L", false, 0, "")

	headers := []string{"Level", "Company", "Sees client as", "Invoice", "Auto"}
	colWidths := []float64{18, 60, 55, 30, 17}
	drawTableRow(pdf, g.fontName, tr, headers, colWidths, true)

	for _, link := range view.Links {
		company := link.CompanyName
		if link.Level == view.ViewerLevel {
			company += " (you)"
		}
		row := []string{
			fmt.Sprintf("%d", link.Level),
			safeValue(company),
			safeValue(link.SeesClientAs),
			formatAmount(link.InvoiceAmount, 2),
			formatBool(link.AutoAssigned),
		}
		drawTableRow(pdf, g.fontName, tr, row, colWidths, false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i == 0 || i > 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value float64, precision int) string {
	if value == 0 {
		return "-"
	}
	format := fmt.Sprintf("%%.%df", precision)
	return fmt.Sprintf(format, value)
}

func formatBool(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
