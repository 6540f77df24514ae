package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFGenerator renders a summary report with one block per farm
type PDFGenerator struct {
	options PDFOptions
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize   string
	Title      string
	DateFormat string
	FontFamily string
	Margin     float64
	Now        func() time.Time
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:   "A4",
		Title:      "CarbonMRV+ Report",
		DateFormat: "2006-01-02",
		FontFamily: "Arial",
		Margin:     20,
		Now:        time.Now,
	}
}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	if options.Now == nil {
		options.Now = time.Now
	}
	return &PDFGenerator{options: options}
}

func (g *PDFGenerator) ContentType() string { return "application/pdf" }
func (g *PDFGenerator) Extension() string   { return FormatPDF }

// Export writes the report: title, generation date, summary, then the farms
func (g *PDFGenerator) Export(w io.Writer, rows []ReportRow) error {
	pdf := gofpdf.New("P", "mm", g.options.PageSize, "")
	pdf.SetMargins(g.options.Margin, g.options.Margin, g.options.Margin)
	pdf.SetAutoPageBreak(true, g.options.Margin)
	pdf.SetTitle(g.options.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	font := g.options.FontFamily

	pdf.AddPage()

	pdf.SetFont(font, "B", 20)
	pdf.CellFormat(0, 10, g.options.Title, "", 1, "L", false, 0, "")

	pdf.SetFont(font, "", 12)
	pdf.CellFormat(0, 8, "Generated on: "+g.options.Now().Format(g.options.DateFormat), "", 1, "L", false, 0, "")
	pdf.Ln(12)

	summary := Summarize(rows)
	pdf.SetFont(font, "B", 14)
	pdf.CellFormat(0, 10, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Total Farmers: %d", summary.TotalFarmers), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Total Area: %s hectares", summary.TotalArea.StringFixed(2)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Total Carbon Credits: %s tonnes CO2e", summary.TotalCredits.StringFixed(2)), "", 1, "L", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont(font, "B", 14)
	pdf.CellFormat(0, 10, "Individual Farm Reports", "", 1, "L", false, 0, "")

	for i, row := range rows {
		pdf.SetFont(font, "B", 12)
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("%d. %s", i+1, row.FarmerName)), "", 1, "L", false, 0, "")

		pdf.SetFont(font, "", 10)
		for _, line := range []string{
			"Farm: " + row.FarmName,
			"Crop: " + row.CropType,
			fmt.Sprintf("Area: %g ha", row.LandSize),
			fmt.Sprintf("Carbon Credits: %.2f tonnes CO2e", row.CarbonCredits),
			"Confidence: " + FormatConfidence(row.ConfidenceScore),
		} {
			pdf.SetX(g.options.Margin + 5)
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
		pdf.Ln(5)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return nil
}
