// Package export renders verification reports as CSV, PDF and Excel files.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supported formats
const (
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// ReportRow is one submission with its farmer, farm and estimate
type ReportRow struct {
	EstimateID      uuid.UUID
	FarmerName      string
	Contact         string
	FarmName        string
	CropType        string
	LandSize        float64
	Latitude        *float64
	Longitude       *float64
	SubmissionDate  time.Time
	Status          string
	BiomassEstimate float64
	MethaneEmission float64
	CarbonCredits   float64
	ConfidenceScore float64
}

// Columns is the column layout shared by the tabular formats
var Columns = []string{
	"Farmer Name",
	"Farm Name",
	"Crop Type",
	"Land Size (ha)",
	"GPS Latitude",
	"GPS Longitude",
	"Submission Date",
	"Biomass Estimate (tonnes CO2)",
	"Methane Emission Reduction (tonnes CO2e)",
	"Total Carbon Credits (tonnes CO2e)",
	"Confidence Score",
	"Status",
	"Contact",
}

const dateFormat = "2006-01-02"

// Record formats the row as text cells in Columns order
func (r ReportRow) Record() []string {
	return []string{
		r.FarmerName,
		r.FarmName,
		r.CropType,
		strconv.FormatFloat(r.LandSize, 'f', -1, 64),
		optionalFloat(r.Latitude),
		optionalFloat(r.Longitude),
		r.SubmissionDate.Format(dateFormat),
		fmt.Sprintf("%.2f", r.BiomassEstimate),
		fmt.Sprintf("%.2f", r.MethaneEmission),
		fmt.Sprintf("%.2f", r.CarbonCredits),
		FormatConfidence(r.ConfidenceScore),
		r.Status,
		r.Contact,
	}
}

// FormatConfidence renders a 0..1 score as a percentage with one decimal
func FormatConfidence(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Summary holds report totals. Sums are decimal so repeated additions of
// fractional tonnes do not drift.
type Summary struct {
	TotalFarmers int
	TotalArea    decimal.Decimal
	TotalCredits decimal.Decimal
}

// Summarize totals a set of rows. Every row counts as one farmer entry.
func Summarize(rows []ReportRow) Summary {
	summary := Summary{TotalFarmers: len(rows), TotalArea: decimal.Zero, TotalCredits: decimal.Zero}
	for _, row := range rows {
		summary.TotalArea = summary.TotalArea.Add(decimal.NewFromFloat(row.LandSize))
		summary.TotalCredits = summary.TotalCredits.Add(decimal.NewFromFloat(row.CarbonCredits))
	}
	return summary
}

// Exporter writes rows in one file format
type Exporter interface {
	Export(w io.Writer, rows []ReportRow) error
	ContentType() string
	Extension() string
}

// ForFormat returns the exporter for a format name
func ForFormat(format string) (Exporter, error) {
	switch format {
	case FormatCSV:
		return NewCSVExporter(DefaultCSVOptions()), nil
	case FormatPDF:
		return NewPDFGenerator(DefaultPDFOptions()), nil
	case FormatXLSX:
		return NewExcelExporter(DefaultExcelOptions()), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}
