package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExcelExporter exports report rows to an xlsx workbook
type ExcelExporter struct {
	options ExcelOptions
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	ColumnWidth  float64
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Report",
		FreezeHeader: true,
		AutoFilter:   true,
		ColumnWidth:  22,
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	return &ExcelExporter{options: options}
}

func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (e *ExcelExporter) Extension() string { return FormatXLSX }

// Export writes a single sheet with the shared column layout. Numeric columns are
// stored as numbers so they can be summed in the spreadsheet.
func (e *ExcelExporter) Export(w io.Writer, rows []ReportRow) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := e.options.SheetName
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2E7D32"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	percentFormat := "0.0%"
	percentStyle, err := file.NewStyle(&excelize.Style{CustomNumFmt: &percentFormat})
	if err != nil {
		return fmt.Errorf("failed to create percent style: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, col := range Columns {
		header[i] = col
	}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := file.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			row.FarmerName,
			row.FarmName,
			row.CropType,
			row.LandSize,
			cellFloat(row.Latitude),
			cellFloat(row.Longitude),
			row.SubmissionDate.Format(dateFormat),
			round2(row.BiomassEstimate),
			round2(row.MethaneEmission),
			round2(row.CarbonCredits),
			row.ConfidenceScore,
			row.Status,
			row.Contact,
		}
		if err := file.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if len(rows) > 0 {
		confidenceCol, _ := excelize.ColumnNumberToName(11)
		if err := file.SetCellStyle(sheet, confidenceCol+"2", fmt.Sprintf("%s%d", confidenceCol, len(rows)+1), percentStyle); err != nil {
			return fmt.Errorf("failed to style confidence column: %w", err)
		}
	}

	if err := file.SetColWidth(sheet, "A", lastCol, e.options.ColumnWidth); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if e.options.FreezeHeader {
		if err := file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("failed to freeze header: %w", err)
		}
	}
	if e.options.AutoFilter {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(rows)+1)
		if err := file.AutoFilter(sheet, ref, nil); err != nil {
			return fmt.Errorf("failed to add filter: %w", err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cellFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
