package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []ReportRow {
	lat, lon := 28.6, 77.2
	return []ReportRow{
		{
			FarmerName:      "Asha Devi",
			Contact:         "asha@example.com",
			FarmName:        "North Paddy",
			CropType:        "rice",
			LandSize:        5,
			Latitude:        &lat,
			Longitude:       &lon,
			SubmissionDate:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Status:          "verified",
			BiomassEstimate: 7.5,
			MethaneEmission: 59.3125,
			CarbonCredits:   69.3125,
			ConfidenceScore: 0.7,
		},
		{
			FarmerName:      "Ravi, Jr.",
			FarmName:        "Grove",
			CropType:        "agroforestry",
			LandSize:        2.25,
			SubmissionDate:  time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
			Status:          "pending",
			BiomassEstimate: 7.2,
			CarbonCredits:   8.325,
			ConfidenceScore: 0.9,
		},
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter(DefaultCSVOptions()).Export(&buf, sampleRows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Columns, records[0])
	assert.Equal(t, []string{
		"Asha Devi", "North Paddy", "rice", "5", "28.6", "77.2", "2024-03-01",
		"7.50", "59.31", "69.31", "70.0%", "verified", "asha@example.com",
	}, records[1])

	// quoting and missing GPS
	assert.Equal(t, "Ravi, Jr.", records[2][0])
	assert.Equal(t, "", records[2][4])
	assert.Equal(t, "", records[2][5])
	assert.Equal(t, "90.0%", records[2][10])
}

func TestCSVExporter_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter(CSVOptions{Delimiter: ';', WriteBOM: true}).Export(&buf, nil))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\xEF\xBB\xBFFarmer Name;Farm Name;")))
}

func TestSummarize(t *testing.T) {
	rows := make([]ReportRow, 10)
	for i := range rows {
		rows[i] = ReportRow{LandSize: 0.1, CarbonCredits: 0.1}
	}

	summary := Summarize(rows)
	assert.Equal(t, 10, summary.TotalFarmers)
	assert.Equal(t, "1.00", summary.TotalArea.StringFixed(2))
	assert.True(t, summary.TotalCredits.Equal(summary.TotalArea))
}

func TestPDFGenerator(t *testing.T) {
	options := DefaultPDFOptions()
	options.Now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }

	var buf bytes.Buffer
	require.NoError(t, NewPDFGenerator(options).Export(&buf, sampleRows()))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}

func TestPDFGenerator_ManyRowsPaginates(t *testing.T) {
	rows := make([]ReportRow, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, sampleRows()[0])
	}

	var buf bytes.Buffer
	require.NoError(t, NewPDFGenerator(DefaultPDFOptions()).Export(&buf, rows))
	assert.Contains(t, buf.String(), "/Count ")
}

func TestExcelExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter(DefaultExcelOptions()).Export(&buf, sampleRows()))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "North Paddy", rows[1][1])
	assert.Equal(t, "69.31", rows[1][9])

	raw, err := file.GetCellValue("Report", "K2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "0.7", raw)
}

func TestForFormat(t *testing.T) {
	for format, ext := range map[string]string{"csv": "csv", "pdf": "pdf", "xlsx": "xlsx"} {
		exporter, err := ForFormat(format)
		require.NoError(t, err)
		assert.Equal(t, ext, exporter.Extension())
		assert.NotEmpty(t, exporter.ContentType())
	}

	_, err := ForFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
