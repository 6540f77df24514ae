package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/auth"
	"carbonmrv/mrv-backend/internal/notifications"
	"carbonmrv/mrv-backend/internal/reports/export"
	"carbonmrv/mrv-backend/pkg/storage"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Rows(ctx context.Context, filter RowFilter) ([]export.ReportRow, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]export.ReportRow), args.Error(1)
}

func (m *MockRepository) CreateReport(ctx context.Context, report *Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockRepository) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Report), args.Error(1)
}

func (m *MockRepository) ListReports(ctx context.Context, limit int) ([]Report, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Report), args.Error(1)
}

type recordingPublisher struct {
	events []notifications.Event
}

func (p *recordingPublisher) Publish(event notifications.Event) {
	p.events = append(p.events, event)
}

var fixedNow = time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

func sampleRows() []export.ReportRow {
	lat, lon := 28.6, 77.2
	return []export.ReportRow{
		{
			EstimateID:      uuid.New(),
			FarmerName:      "Asha",
			Contact:         "asha@example.com",
			FarmName:        "North Paddy",
			CropType:        "rice",
			LandSize:        2.5,
			Latitude:        &lat,
			Longitude:       &lon,
			SubmissionDate:  fixedNow.AddDate(0, 0, -2),
			Status:          "verified",
			BiomassEstimate: 3.75,
			MethaneEmission: 29.66,
			CarbonCredits:   34.66,
			ConfidenceScore: 0.7,
		},
		{
			EstimateID:      uuid.New(),
			FarmerName:      "Ravi",
			FarmName:        "Orchard",
			CropType:        "agroforestry",
			LandSize:        1.5,
			SubmissionDate:  fixedNow.AddDate(0, 0, -1),
			Status:          "pending",
			BiomassEstimate: 4.8,
			CarbonCredits:   5.92,
			ConfidenceScore: 0.9,
		},
	}
}

func newTestService(repo Repository, store storage.S3Client, publisher notifications.Publisher) *Service {
	service := NewService(repo, store, StorageConfig{Bucket: "reports-bucket", PresignExpiry: 15 * time.Minute}, publisher, zap.NewNop())
	service.now = func() time.Time { return fixedNow }
	return service
}

func verifierPrincipal() *auth.Principal {
	return &auth.Principal{AuthID: "auth-verifier", FarmerID: uuid.New(), Role: auth.RoleVerifier}
}

func TestGenerate(t *testing.T) {
	repo := new(MockRepository)
	store := storage.NewMemoryS3Client()
	publisher := &recordingPublisher{}
	service := newTestService(repo, store, publisher)
	ctx := context.Background()
	principal := verifierPrincipal()
	rows := sampleRows()

	filter := RowFilter{Status: "verified"}
	repo.On("Rows", ctx, filter).Return(rows, nil)
	repo.On("CreateReport", ctx, mock.AnythingOfType("*reports.Report")).Return(nil)

	generated, err := service.Generate(ctx, principal, GenerateRequest{Format: export.FormatCSV, RowFilter: filter})
	require.NoError(t, err)

	report := generated.Report
	assert.True(t, strings.HasPrefix(report.ObjectKey, "reports/2024/03/"))
	assert.True(t, strings.HasSuffix(report.ObjectKey, report.ID.String()+".csv"))
	assert.Equal(t, "s3://reports-bucket/"+report.ObjectKey, report.ReportURL)
	assert.Equal(t, "csv", report.ReportType)
	assert.Equal(t, 2, report.RowCount)
	assert.Equal(t, "4.00", report.TotalArea.StringFixed(2))
	assert.Equal(t, "40.58", report.TotalCredits.StringFixed(2))
	require.NotNil(t, report.EstimateID)
	assert.Equal(t, rows[0].EstimateID, *report.EstimateID)
	require.NotNil(t, report.GeneratedBy)
	assert.Equal(t, principal.FarmerID, *report.GeneratedBy)
	assert.False(t, report.Scheduled)

	assert.Contains(t, generated.DownloadURL, report.ObjectKey)
	assert.Equal(t, fixedNow.Add(15*time.Minute), generated.ExpiresAt)

	body, err := store.Download(ctx, "reports-bucket", report.ObjectKey)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Farmer Name,Farm Name")
	assert.Contains(t, string(data), "North Paddy")

	require.Len(t, publisher.events, 1)
	assert.Equal(t, notifications.EventReportGenerated, publisher.events[0].Type)
	assert.Equal(t, generated.DownloadURL, publisher.events[0].ReportURL)

	repo.AssertExpectations(t)
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo, storage.NewMemoryS3Client(), nil)

	_, err := service.Generate(context.Background(), verifierPrincipal(), GenerateRequest{Format: "docx"})
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
	repo.AssertNotCalled(t, "Rows", mock.Anything, mock.Anything)
}

func TestGenerate_RecordFailureRemovesObject(t *testing.T) {
	repo := new(MockRepository)
	store := storage.NewMemoryS3Client()
	service := newTestService(repo, store, nil)
	ctx := context.Background()

	var key string
	repo.On("Rows", ctx, RowFilter{}).Return(sampleRows(), nil)
	repo.On("CreateReport", ctx, mock.AnythingOfType("*reports.Report")).
		Run(func(args mock.Arguments) { key = args.Get(1).(*Report).ObjectKey }).
		Return(errors.New("db down"))

	_, err := service.Generate(ctx, verifierPrincipal(), GenerateRequest{Format: export.FormatXLSX})
	require.Error(t, err)

	_, err = store.Download(ctx, "reports-bucket", key)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestGenerate_EmptyReport(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo, storage.NewMemoryS3Client(), nil)
	ctx := context.Background()

	repo.On("Rows", ctx, RowFilter{}).Return([]export.ReportRow{}, nil)
	repo.On("CreateReport", ctx, mock.AnythingOfType("*reports.Report")).Return(nil)

	generated, err := service.Generate(ctx, verifierPrincipal(), GenerateRequest{Format: export.FormatPDF})
	require.NoError(t, err)
	assert.Nil(t, generated.Report.EstimateID)
	assert.Equal(t, 0, generated.Report.RowCount)
	assert.True(t, generated.Report.TotalCredits.IsZero())
}

func TestGenerateScheduled(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo, storage.NewMemoryS3Client(), nil)
	ctx := context.Background()

	// the window applies to review time so late verifications are not skipped
	repo.On("Rows", ctx, mock.MatchedBy(func(filter RowFilter) bool {
		return filter.Status == "verified" &&
			filter.From == nil && filter.To == nil &&
			filter.ReviewedFrom != nil && filter.ReviewedFrom.Equal(fixedNow.Add(-7*24*time.Hour)) &&
			filter.ReviewedTo != nil && filter.ReviewedTo.Equal(fixedNow)
	})).Return(sampleRows()[:1], nil)
	repo.On("CreateReport", ctx, mock.AnythingOfType("*reports.Report")).Return(nil)

	generated, err := service.GenerateScheduled(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, generated.Report.Scheduled)
	assert.Nil(t, generated.Report.GeneratedBy)
	assert.Equal(t, "csv", generated.Report.ReportType)
	repo.AssertExpectations(t)
}

func TestGenerate_SelectedSubmissions(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo, storage.NewMemoryS3Client(), nil)
	ctx := context.Background()
	selected := []uuid.UUID{uuid.New(), uuid.New()}
	rows := sampleRows()

	repo.On("Rows", ctx, RowFilter{SubmissionIDs: selected}).Return(rows, nil)
	repo.On("CreateReport", ctx, mock.AnythingOfType("*reports.Report")).Return(nil)

	generated, err := service.Generate(ctx, verifierPrincipal(), GenerateRequest{
		Format:    export.FormatPDF,
		RowFilter: RowFilter{SubmissionIDs: selected},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, generated.Report.RowCount)
	repo.AssertExpectations(t)
}

func TestHandler_GenerateSelectedSubmissions(t *testing.T) {
	repo := new(MockRepository)
	router := setupRouter(newTestService(repo, storage.NewMemoryS3Client(), nil), verifierPrincipal())
	selected := []uuid.UUID{uuid.New(), uuid.New()}

	repo.On("Rows", mock.Anything, RowFilter{SubmissionIDs: selected}).Return(sampleRows(), nil)
	repo.On("CreateReport", mock.Anything, mock.AnythingOfType("*reports.Report")).Return(nil)

	body := `{"format":"pdf","submission_ids":["` + selected[0].String() + `","` + selected[1].String() + `"]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	target := "/api/v1/reports/export?format=csv&submission_id=" + selected[0].String() + "&submission_id=" + selected[1].String()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	repo.AssertNumberOfCalls(t, "Rows", 2)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/export?format=csv&submission_id=bad", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadURL(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo, storage.NewMemoryS3Client(), nil)
	ctx := context.Background()

	report := &Report{ID: uuid.New(), ObjectKey: "reports/2024/03/x.csv"}
	repo.On("GetReport", ctx, report.ID).Return(report, nil)

	generated, err := service.DownloadURL(ctx, report.ID)
	require.NoError(t, err)
	assert.Contains(t, generated.DownloadURL, "reports/2024/03/x.csv")

	missing := uuid.New()
	repo.On("GetReport", ctx, missing).Return(nil, ErrNotFound)
	_, err = service.DownloadURL(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func setupRouter(service *Service, principal *auth.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1", func(c *gin.Context) {
		auth.SetPrincipal(c, principal)
		c.Next()
	})
	NewHandler(service, zap.NewNop()).RegisterRoutes(api)
	return router
}

func TestHandler_Export(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo, storage.NewMemoryS3Client(), nil)
	router := setupRouter(service, verifierPrincipal())

	repo.On("Rows", mock.Anything, mock.MatchedBy(func(filter RowFilter) bool {
		return filter.Status == "verified" && filter.From != nil && filter.From.Format("2006-01-02") == "2024-03-01"
	})).Return(sampleRows(), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/export?format=csv&status=verified&from=2024-03-01", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"carbonmrv-report-")
	assert.Contains(t, w.Body.String(), "Orchard")
}

func TestHandler_ExportRejectsBadInput(t *testing.T) {
	router := setupRouter(newTestService(new(MockRepository), storage.NewMemoryS3Client(), nil), verifierPrincipal())

	for _, target := range []string{
		"/api/v1/reports/export?format=docx",
		"/api/v1/reports/export?format=csv&from=03-01-2024",
		"/api/v1/reports/export?format=csv&farmer_id=nope",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestHandler_FarmerForbidden(t *testing.T) {
	farmer := &auth.Principal{AuthID: "auth-farmer", FarmerID: uuid.New(), Role: auth.RoleFarmer}
	router := setupRouter(newTestService(new(MockRepository), storage.NewMemoryS3Client(), nil), farmer)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_Generate(t *testing.T) {
	repo := new(MockRepository)
	service := newTestService(repo, storage.NewMemoryS3Client(), nil)
	router := setupRouter(service, verifierPrincipal())

	repo.On("Rows", mock.Anything, RowFilter{}).Return(sampleRows(), nil)
	repo.On("CreateReport", mock.Anything, mock.AnythingOfType("*reports.Report")).Return(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(`{"format":"xlsx"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var response GeneratedReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "xlsx", response.Report.ReportType)
	assert.NotEmpty(t, response.DownloadURL)
}

func TestHandler_Download(t *testing.T) {
	repo := new(MockRepository)
	router := setupRouter(newTestService(repo, storage.NewMemoryS3Client(), nil), verifierPrincipal())

	missing := uuid.New()
	repo.On("GetReport", mock.Anything, missing).Return(nil, ErrNotFound)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/"+missing.String()+"/download", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reports/bad-id/download", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
