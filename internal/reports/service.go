package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/auth"
	"carbonmrv/mrv-backend/internal/notifications"
	"carbonmrv/mrv-backend/internal/reports/export"
	"carbonmrv/mrv-backend/pkg/storage"
)

const listLimit = 50

// StorageConfig locates generated reports in object storage
type StorageConfig struct {
	Bucket        string
	PresignExpiry time.Duration
}

// Service builds verification reports
type Service struct {
	repo      Repository
	storage   storage.S3Client
	config    StorageConfig
	publisher notifications.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new reports service. A nil publisher disables events.
func NewService(repo Repository, store storage.S3Client, config StorageConfig, publisher notifications.Publisher, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		storage:   store,
		config:    config,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Export renders a report straight to w without storing it
func (s *Service) Export(ctx context.Context, format string, filter RowFilter, w io.Writer) error {
	exporter, err := export.ForFormat(format)
	if err != nil {
		return err
	}

	rows, err := s.repo.Rows(ctx, filter)
	if err != nil {
		return err
	}
	return exporter.Export(w, rows)
}

// Generate builds a report, uploads it and records it. The returned link expires
// after the configured presign duration.
func (s *Service) Generate(ctx context.Context, principal *auth.Principal, req GenerateRequest) (*GeneratedReport, error) {
	var generatedBy *uuid.UUID
	if principal != nil && principal.HasProfile() {
		id := principal.FarmerID
		generatedBy = &id
	}
	return s.generate(ctx, req, generatedBy, false)
}

func (s *Service) generate(ctx context.Context, req GenerateRequest, generatedBy *uuid.UUID, scheduled bool) (*GeneratedReport, error) {
	exporter, err := export.ForFormat(req.Format)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Rows(ctx, req.RowFilter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := exporter.Export(&buf, rows); err != nil {
		return nil, fmt.Errorf("failed to render %s report: %w", req.Format, err)
	}

	now := s.now().UTC()
	id := uuid.New()
	key := fmt.Sprintf("reports/%04d/%02d/%s.%s", now.Year(), int(now.Month()), id, exporter.Extension())

	if err := s.storage.Upload(ctx, s.config.Bucket, key, &buf, exporter.ContentType()); err != nil {
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	summary := export.Summarize(rows)
	report := &Report{
		ID:           id,
		ReportType:   exporter.Extension(),
		ReportURL:    fmt.Sprintf("s3://%s/%s", s.config.Bucket, key),
		ObjectKey:    key,
		RowCount:     len(rows),
		TotalArea:    summary.TotalArea,
		TotalCredits: summary.TotalCredits,
		GeneratedBy:  generatedBy,
		Scheduled:    scheduled,
		CreatedAt:    now,
	}
	if len(rows) > 0 {
		estimateID := rows[0].EstimateID
		report.EstimateID = &estimateID
	}

	if err := s.repo.CreateReport(ctx, report); err != nil {
		if delErr := s.storage.Delete(ctx, s.config.Bucket, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned report object", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	url, err := s.storage.GetPresignedURL(ctx, s.config.Bucket, key, s.config.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign report: %w", err)
	}

	s.logger.Info("Report generated",
		zap.String("report_id", report.ID.String()),
		zap.String("format", report.ReportType),
		zap.Int("rows", report.RowCount),
		zap.String("total_credits", report.TotalCredits.StringFixed(2)))

	if s.publisher != nil {
		s.publisher.Publish(notifications.Event{
			Type:      notifications.EventReportGenerated,
			ReportURL: url,
			Credits:   report.TotalCredits.InexactFloat64(),
			Timestamp: now,
		})
	}

	return &GeneratedReport{Report: report, DownloadURL: url, ExpiresAt: now.Add(s.config.PresignExpiry)}, nil
}

// GenerateScheduled builds the periodic CSV of submissions verified in the window
// ending now, whenever they were submitted
func (s *Service) GenerateScheduled(ctx context.Context, window time.Duration) (*GeneratedReport, error) {
	to := s.now().UTC()
	from := to.Add(-window)
	return s.generate(ctx, GenerateRequest{
		Format: export.FormatCSV,
		RowFilter: RowFilter{
			Status:       "verified",
			ReviewedFrom: &from,
			ReviewedTo:   &to,
		},
	}, nil, true)
}

// DownloadURL issues a fresh link for a stored report
func (s *Service) DownloadURL(ctx context.Context, id uuid.UUID) (*GeneratedReport, error) {
	report, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.storage.GetPresignedURL(ctx, s.config.Bucket, report.ObjectKey, s.config.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign report: %w", err)
	}
	return &GeneratedReport{Report: report, DownloadURL: url, ExpiresAt: s.now().Add(s.config.PresignExpiry)}, nil
}

// ListReports returns the most recent reports
func (s *Service) ListReports(ctx context.Context) ([]Report, error) {
	return s.repo.ListReports(ctx, listLimit)
}
