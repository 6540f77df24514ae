package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/reports"
)

// WeeklyReportJobName identifies the scheduled verified-submissions export
const WeeklyReportJobName = "weekly-verified-report"

// ReportGenerator builds the periodic report
type ReportGenerator interface {
	GenerateScheduled(ctx context.Context, window time.Duration) (*reports.GeneratedReport, error)
}

// NewReportJob returns a job exporting submissions verified within window
func NewReportJob(generator ReportGenerator, spec string, window time.Duration, logger *zap.Logger) Job {
	return Job{
		Name: WeeklyReportJobName,
		Spec: spec,
		Run: func(ctx context.Context) error {
			generated, err := generator.GenerateScheduled(ctx, window)
			if err != nil {
				return err
			}
			logger.Info("Scheduled report stored",
				zap.String("report_id", generated.Report.ID.String()),
				zap.String("url", generated.Report.ReportURL),
				zap.Int("rows", generated.Report.RowCount))
			return nil
		},
	}
}
