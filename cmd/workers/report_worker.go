package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/config"
	"carbonmrv/mrv-backend/internal/logging"
	"carbonmrv/mrv-backend/internal/reports"
	"carbonmrv/mrv-backend/internal/reports/scheduler"
	"carbonmrv/mrv-backend/pkg/database"
	"carbonmrv/mrv-backend/pkg/storage"
)

// ReportWorker runs the scheduled report export outside the API process
type ReportWorker struct {
	schedules *scheduler.ScheduleManager
	logger    *zap.Logger
	config    ReportWorkerConfig
}

// ReportWorkerConfig configuration for the report worker
type ReportWorkerConfig struct {
	Spec          string
	Timezone      string
	Window        time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	Timeout       time.Duration
}

// DefaultReportWorkerConfig returns default configuration
func DefaultReportWorkerConfig() ReportWorkerConfig {
	return ReportWorkerConfig{
		Spec:          "0 6 * * 1",
		Timezone:      "UTC",
		Window:        7 * 24 * time.Hour,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
		Timeout:       30 * time.Minute,
	}
}

// NewReportWorker creates a new report worker
func NewReportWorker(generator scheduler.ReportGenerator, logger *zap.Logger, config ReportWorkerConfig) (*ReportWorker, error) {
	schedules := scheduler.NewScheduleManager(scheduler.ScheduleManagerConfig{
		Timezone:      config.Timezone,
		Timeout:       config.Timeout,
		RetryAttempts: config.RetryAttempts,
		RetryDelay:    config.RetryDelay,
	}, logger)

	if err := schedules.AddJob(scheduler.NewReportJob(generator, config.Spec, config.Window, logger)); err != nil {
		return nil, err
	}

	return &ReportWorker{schedules: schedules, logger: logger, config: config}, nil
}

// RunOnce generates the report immediately
func (w *ReportWorker) RunOnce() error {
	return w.schedules.Trigger(scheduler.WeeklyReportJobName)
}

// Start runs the schedule until ctx is cancelled
func (w *ReportWorker) Start(ctx context.Context) error {
	if err := w.schedules.Start(); err != nil {
		return err
	}
	defer w.schedules.Stop()

	if status, err := w.schedules.GetJobStatus(scheduler.WeeklyReportJobName); err == nil {
		w.logger.Info("Report worker started",
			zap.String("cron", w.config.Spec),
			zap.Time("next_run", status.NextRun))
	}

	<-ctx.Done()
	w.logger.Info("Report worker shutting down")
	return nil
}

func requirePersistentStorage(cfg config.StorageConfig) error {
	if cfg.Driver != "s3" {
		return fmt.Errorf("storage driver %q is not persistent, the report worker requires s3", cfg.Driver)
	}
	return nil
}

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "generate the report now and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// report rows must not outlive their objects
	if err := requirePersistentStorage(cfg.Storage); err != nil {
		logger.Fatal("Report worker cannot start", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		DSN:          cfg.Database.GetDatabaseURL(),
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	store, err := storage.NewS3Client(ctx, storage.S3Options{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UsePathStyle:    cfg.Storage.UsePathStyle,
	})
	if err != nil {
		logger.Fatal("Failed to initialise report storage", zap.Error(err))
	}

	reportService := reports.NewService(
		reports.NewRepository(db),
		store,
		reports.StorageConfig{Bucket: cfg.Storage.Bucket, PresignExpiry: cfg.Storage.PresignExpiry},
		nil,
		logger,
	)

	workerConfig := DefaultReportWorkerConfig()
	if cfg.Reports.ScheduleCron != "" {
		workerConfig.Spec = cfg.Reports.ScheduleCron
	}
	if cfg.Reports.Timezone != "" {
		workerConfig.Timezone = cfg.Reports.Timezone
	}

	worker, err := NewReportWorker(reportService, logger, workerConfig)
	if err != nil {
		logger.Fatal("Failed to create report worker", zap.Error(err))
	}

	if *once {
		if err := worker.RunOnce(); err != nil {
			logger.Fatal("Report generation failed", zap.Error(err))
		}
		return
	}

	if err := worker.Start(ctx); err != nil {
		logger.Error("Worker error", zap.Error(err))
	}

	logger.Info("Report worker stopped")
}
