package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"carbonmrv/mrv-backend/internal/auth"
	"carbonmrv/mrv-backend/internal/config"
	"carbonmrv/mrv-backend/internal/estimation"
	"carbonmrv/mrv-backend/internal/farmers"
	"carbonmrv/mrv-backend/internal/farms"
	"carbonmrv/mrv-backend/internal/logging"
	"carbonmrv/mrv-backend/internal/notifications"
	"carbonmrv/mrv-backend/internal/notifications/websocket"
	"carbonmrv/mrv-backend/internal/remotesensing"
	"carbonmrv/mrv-backend/internal/reports"
	"carbonmrv/mrv-backend/internal/reports/dashboard"
	"carbonmrv/mrv-backend/internal/reports/scheduler"
	"carbonmrv/mrv-backend/internal/submissions"
	"carbonmrv/mrv-backend/pkg/database"
	"carbonmrv/mrv-backend/pkg/storage"
)

const scheduledReportWindow = 7 * 24 * time.Hour

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		zap.NewExample().Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		DSN:          cfg.Database.GetDatabaseURL(),
		MaxOpenConns: cfg.Database.MaxConnections,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  cfg.Database.MaxLifetime,
		LogQueries:   cfg.Logging.Development,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if cfg.Database.AutoMigrate {
		if err := migrate(db); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	store, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialise report storage", zap.Error(err))
	}

	notifier, err := newNotifier(ctx, cfg.Notifications, logger)
	if err != nil {
		logger.Fatal("Failed to initialise notifier", zap.Error(err))
	}

	hub := websocket.NewHub(cfg.Server.AllowedOrigins, logger)
	go hub.Run(ctx)
	notificationService := notifications.NewService(notifier, hub, logger)

	// Farmers and farms
	farmerService := farmers.NewService(farmers.NewRepository(db), logger)
	farmService := farms.NewService(farms.NewRepository(db), logger)

	// Submissions
	var provider remotesensing.Provider
	if cfg.RemoteSensing.Provider == "mock" {
		provider = remotesensing.NewCachedProvider(
			remotesensing.NewMockProvider(cfg.RemoteSensing.Latency, time.Now().UnixNano()),
			cfg.RemoteSensing.CacheTTL,
		)
	}
	submissionService := submissions.NewService(
		submissions.NewRepository(db),
		farmService,
		farmerService,
		provider,
		notificationService,
		logger,
	)

	// Reporting
	aggregator := dashboard.NewAggregator(dashboard.NewRepository(db), cfg.Reports.DashboardTTL, logger)
	defer aggregator.Close()
	submissionService.OnChange(aggregator.Invalidate)
	farmService.OnChange(aggregator.Invalidate)

	reportService := reports.NewService(
		reports.NewRepository(db),
		store,
		reports.StorageConfig{Bucket: cfg.Storage.Bucket, PresignExpiry: cfg.Storage.PresignExpiry},
		notificationService,
		logger,
	)

	schedules := scheduler.NewScheduleManager(scheduler.ScheduleManagerConfig{
		Timezone:      cfg.Reports.Timezone,
		Timeout:       30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
	}, logger)
	if cfg.Reports.ScheduleEnabled {
		job := scheduler.NewReportJob(reportService, cfg.Reports.ScheduleCron, scheduledReportWindow, logger)
		if err := schedules.AddJob(job); err != nil {
			logger.Fatal("Failed to schedule report job", zap.Error(err))
		}
		if err := schedules.Start(); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer schedules.Stop()
	}

	// Setup Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.Server.AllowedOrigins))

	verifier := auth.NewVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer)
	api := router.Group("/api/v1", auth.Middleware(verifier, farmerService, logger))
	{
		farmers.NewHandler(farmerService, logger).RegisterRoutes(api)
		farms.NewHandler(farmService, logger).RegisterRoutes(api)
		submissions.NewHandler(submissionService, logger).RegisterRoutes(api)
		estimation.NewHandler(estimation.NewEstimator(logger), logger).RegisterRoutes(api)
		dashboard.NewHandler(aggregator, logger).RegisterRoutes(api)
		reports.NewHandler(reportService, logger).RegisterRoutes(api)
		hub.RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":            status,
			"timestamp":         time.Now(),
			"websocket_clients": hub.ClientCount(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&farmers.Farmer{},
		&farms.Farm{},
		&submissions.Submission{},
		&submissions.CarbonEstimate{},
		&submissions.StatusChange{},
		&reports.Report{},
	)
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (storage.S3Client, error) {
	if cfg.Driver == "memory" {
		return storage.NewMemoryS3Client(), nil
	}
	return storage.NewS3Client(ctx, storage.S3Options{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UsePathStyle:    cfg.UsePathStyle,
	})
}

func newNotifier(ctx context.Context, cfg config.NotificationsConfig, logger *zap.Logger) (notifications.Notifier, error) {
	notifier := &notifications.MultiNotifier{
		Email: notifications.NewLogNotifier(logger),
		SMS:   notifications.NewLogNotifier(logger),
	}
	if !cfg.EmailEnabled && !cfg.SMSEnabled {
		return notifier, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	if cfg.EmailEnabled {
		notifier.Email = notifications.NewSESNotifier(sesv2.NewFromConfig(awsCfg), cfg.FromAddress, logger)
	}
	if cfg.SMSEnabled {
		notifier.SMS = notifications.NewSNSNotifier(sns.NewFromConfig(awsCfg), cfg.DefaultCountryCode, logger)
	}
	return notifier, nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func cors(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok || (allowAll && origin != "") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
