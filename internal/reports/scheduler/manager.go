package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var ErrJobNotFound = errors.New("job not found")

// Job is a named unit of work run on a cron schedule
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// ScheduleManagerConfig configuration for the schedule manager
type ScheduleManagerConfig struct {
	Timezone      string        `json:"timezone"`
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
}

// DefaultScheduleManagerConfig returns default configuration
func DefaultScheduleManagerConfig() ScheduleManagerConfig {
	return ScheduleManagerConfig{
		Timezone:      "UTC",
		Timeout:       30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
	}
}

// ScheduleManager runs jobs on cron schedules
type ScheduleManager struct {
	cron    *cron.Cron
	jobs    map[string]cron.EntryID
	specs   map[string]Job
	config  ScheduleManagerConfig
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	running bool
}

// NewScheduleManager creates a new schedule manager. Unknown timezones fall back to UTC.
func NewScheduleManager(config ScheduleManagerConfig, logger *zap.Logger) *ScheduleManager {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		logger.Warn("Unknown schedule timezone, using UTC", zap.String("timezone", config.Timezone))
		loc = time.UTC
	}
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 1
	}

	cronLogger := zapCronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &ScheduleManager{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		jobs:   make(map[string]cron.EntryID),
		specs:  make(map[string]Job),
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the cron scheduler
func (m *ScheduleManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("schedule manager already running")
	}
	m.running = true

	m.logger.Info("Starting schedule manager", zap.Int("jobs", len(m.jobs)))
	m.cron.Start()
	return nil
}

// Stop cancels running jobs and waits for them to return
func (m *ScheduleManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.logger.Info("Stopping schedule manager")
	m.cancel()
	<-m.cron.Stop().Done()
	m.running = false
}

// AddJob schedules a job, replacing any job with the same name
func (m *ScheduleManager) AddJob(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q has no run function", job.Name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entryID, ok := m.jobs[job.Name]; ok {
		m.cron.Remove(entryID)
	}

	entryID, err := m.cron.AddFunc(job.Spec, func() { m.execute(job) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	m.jobs[job.Name] = entryID
	m.specs[job.Name] = job

	m.logger.Info("Added schedule",
		zap.String("job", job.Name),
		zap.String("cron", job.Spec),
		zap.String("timezone", m.cron.Location().String()))

	return nil
}

// RemoveJob removes a job from the manager
func (m *ScheduleManager) RemoveJob(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entryID, ok := m.jobs[name]; ok {
		m.cron.Remove(entryID)
		delete(m.jobs, name)
		delete(m.specs, name)
		m.logger.Info("Removed schedule", zap.String("job", name))
	}
}

// Trigger runs a job immediately outside its schedule and waits for it
func (m *ScheduleManager) Trigger(name string) error {
	m.mu.RLock()
	job, ok := m.specs[name]
	m.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	return m.execute(job)
}

func (m *ScheduleManager) execute(job Job) error {
	ctx, cancel := context.WithTimeout(m.ctx, m.config.Timeout)
	defer cancel()

	start := time.Now()
	var err error
	for attempt := 1; attempt <= m.config.RetryAttempts; attempt++ {
		if err = job.Run(ctx); err == nil {
			m.logger.Info("Scheduled job completed",
				zap.String("job", job.Name),
				zap.Int("attempt", attempt),
				zap.Duration("duration", time.Since(start)))
			return nil
		}

		m.logger.Warn("Scheduled job failed",
			zap.String("job", job.Name),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == m.config.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.config.RetryDelay):
		}
	}

	m.logger.Error("Scheduled job gave up",
		zap.String("job", job.Name),
		zap.Int("attempts", m.config.RetryAttempts),
		zap.Error(err))
	return err
}

// GetActiveJobs returns the number of active jobs
func (m *ScheduleManager) GetActiveJobs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// GetJobStatus returns the status of a scheduled job
func (m *ScheduleManager) GetJobStatus(name string) (*JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entryID, ok := m.jobs[name]
	if !ok {
		return nil, ErrJobNotFound
	}

	entry := m.cron.Entry(entryID)
	next := entry.Next
	if next.IsZero() {
		next = entry.Schedule.Next(time.Now().In(m.cron.Location()))
	}
	return &JobStatus{
		Name:    name,
		Spec:    m.specs[name].Spec,
		NextRun: next,
		PrevRun: entry.Prev,
	}, nil
}

// JobStatus represents the status of a scheduled job
type JobStatus struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run"`
}

// ValidateCronExpression validates a five-field cron expression
func ValidateCronExpression(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}

type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
