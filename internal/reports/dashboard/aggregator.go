package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FarmSummary is the farm side of the dashboard
type FarmSummary struct {
	TotalFarms        int64
	TotalAreaHectares float64
}

// StatusSummary aggregates submissions in one status
type StatusSummary struct {
	Status        string
	Count         int64
	Credits       float64
	ConfidenceSum float64
	Estimates     int64
}

// StatsRepository computes the raw aggregates. A nil farmer id means all farmers.
type StatsRepository interface {
	FarmSummary(ctx context.Context, farmerID *uuid.UUID) (*FarmSummary, error)
	SubmissionSummary(ctx context.Context, farmerID *uuid.UUID) ([]StatusSummary, error)
}

// Stats is the dashboard summary for one farmer or for the whole platform
type Stats struct {
	TotalFarms        int64     `json:"total_farms"`
	TotalAreaHectares float64   `json:"total_area_hectares"`
	TotalSubmissions  int64     `json:"total_submissions"`
	Pending           int64     `json:"pending"`
	Verified          int64     `json:"verified"`
	Rejected          int64     `json:"rejected"`
	TotalCredits      float64   `json:"total_credits"`
	VerifiedCredits   float64   `json:"verified_credits"`
	AverageConfidence float64   `json:"average_confidence"`
	ComputedAt        time.Time `json:"computed_at"`
}

const overallKey = "overall"

// Aggregator computes and caches dashboard statistics
type Aggregator struct {
	repository StatsRepository
	cache      *AggregateCache[*Stats]
	logger     *zap.Logger
}

// NewAggregator creates an aggregator caching results for ttl
func NewAggregator(repository StatsRepository, ttl time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		repository: repository,
		cache:      NewAggregateCache[*Stats](ttl),
		logger:     logger,
	}
}

// FarmerStats returns the dashboard for one farmer
func (a *Aggregator) FarmerStats(ctx context.Context, farmerID uuid.UUID) (*Stats, error) {
	return a.cache.GetOrSet(farmerKey(farmerID), func() (*Stats, error) {
		return a.compute(ctx, &farmerID)
	})
}

// OverallStats returns the platform-wide dashboard used by verifiers
func (a *Aggregator) OverallStats(ctx context.Context) (*Stats, error) {
	return a.cache.GetOrSet(overallKey, func() (*Stats, error) {
		return a.compute(ctx, nil)
	})
}

// Invalidate drops cached stats affected by a change to a farmer's data
func (a *Aggregator) Invalidate(farmerID uuid.UUID) {
	a.cache.Delete(farmerKey(farmerID))
	a.cache.Delete(overallKey)
}

// Close stops the cache sweep
func (a *Aggregator) Close() {
	a.cache.Stop()
}

func (a *Aggregator) compute(ctx context.Context, farmerID *uuid.UUID) (*Stats, error) {
	var (
		wg       sync.WaitGroup
		farms    *FarmSummary
		statuses []StatusSummary
		farmErr  error
		subErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		farms, farmErr = a.repository.FarmSummary(ctx, farmerID)
	}()
	go func() {
		defer wg.Done()
		statuses, subErr = a.repository.SubmissionSummary(ctx, farmerID)
	}()
	wg.Wait()

	if farmErr != nil {
		return nil, fmt.Errorf("farm summary: %w", farmErr)
	}
	if subErr != nil {
		return nil, fmt.Errorf("submission summary: %w", subErr)
	}

	stats := &Stats{
		TotalFarms:        farms.TotalFarms,
		TotalAreaHectares: farms.TotalAreaHectares,
		ComputedAt:        time.Now(),
	}

	var confidenceSum float64
	var estimates int64
	for _, s := range statuses {
		stats.TotalSubmissions += s.Count
		stats.TotalCredits += s.Credits
		confidenceSum += s.ConfidenceSum
		estimates += s.Estimates

		switch s.Status {
		case "pending":
			stats.Pending = s.Count
		case "verified":
			stats.Verified = s.Count
			stats.VerifiedCredits = s.Credits
		case "rejected":
			stats.Rejected = s.Count
		default:
			a.logger.Warn("Unknown submission status in aggregate", zap.String("status", s.Status))
		}
	}
	if estimates > 0 {
		stats.AverageConfidence = confidenceSum / float64(estimates)
	}

	return stats, nil
}

func farmerKey(farmerID uuid.UUID) string {
	return "farmer:" + farmerID.String()
}
