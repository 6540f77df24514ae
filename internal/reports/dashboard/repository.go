package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed stats repository
func NewRepository(db *gorm.DB) StatsRepository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FarmSummary(ctx context.Context, farmerID *uuid.UUID) (*FarmSummary, error) {
	query := r.db.WithContext(ctx).
		Table("farms").
		Select("COUNT(*) AS total_farms, COALESCE(SUM(land_size), 0) AS total_area_hectares")
	if farmerID != nil {
		query = query.Where("farmer_id = ?", *farmerID)
	}

	var summary FarmSummary
	if err := query.Scan(&summary).Error; err != nil {
		return nil, fmt.Errorf("failed to summarize farms: %w", err)
	}
	return &summary, nil
}

func (r *gormRepository) SubmissionSummary(ctx context.Context, farmerID *uuid.UUID) ([]StatusSummary, error) {
	query := r.db.WithContext(ctx).
		Table("submissions AS s").
		Select(`s.status AS status,
			COUNT(s.id) AS count,
			COALESCE(SUM(e.carbon_credits), 0) AS credits,
			COALESCE(SUM(e.confidence_score), 0) AS confidence_sum,
			COUNT(e.id) AS estimates`).
		Joins("LEFT JOIN carbon_estimates AS e ON e.submission_id = s.id").
		Group("s.status")
	if farmerID != nil {
		query = query.Where("s.farmer_id = ?", *farmerID)
	}

	var summaries []StatusSummary
	if err := query.Scan(&summaries).Error; err != nil {
		return nil, fmt.Errorf("failed to summarize submissions: %w", err)
	}
	return summaries, nil
}
