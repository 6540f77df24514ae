package submissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("submission not found")
	// ErrConflict means the submission changed status concurrently
	ErrConflict = errors.New("submission was modified concurrently")
)

type Repository interface {
	CreateWithEstimate(ctx context.Context, submission *Submission, estimate *CarbonEstimate) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]Submission, int64, error)
	UpdateReview(ctx context.Context, submission *Submission, from Status, change *StatusChange) error
	ReplaceEstimate(ctx context.Context, submission *Submission, estimate *CarbonEstimate) error
	History(ctx context.Context, submissionID uuid.UUID) ([]StatusChange, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed submission repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWithEstimate(ctx context.Context, submission *Submission, estimate *CarbonEstimate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(submission).Error; err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		if err := tx.Create(estimate).Error; err != nil {
			return fmt.Errorf("failed to create estimate: %w", err)
		}
		return nil
	})
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var submission Submission
	err := r.db.WithContext(ctx).
		Preload("Farm").
		Preload("Estimate").
		First(&submission, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

func (r *gormRepository) List(ctx context.Context, filter SubmissionFilter) ([]Submission, int64, error) {
	query := r.db.WithContext(ctx).Model(&Submission{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FarmID != nil {
		query = query.Where("farm_id = ?", *filter.FarmID)
	}
	if filter.FarmerID != nil {
		query = query.Where("farmer_id = ?", *filter.FarmerID)
	}
	if filter.From != nil {
		query = query.Where("submission_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("submission_date < ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	if filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var submissions []Submission
	err := query.
		Preload("Farm").
		Preload("Estimate").
		Order("submission_date DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, total, nil
}

// UpdateReview stores a review decision only if the submission is still in status from
func (r *gormRepository) UpdateReview(ctx context.Context, submission *Submission, from Status, change *StatusChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Submission{}).
			Where("id = ? AND status = ?", submission.ID, from).
			Updates(map[string]interface{}{
				"status":       submission.Status,
				"reviewed_by":  submission.ReviewedBy,
				"review_notes": submission.ReviewNotes,
				"reviewed_at":  submission.ReviewedAt,
				"updated_at":   submission.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update submission: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}
		if err := tx.Create(change).Error; err != nil {
			return fmt.Errorf("failed to record status change: %w", err)
		}
		return nil
	})
}

// ReplaceEstimate swaps the stored estimate of a pending submission
func (r *gormRepository) ReplaceEstimate(ctx context.Context, submission *Submission, estimate *CarbonEstimate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Submission{}).
			Where("id = ? AND status = ?", submission.ID, StatusPending).
			Updates(map[string]interface{}{
				"raw_data":   submission.RawData,
				"updated_at": submission.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update submission: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConflict
		}
		if err := tx.Where("submission_id = ?", submission.ID).Delete(&CarbonEstimate{}).Error; err != nil {
			return fmt.Errorf("failed to delete estimate: %w", err)
		}
		if err := tx.Create(estimate).Error; err != nil {
			return fmt.Errorf("failed to create estimate: %w", err)
		}
		return nil
	})
}

func (r *gormRepository) History(ctx context.Context, submissionID uuid.UUID) ([]StatusChange, error) {
	var changes []StatusChange
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("changed_at ASC").
		Find(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	return changes, nil
}
