package farms

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("farm not found")
	ErrConflict = errors.New("farm has submissions")
)

type Repository interface {
	Create(ctx context.Context, farm *Farm) error
	GetByID(ctx context.Context, id uuid.UUID) (*Farm, error)
	List(ctx context.Context, filter FarmFilter) ([]Farm, int64, error)
	Update(ctx context.Context, farm *Farm) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountSubmissions(ctx context.Context, farmID uuid.UUID) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed farm repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, farm *Farm) error {
	if err := r.db.WithContext(ctx).Create(farm).Error; err != nil {
		return fmt.Errorf("failed to create farm: %w", err)
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Farm, error) {
	var farm Farm
	if err := r.db.WithContext(ctx).First(&farm, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get farm: %w", err)
	}
	return &farm, nil
}

func (r *gormRepository) List(ctx context.Context, filter FarmFilter) ([]Farm, int64, error) {
	query := r.db.WithContext(ctx).Model(&Farm{})
	if filter.FarmerID != nil {
		query = query.Where("farmer_id = ?", *filter.FarmerID)
	}
	if filter.CropType != "" {
		query = query.Where("crop_type = ?", filter.CropType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count farms: %w", err)
	}

	if filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var farms []Farm
	if err := query.Order("created_at DESC").Find(&farms).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list farms: %w", err)
	}
	return farms, total, nil
}

func (r *gormRepository) Update(ctx context.Context, farm *Farm) error {
	if err := r.db.WithContext(ctx).Save(farm).Error; err != nil {
		return fmt.Errorf("failed to update farm: %w", err)
	}
	return nil
}

func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&Farm{}, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrForeignKeyViolated) {
			return ErrConflict
		}
		return fmt.Errorf("failed to delete farm: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSubmissions counts submissions filed against a farm
func (r *gormRepository) CountSubmissions(ctx context.Context, farmID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Table("submissions").Where("farm_id = ?", farmID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count farm submissions: %w", err)
	}
	return count, nil
}
