package farmers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("farmer not found")
	ErrProfileExists = errors.New("profile already exists")
)

type Repository interface {
	Create(ctx context.Context, farmer *Farmer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Farmer, error)
	GetByAuthID(ctx context.Context, authID string) (*Farmer, error)
	Update(ctx context.Context, farmer *Farmer) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed farmer repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, farmer *Farmer) error {
	if err := r.db.WithContext(ctx).Create(farmer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrProfileExists
		}
		return fmt.Errorf("failed to create farmer: %w", err)
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Farmer, error) {
	var farmer Farmer
	if err := r.db.WithContext(ctx).First(&farmer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get farmer: %w", err)
	}
	return &farmer, nil
}

func (r *gormRepository) GetByAuthID(ctx context.Context, authID string) (*Farmer, error) {
	var farmer Farmer
	if err := r.db.WithContext(ctx).First(&farmer, "auth_id = ?", authID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get farmer: %w", err)
	}
	return &farmer, nil
}

func (r *gormRepository) Update(ctx context.Context, farmer *Farmer) error {
	if err := r.db.WithContext(ctx).Save(farmer).Error; err != nil {
		return fmt.Errorf("failed to update farmer: %w", err)
	}
	return nil
}
