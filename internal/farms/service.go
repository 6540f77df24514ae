package farms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"carbonmrv/mrv-backend/internal/auth"
	"carbonmrv/mrv-backend/internal/estimation"
	"carbonmrv/mrv-backend/pkg/geospatial"
)

var (
	ErrInvalidFarm = errors.New("invalid farm")
	ErrForbidden   = errors.New("not allowed to access this farm")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service manages farm registration
type Service struct {
	repo     Repository
	onChange []func(farmerID uuid.UUID)
	logger   *zap.Logger
}

// NewService creates a new farm service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// OnChange registers a callback run after a farmer's farms change
func (s *Service) OnChange(fn func(farmerID uuid.UUID)) {
	s.onChange = append(s.onChange, fn)
}

func (s *Service) changed(farmerID uuid.UUID) {
	for _, fn := range s.onChange {
		fn(farmerID)
	}
}

// CreateFarm registers a farm for the calling farmer. When a boundary is supplied the
// land size and GPS location default to its area and centroid.
func (s *Service) CreateFarm(ctx context.Context, principal *auth.Principal, req CreateFarmRequest) (*Farm, error) {
	if !principal.HasProfile() {
		return nil, ErrForbidden
	}

	farm := &Farm{
		ID:          uuid.New(),
		FarmerID:    principal.FarmerID,
		Name:        strings.TrimSpace(req.Name),
		CropType:    strings.TrimSpace(req.CropType),
		LandSize:    req.LandSize,
		GPSLocation: req.GPSLocation,
		Practices:   datatypes.NewJSONType(req.Practices),
		Images:      req.Images,
	}
	if farm.Images == nil {
		farm.Images = []string{}
	}

	if len(req.Boundary) > 0 {
		if err := applyBoundary(farm, req.Boundary, req.LandSize <= 0, req.GPSLocation == nil); err != nil {
			return nil, err
		}
	}

	if err := validateFarm(farm); err != nil {
		return nil, err
	}
	if !estimation.IsKnownCropType(farm.CropType) {
		s.logger.Warn("Farm registered with unknown crop type", zap.String("crop_type", farm.CropType))
	}

	now := time.Now()
	farm.CreatedAt = now
	farm.UpdatedAt = now

	if err := s.repo.Create(ctx, farm); err != nil {
		return nil, err
	}

	s.logger.Info("Farm registered",
		zap.String("farm_id", farm.ID.String()),
		zap.String("farmer_id", farm.FarmerID.String()),
		zap.String("crop_type", farm.CropType),
		zap.Float64("land_size", farm.LandSize))

	s.changed(farm.FarmerID)
	return farm, nil
}

// GetFarm returns a farm visible to the caller
func (s *Service) GetFarm(ctx context.Context, principal *auth.Principal, id uuid.UUID) (*Farm, error) {
	farm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if farm.FarmerID != principal.FarmerID && !principal.Role.CanReview() {
		return nil, ErrForbidden
	}
	return farm, nil
}

// ListFarms lists the caller's farms. Verifiers and admins see every farm and may filter
// by owner.
func (s *Service) ListFarms(ctx context.Context, principal *auth.Principal, filter FarmFilter) (*FarmList, error) {
	if !principal.Role.CanReview() {
		owner := principal.FarmerID
		filter.FarmerID = &owner
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	farms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &FarmList{Farms: farms, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// UpdateFarm changes a farm owned by the caller
func (s *Service) UpdateFarm(ctx context.Context, principal *auth.Principal, id uuid.UUID, req UpdateFarmRequest) (*Farm, error) {
	farm, err := s.ownedFarm(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		farm.Name = strings.TrimSpace(*req.Name)
	}
	if req.CropType != nil {
		farm.CropType = strings.TrimSpace(*req.CropType)
	}
	if req.LandSize != nil {
		farm.LandSize = *req.LandSize
	}
	if req.GPSLocation != nil {
		farm.GPSLocation = req.GPSLocation
	}
	if req.Practices != nil {
		farm.Practices = datatypes.NewJSONType(*req.Practices)
	}
	if req.Images != nil {
		farm.Images = req.Images
	}
	if len(req.Boundary) > 0 {
		if err := applyBoundary(farm, req.Boundary, req.LandSize == nil, req.GPSLocation == nil); err != nil {
			return nil, err
		}
	}

	if err := validateFarm(farm); err != nil {
		return nil, err
	}

	farm.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, farm); err != nil {
		return nil, err
	}
	s.changed(farm.FarmerID)
	return farm, nil
}

// DeleteFarm removes a farm owned by the caller. Farms with submissions are kept
// as the verification record and return ErrConflict.
func (s *Service) DeleteFarm(ctx context.Context, principal *auth.Principal, id uuid.UUID) error {
	farm, err := s.ownedFarm(ctx, principal, id)
	if err != nil {
		return err
	}

	count, err := s.repo.CountSubmissions(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d submission(s) reference it", ErrConflict, count)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Farm deleted", zap.String("farm_id", id.String()))
	s.changed(farm.FarmerID)
	return nil
}

func (s *Service) ownedFarm(ctx context.Context, principal *auth.Principal, id uuid.UUID) (*Farm, error) {
	farm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if farm.FarmerID != principal.FarmerID {
		return nil, ErrForbidden
	}
	return farm, nil
}

func applyBoundary(farm *Farm, raw []byte, deriveSize, deriveLocation bool) error {
	geometry, err := geospatial.ParseBoundary(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFarm, err)
	}
	farm.Boundary = datatypes.JSON(raw)

	if deriveSize {
		farm.LandSize = math.Round(geospatial.AreaHectares(geometry)*100) / 100
	}
	if deriveLocation {
		centroid := geospatial.Centroid(geometry)
		farm.GPSLocation = &GPSLocation{X: centroid.Lon(), Y: centroid.Lat()}
	}
	return nil
}

func validateFarm(farm *Farm) error {
	if len(farm.Name) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidFarm)
	}
	if farm.CropType == "" {
		return fmt.Errorf("%w: crop type is required", ErrInvalidFarm)
	}
	if math.IsNaN(farm.LandSize) || math.IsInf(farm.LandSize, 0) || farm.LandSize < MinLandSizeHectares {
		return fmt.Errorf("%w: land size must be at least %.1f hectares", ErrInvalidFarm, MinLandSizeHectares)
	}
	if farm.GPSLocation != nil {
		if err := geospatial.ValidatePoint(farm.GPSLocation.Point()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFarm, err)
		}
	}
	return nil
}
