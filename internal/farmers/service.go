package farmers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbonmrv/mrv-backend/internal/auth"
)

var ErrInvalidProfile = errors.New("invalid profile")

// Service manages farmer and verifier profiles
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new profile service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ResolveProfile implements auth.ProfileResolver
func (s *Service) ResolveProfile(ctx context.Context, authID string) (uuid.UUID, auth.Role, error) {
	farmer, err := s.repo.GetByAuthID(ctx, authID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return uuid.Nil, "", auth.ErrNoProfile
		}
		return uuid.Nil, "", err
	}
	return farmer.ID, farmer.Role, nil
}

// GetProfile returns the profile bound to an auth id
func (s *Service) GetProfile(ctx context.Context, authID string) (*Farmer, error) {
	return s.repo.GetByAuthID(ctx, authID)
}

// GetByID returns a profile by its id
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Farmer, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProfile registers a profile on first login. Self-registration may choose the
// farmer or verifier role; admins are provisioned out of band.
func (s *Service) CreateProfile(ctx context.Context, authID string, req CreateProfileRequest) (*Farmer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}

	role := req.Role
	if role == "" {
		role = auth.RoleFarmer
	}
	if role != auth.RoleFarmer && role != auth.RoleVerifier {
		return nil, fmt.Errorf("%w: role %q cannot be self-assigned", ErrInvalidProfile, role)
	}

	language := req.Language
	if language == "" {
		language = LanguageEnglish
	}
	if err := validateLanguage(language); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByAuthID(ctx, authID); err == nil {
		return nil, ErrProfileExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	farmer := &Farmer{
		ID:        uuid.New(),
		AuthID:    authID,
		Name:      name,
		Contact:   req.Contact,
		Language:  language,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, farmer); err != nil {
		return nil, err
	}

	s.logger.Info("Profile registered",
		zap.String("farmer_id", farmer.ID.String()),
		zap.String("role", string(farmer.Role)))

	return farmer, nil
}

// UpdateProfile applies editable fields to the caller's profile
func (s *Service) UpdateProfile(ctx context.Context, authID string, req UpdateProfileRequest) (*Farmer, error) {
	farmer, err := s.repo.GetByAuthID(ctx, authID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidProfile)
		}
		farmer.Name = name
	}
	if req.Contact != nil {
		farmer.Contact = req.Contact
	}
	if req.Language != nil {
		if err := validateLanguage(*req.Language); err != nil {
			return nil, err
		}
		farmer.Language = *req.Language
	}

	farmer.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, farmer); err != nil {
		return nil, err
	}
	return farmer, nil
}

func validateLanguage(language string) error {
	switch language {
	case LanguageEnglish, LanguageHindi:
		return nil
	}
	return fmt.Errorf("%w: unsupported language %q", ErrInvalidProfile, language)
}
