package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Role is the application role stored on a farmer profile
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleVerifier Role = "verifier"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleVerifier, RoleAdmin:
		return true
	}
	return false
}

// CanReview reports whether the role may review submissions and export reports
func (r Role) CanReview() bool {
	return r == RoleVerifier || r == RoleAdmin
}

// ErrNoProfile is returned by a ProfileResolver when the authenticated user has not
// registered a profile yet.
var ErrNoProfile = errors.New("profile not found")

// Principal is the authenticated caller of a request
type Principal struct {
	AuthID   string    `json:"auth_id"`
	Email    string    `json:"email,omitempty"`
	FarmerID uuid.UUID `json:"farmer_id"`
	Role     Role      `json:"role"`
}

// HasProfile reports whether the caller has a registered profile
func (p *Principal) HasProfile() bool {
	return p.FarmerID != uuid.Nil
}

// ProfileResolver looks up the profile bound to an auth provider user id
type ProfileResolver interface {
	ResolveProfile(ctx context.Context, authID string) (uuid.UUID, Role, error)
}
