package farmers

import (
	"time"

	"github.com/google/uuid"

	"carbonmrv/mrv-backend/internal/auth"
)

// Supported interface languages
const (
	LanguageEnglish = "en"
	LanguageHindi   = "hi"
)

// Farmer is the profile of an authenticated user. Verifiers and admins are stored in
// the same table with a different role.
type Farmer struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AuthID    string    `gorm:"not null;uniqueIndex" json:"auth_id"`
	Name      string    `gorm:"not null" json:"name"`
	Contact   *string   `json:"contact,omitempty"`
	Language  string    `gorm:"not null;default:'en'" json:"language"`
	Role      auth.Role `gorm:"type:text;not null;default:'farmer'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProfileRequest registers a profile for the authenticated user
type CreateProfileRequest struct {
	Name     string    `json:"name" binding:"required"`
	Contact  *string   `json:"contact"`
	Language string    `json:"language"`
	Role     auth.Role `json:"role"`
}

// UpdateProfileRequest changes editable profile fields. Role is not editable.
type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Contact  *string `json:"contact"`
	Language *string `json:"language"`
}
