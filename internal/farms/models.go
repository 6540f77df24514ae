package farms

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/paulmach/orb"
	"gorm.io/datatypes"

	"carbonmrv/mrv-backend/internal/estimation"
)

// MinLandSizeHectares is the smallest plot that can be registered
const MinLandSizeHectares = 0.1

// GPSLocation is a WGS84 point; X is longitude and Y is latitude
type GPSLocation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point converts the location to an orb point
func (l GPSLocation) Point() orb.Point {
	return orb.Point{l.X, l.Y}
}

// Farm is a registered plot of land
type Farm struct {
	ID          uuid.UUID                                `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FarmerID    uuid.UUID                                `gorm:"type:uuid;not null;index" json:"farmer_id"`
	Name        string                                   `gorm:"not null" json:"name"`
	CropType    string                                   `gorm:"not null;index" json:"crop_type"`
	LandSize    float64                                  `gorm:"not null" json:"land_size"` // hectares
	GPSLocation *GPSLocation                             `gorm:"serializer:json" json:"gps_location,omitempty"`
	Boundary    datatypes.JSON                           `json:"boundary,omitempty"` // GeoJSON
	Practices   datatypes.JSONType[estimation.Practices] `json:"practices"`
	Images      pq.StringArray                           `gorm:"type:text[]" json:"images"`
	CreatedAt   time.Time                                `json:"created_at"`
	UpdatedAt   time.Time                                `json:"updated_at"`
}

// EstimationInput builds the estimator input for this farm
func (f *Farm) EstimationInput() estimation.EstimationInput {
	practices := f.Practices.Data()
	return estimation.EstimationInput{
		CropType:         f.CropType,
		LandSizeHectares: f.LandSize,
		Practices:        &practices,
	}
}

// CreateFarmRequest registers a new farm
type CreateFarmRequest struct {
	Name        string               `json:"name" binding:"required"`
	CropType    string               `json:"crop_type" binding:"required"`
	LandSize    float64              `json:"land_size"`
	GPSLocation *GPSLocation         `json:"gps_location"`
	Boundary    json.RawMessage      `json:"boundary"`
	Practices   estimation.Practices `json:"practices"`
	Images      []string             `json:"images"`
}

// UpdateFarmRequest changes farm fields; nil fields are left untouched
type UpdateFarmRequest struct {
	Name        *string               `json:"name"`
	CropType    *string               `json:"crop_type"`
	LandSize    *float64              `json:"land_size"`
	GPSLocation *GPSLocation          `json:"gps_location"`
	Boundary    json.RawMessage       `json:"boundary"`
	Practices   *estimation.Practices `json:"practices"`
	Images      []string              `json:"images"`
}

// FarmFilter narrows farm listings
type FarmFilter struct {
	FarmerID *uuid.UUID
	CropType string
	Page     int
	PageSize int
}

// FarmList is a page of farms
type FarmList struct {
	Farms    []Farm `json:"farms"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}
