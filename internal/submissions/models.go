package submissions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"carbonmrv/mrv-backend/internal/estimation"
	"carbonmrv/mrv-backend/internal/farms"
)

// Status is the verification state of a submission
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Submission is a farmer's request to have a farm's carbon credits verified
type Submission struct {
	ID                uuid.UUID                                      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FarmID            uuid.UUID                                      `gorm:"type:uuid;not null;index" json:"farm_id"`
	FarmerID          uuid.UUID                                      `gorm:"type:uuid;not null;index" json:"farmer_id"`
	SubmissionDate    time.Time                                      `gorm:"not null;index" json:"submission_date"`
	RawData           datatypes.JSONType[estimation.EstimationInput] `json:"raw_data"`
	RemoteSensingData datatypes.JSONType[estimation.RemoteSensing]   `json:"remote_sensing_data"`
	Status            Status                                         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewedBy        *uuid.UUID                                     `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewNotes       string                                         `json:"review_notes,omitempty"`
	ReviewedAt        *time.Time                                     `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time                                      `json:"created_at"`
	UpdatedAt         time.Time                                      `json:"updated_at"`

	Farm     *farms.Farm     `gorm:"foreignKey:FarmID" json:"farm,omitempty"`
	Estimate *CarbonEstimate `gorm:"foreignKey:SubmissionID" json:"estimate,omitempty"`
}

// CarbonEstimate is the stored estimator output for a submission
type CarbonEstimate struct {
	ID                         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubmissionID               uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"submission_id"`
	BiomassEstimate            float64   `json:"biomass_estimate"`
	MethaneEmission            float64   `json:"methane_emission"`
	CarbonCredits              float64   `gorm:"index" json:"carbon_credits"`
	ConfidenceScore            float64   `json:"confidence_score"`
	BiomassCarbonSequestration float64   `json:"biomass_carbon_sequestration"`
	SoilCarbonSequestration    float64   `json:"soil_carbon_sequestration"`
	MethaneReduction           float64   `json:"methane_reduction"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// NewCarbonEstimate converts an estimator result into a stored estimate
func NewCarbonEstimate(submissionID uuid.UUID, result *estimation.EstimationResult) *CarbonEstimate {
	now := time.Now()
	return &CarbonEstimate{
		ID:                         uuid.New(),
		SubmissionID:               submissionID,
		BiomassEstimate:            result.BiomassEstimate,
		MethaneEmission:            result.MethaneEmissionReduction,
		CarbonCredits:              result.CarbonCredits,
		ConfidenceScore:            result.ConfidenceScore,
		BiomassCarbonSequestration: result.Breakdown.BiomassCarbonSequestration,
		SoilCarbonSequestration:    result.Breakdown.SoilCarbonSequestration,
		MethaneReduction:           result.Breakdown.MethaneReduction,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
}

// StatusChange records a status transition of a submission
type StatusChange struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submission_id"`
	FromStatus   Status    `gorm:"type:varchar(20)" json:"from_status"`
	ToStatus     Status    `gorm:"type:varchar(20);not null" json:"to_status"`
	ChangedBy    uuid.UUID `gorm:"type:uuid;not null" json:"changed_by"`
	Notes        string    `json:"notes,omitempty"`
	ChangedAt    time.Time `gorm:"not null" json:"changed_at"`
}

// SubmitRequest asks for a farm's credits to be estimated and verified
type SubmitRequest struct {
	FarmID           uuid.UUID             `json:"farm_id" binding:"required"`
	Practices        *estimation.Practices `json:"practices"`
	UseRemoteSensing bool                  `json:"use_remote_sensing"`
}

// ReviewRequest is a verifier's decision on a pending submission
type ReviewRequest struct {
	Decision Status `json:"decision" binding:"required,oneof=verified rejected"`
	Notes    string `json:"notes"`
}

// SubmissionFilter narrows submission listings
type SubmissionFilter struct {
	Status   Status
	FarmID   *uuid.UUID
	FarmerID *uuid.UUID
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// SubmissionList is a page of submissions
type SubmissionList struct {
	Submissions []Submission `json:"submissions"`
	Total       int64        `json:"total"`
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
}
