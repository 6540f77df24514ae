package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Report is a generated export stored in object storage
type Report struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EstimateID   *uuid.UUID      `gorm:"type:uuid;index" json:"estimate_id,omitempty"`
	ReportType   string          `gorm:"type:varchar(10);not null" json:"report_type"`
	ReportURL    string          `gorm:"not null" json:"report_url"`
	ObjectKey    string          `gorm:"not null" json:"object_key"`
	RowCount     int             `json:"row_count"`
	TotalArea    decimal.Decimal `gorm:"type:numeric(18,4)" json:"total_area"`
	TotalCredits decimal.Decimal `gorm:"type:numeric(18,4)" json:"total_credits"`
	GeneratedBy  *uuid.UUID      `gorm:"type:uuid;index" json:"generated_by,omitempty"`
	Scheduled    bool            `gorm:"not null;default:false" json:"scheduled"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RowFilter selects the submissions included in a report. From/To bound the
// submission date and ReviewedFrom/ReviewedTo the review time; upper bounds are exclusive.
type RowFilter struct {
	Status        string      `json:"status,omitempty"`
	FarmerID      *uuid.UUID  `json:"farmer_id,omitempty"`
	SubmissionIDs []uuid.UUID `json:"submission_ids,omitempty"`
	From          *time.Time  `json:"from,omitempty"`
	To            *time.Time  `json:"to,omitempty"`
	ReviewedFrom  *time.Time  `json:"reviewed_from,omitempty"`
	ReviewedTo    *time.Time  `json:"reviewed_to,omitempty"`
}

// GenerateRequest asks for a report to be built and stored
type GenerateRequest struct {
	Format string `json:"format" binding:"required"`
	RowFilter
}

// GeneratedReport is a stored report with a temporary download link
type GeneratedReport struct {
	Report      *Report   `json:"report"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
