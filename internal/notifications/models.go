package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Event types published to live subscribers
const (
	EventSubmissionCreated  = "submission.created"
	EventSubmissionReviewed = "submission.reviewed"
	EventReportGenerated    = "report.generated"
)

// Event is a domain event broadcast to connected dashboards
type Event struct {
	Type         string    `json:"type"`
	SubmissionID uuid.UUID `json:"submission_id,omitempty"`
	FarmID       uuid.UUID `json:"farm_id,omitempty"`
	FarmerID     uuid.UUID `json:"farmer_id,omitempty"`
	FarmName     string    `json:"farm_name,omitempty"`
	Status       string    `json:"status,omitempty"`
	Credits      float64   `json:"credits,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	ReportURL    string    `json:"report_url,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Delivery channels for outbound messages
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Message is an outbound email or text message. Subject is unused for SMS.
type Message struct {
	Channel string
	To      string
	Subject string
	Body    string
}

// Recipient is the farmer a review outcome is sent to
type Recipient struct {
	Name     string
	Contact  string
	Language string
}
