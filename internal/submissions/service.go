package submissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"carbonmrv/mrv-backend/internal/auth"
	"carbonmrv/mrv-backend/internal/estimation"
	"carbonmrv/mrv-backend/internal/farmers"
	"carbonmrv/mrv-backend/internal/farms"
	"carbonmrv/mrv-backend/internal/notifications"
	"carbonmrv/mrv-backend/internal/remotesensing"
	"carbonmrv/mrv-backend/pkg/workflows"
)

var (
	ErrForbidden         = errors.New("not allowed to access this submission")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidDecision   = errors.New("decision must be verified or rejected")
)

const (
	defaultPageSize      = 20
	maxPageSize          = 100
	mapFeatureLimit      = 1000
	remoteSensingTimeout = 10 * time.Second
)

// FarmReader loads farms on behalf of a caller
type FarmReader interface {
	GetFarm(ctx context.Context, principal *auth.Principal, id uuid.UUID) (*farms.Farm, error)
}

// FarmerReader loads farmer profiles
type FarmerReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*farmers.Farmer, error)
}

// EventSink receives submission lifecycle events
type EventSink interface {
	Publish(event notifications.Event)
	SubmissionReviewed(ctx context.Context, event notifications.Event, recipient notifications.Recipient)
}

// Service runs the submission and verification workflow
type Service struct {
	repo         Repository
	farms        FarmReader
	farmers      FarmerReader
	provider     remotesensing.Provider
	events       EventSink
	estimator    *estimation.Estimator
	stateMachine *workflows.StateMachine
	onChange     []func(farmerID uuid.UUID)
	logger       *zap.Logger
}

// NewService creates a submission service. A nil provider disables remote sensing.
func NewService(
	repo Repository,
	farmReader FarmReader,
	farmerReader FarmerReader,
	provider remotesensing.Provider,
	events EventSink,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:      repo,
		farms:     farmReader,
		farmers:   farmerReader,
		provider:  provider,
		events:    events,
		estimator: estimation.NewEstimator(logger),
		stateMachine: workflows.NewStateMachine(map[string][]string{
			string(StatusPending): {string(StatusVerified), string(StatusRejected)},
		}),
		logger: logger,
	}
}

// OnChange registers a callback run after a farmer's submissions change
func (s *Service) OnChange(fn func(farmerID uuid.UUID)) {
	s.onChange = append(s.onChange, fn)
}

func (s *Service) changed(farmerID uuid.UUID) {
	for _, fn := range s.onChange {
		fn(farmerID)
	}
}

// Submit estimates a farm's credits and files a pending submission
func (s *Service) Submit(ctx context.Context, principal *auth.Principal, req SubmitRequest) (*Submission, error) {
	farm, err := s.farms.GetFarm(ctx, principal, req.FarmID)
	if err != nil {
		return nil, err
	}
	if farm.FarmerID != principal.FarmerID {
		return nil, ErrForbidden
	}

	input := farm.EstimationInput()
	if req.Practices != nil {
		practices := *req.Practices
		input.Practices = &practices
	}

	var signals estimation.RemoteSensing
	if req.UseRemoteSensing {
		if data := s.fetchRemoteSensing(ctx, farm); data != nil {
			signals = *data
			input.RemoteSensing = data
		}
	}

	result, err := s.estimator.Estimate(input)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate farm %s: %w", farm.ID, err)
	}

	input.RemoteSensing = nil
	now := time.Now()
	submission := &Submission{
		ID:                uuid.New(),
		FarmID:            farm.ID,
		FarmerID:          farm.FarmerID,
		SubmissionDate:    now,
		RawData:           datatypes.NewJSONType(input),
		RemoteSensingData: datatypes.NewJSONType(signals),
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	estimate := NewCarbonEstimate(submission.ID, result)

	if err := s.repo.CreateWithEstimate(ctx, submission, estimate); err != nil {
		return nil, err
	}
	submission.Farm = farm
	submission.Estimate = estimate

	s.logger.Info("Submission created",
		zap.String("submission_id", submission.ID.String()),
		zap.String("farm_id", farm.ID.String()),
		zap.Float64("carbon_credits", estimate.CarbonCredits),
		zap.Float64("confidence", estimate.ConfidenceScore))

	s.events.Publish(notifications.Event{
		Type:         notifications.EventSubmissionCreated,
		SubmissionID: submission.ID,
		FarmID:       farm.ID,
		FarmerID:     farm.FarmerID,
		FarmName:     farm.Name,
		Status:       string(submission.Status),
		Credits:      estimate.CarbonCredits,
		Timestamp:    now,
	})
	s.changed(farm.FarmerID)

	return submission, nil
}

// fetchRemoteSensing returns nil when signals cannot be obtained; estimation then
// proceeds at base confidence.
func (s *Service) fetchRemoteSensing(ctx context.Context, farm *farms.Farm) *estimation.RemoteSensing {
	if s.provider == nil || farm.GPSLocation == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, remoteSensingTimeout)
	defer cancel()

	data, err := s.provider.Fetch(ctx, farm.GPSLocation.Point())
	if err != nil {
		s.logger.Warn("Remote sensing unavailable, estimating without it",
			zap.String("farm_id", farm.ID.String()),
			zap.Error(err))
		return nil
	}
	return data
}

// Review records a verifier's decision on a pending submission
func (s *Service) Review(ctx context.Context, principal *auth.Principal, id uuid.UUID, req ReviewRequest) (*Submission, error) {
	if !principal.Role.CanReview() {
		return nil, ErrForbidden
	}
	if req.Decision != StatusVerified && req.Decision != StatusRejected {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidDecision, req.Decision)
	}

	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.FarmerID == principal.FarmerID {
		return nil, fmt.Errorf("%w: cannot review your own submission", ErrForbidden)
	}
	if !s.stateMachine.CanTransition(string(submission.Status), string(req.Decision)) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, submission.Status, req.Decision)
	}

	from := submission.Status
	now := time.Now()
	reviewer := principal.FarmerID
	submission.Status = req.Decision
	submission.ReviewedBy = &reviewer
	submission.ReviewNotes = req.Notes
	submission.ReviewedAt = &now
	submission.UpdatedAt = now

	change := &StatusChange{
		ID:           uuid.New(),
		SubmissionID: submission.ID,
		FromStatus:   from,
		ToStatus:     req.Decision,
		ChangedBy:    reviewer,
		Notes:        req.Notes,
		ChangedAt:    now,
	}
	if err := s.repo.UpdateReview(ctx, submission, from, change); err != nil {
		return nil, err
	}

	s.logger.Info("Submission reviewed",
		zap.String("submission_id", submission.ID.String()),
		zap.String("status", string(submission.Status)),
		zap.String("reviewer_id", reviewer.String()))

	s.notifyReviewed(ctx, submission)
	s.changed(submission.FarmerID)

	return submission, nil
}

func (s *Service) notifyReviewed(ctx context.Context, submission *Submission) {
	event := notifications.Event{
		SubmissionID: submission.ID,
		FarmID:       submission.FarmID,
		FarmerID:     submission.FarmerID,
		Status:       string(submission.Status),
		Notes:        submission.ReviewNotes,
		Timestamp:    submission.UpdatedAt,
	}
	if submission.Farm != nil {
		event.FarmName = submission.Farm.Name
	}
	if submission.Estimate != nil {
		event.Credits = submission.Estimate.CarbonCredits
	}

	farmer, err := s.farmers.GetByID(ctx, submission.FarmerID)
	if err != nil {
		s.logger.Warn("Failed to load farmer for review notification",
			zap.String("farmer_id", submission.FarmerID.String()),
			zap.Error(err))
		event.Type = notifications.EventSubmissionReviewed
		s.events.Publish(event)
		return
	}

	recipient := notifications.Recipient{Name: farmer.Name, Language: farmer.Language}
	if farmer.Contact != nil {
		recipient.Contact = *farmer.Contact
	}
	s.events.SubmissionReviewed(ctx, event, recipient)
}

// Reestimate recomputes the estimate of a pending submission from the farm's current
// attributes and the remote sensing signals captured at submission time.
func (s *Service) Reestimate(ctx context.Context, principal *auth.Principal, id uuid.UUID) (*Submission, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.FarmerID != principal.FarmerID && !principal.Role.CanReview() {
		return nil, ErrForbidden
	}
	if submission.Status != StatusPending {
		return nil, fmt.Errorf("%w: %s submissions cannot be re-estimated", ErrInvalidTransition, submission.Status)
	}

	input := submission.RawData.Data()
	if submission.Farm != nil {
		practices := input.Practices
		input = submission.Farm.EstimationInput()
		if practices != nil {
			input.Practices = practices
		}
	}

	signals := submission.RemoteSensingData.Data()
	if signals.NDVI != nil || signals.BiomassIndex != nil || signals.SoilMoisture != nil {
		input.RemoteSensing = &signals
	}

	result, err := s.estimator.Estimate(input)
	if err != nil {
		return nil, fmt.Errorf("failed to re-estimate submission %s: %w", submission.ID, err)
	}

	input.RemoteSensing = nil
	submission.RawData = datatypes.NewJSONType(input)
	submission.UpdatedAt = time.Now()
	estimate := NewCarbonEstimate(submission.ID, result)

	if err := s.repo.ReplaceEstimate(ctx, submission, estimate); err != nil {
		return nil, err
	}
	submission.Estimate = estimate

	s.logger.Info("Submission re-estimated",
		zap.String("submission_id", submission.ID.String()),
		zap.Float64("carbon_credits", estimate.CarbonCredits))
	s.changed(submission.FarmerID)

	return submission, nil
}

// GetSubmission returns a submission with its estimate
func (s *Service) GetSubmission(ctx context.Context, principal *auth.Principal, id uuid.UUID) (*Submission, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.FarmerID != principal.FarmerID && !principal.Role.CanReview() {
		return nil, ErrForbidden
	}
	return submission, nil
}

// History returns the status changes of a submission
func (s *Service) History(ctx context.Context, principal *auth.Principal, id uuid.UUID) ([]StatusChange, error) {
	if _, err := s.GetSubmission(ctx, principal, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// ListSubmissions lists the caller's submissions; verifiers and admins see all
func (s *Service) ListSubmissions(ctx context.Context, principal *auth.Principal, filter SubmissionFilter) (*SubmissionList, error) {
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

	submissions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &SubmissionList{Submissions: submissions, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// Map returns located submissions as a GeoJSON feature collection
func (s *Service) Map(ctx context.Context, principal *auth.Principal, filter SubmissionFilter) (*geojson.FeatureCollection, error) {
	if !principal.Role.CanReview() {
		return nil, ErrForbidden
	}

	filter.Page = 1
	filter.PageSize = mapFeatureLimit
	submissions, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, submission := range submissions {
		if submission.Farm == nil || submission.Farm.GPSLocation == nil {
			continue
		}

		feature := geojson.NewFeature(submission.Farm.GPSLocation.Point())
		feature.ID = submission.ID.String()
		feature.Properties["submission_id"] = submission.ID.String()
		feature.Properties["farm_id"] = submission.FarmID.String()
		feature.Properties["farm_name"] = submission.Farm.Name
		feature.Properties["crop_type"] = submission.Farm.CropType
		feature.Properties["land_size"] = submission.Farm.LandSize
		feature.Properties["status"] = string(submission.Status)
		if submission.Estimate != nil {
			feature.Properties["carbon_credits"] = submission.Estimate.CarbonCredits
			feature.Properties["confidence_score"] = submission.Estimate.ConfidenceScore
		}
		fc.Append(feature)
	}
	return fc, nil
}
