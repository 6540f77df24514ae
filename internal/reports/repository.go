package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"carbonmrv/mrv-backend/internal/farms"
	"carbonmrv/mrv-backend/internal/reports/export"
)

var ErrNotFound = errors.New("report not found")

type Repository interface {
	Rows(ctx context.Context, filter RowFilter) ([]export.ReportRow, error)
	CreateReport(ctx context.Context, report *Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*Report, error)
	ListReports(ctx context.Context, limit int) ([]Report, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed report repository
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

type reportRowRecord struct {
	EstimateID      uuid.UUID
	FarmerName      string
	Contact         *string
	FarmName        string
	CropType        string
	LandSize        float64
	GPSLocation     datatypes.JSON
	SubmissionDate  time.Time
	Status          string
	BiomassEstimate float64
	MethaneEmission float64
	CarbonCredits   float64
	ConfidenceScore float64
}

func (r *gormRepository) Rows(ctx context.Context, filter RowFilter) ([]export.ReportRow, error) {
	var records []reportRowRecord
	if err := rowsQuery(r.db.WithContext(ctx), filter).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}

	rows := make([]export.ReportRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.toRow())
	}
	return rows, nil
}

func rowsQuery(db *gorm.DB, filter RowFilter) *gorm.DB {
	query := db.
		Table("submissions AS s").
		Select(`e.id AS estimate_id,
			fr.name AS farmer_name,
			fr.contact AS contact,
			f.name AS farm_name,
			f.crop_type AS crop_type,
			f.land_size AS land_size,
			f.gps_location AS gps_location,
			s.submission_date AS submission_date,
			s.status AS status,
			e.biomass_estimate AS biomass_estimate,
			e.methane_emission AS methane_emission,
			e.carbon_credits AS carbon_credits,
			e.confidence_score AS confidence_score`).
		Joins("JOIN farms AS f ON f.id = s.farm_id").
		Joins("JOIN farmers AS fr ON fr.id = s.farmer_id").
		Joins("JOIN carbon_estimates AS e ON e.submission_id = s.id")

	if filter.Status != "" {
		query = query.Where("s.status = ?", filter.Status)
	}
	if filter.FarmerID != nil {
		query = query.Where("s.farmer_id = ?", *filter.FarmerID)
	}
	if filter.From != nil {
		query = query.Where("s.submission_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("s.submission_date < ?", *filter.To)
	}
	if len(filter.SubmissionIDs) > 0 {
		query = query.Where("s.id IN ?", filter.SubmissionIDs)
	}
	if filter.ReviewedFrom != nil {
		query = query.Where("s.reviewed_at >= ?", *filter.ReviewedFrom)
	}
	if filter.ReviewedTo != nil {
		query = query.Where("s.reviewed_at < ?", *filter.ReviewedTo)
	}

	return query.Order("s.submission_date ASC")
}

func (rec reportRowRecord) toRow() export.ReportRow {
	row := export.ReportRow{
		EstimateID:      rec.EstimateID,
		FarmerName:      rec.FarmerName,
		FarmName:        rec.FarmName,
		CropType:        rec.CropType,
		LandSize:        rec.LandSize,
		SubmissionDate:  rec.SubmissionDate,
		Status:          rec.Status,
		BiomassEstimate: rec.BiomassEstimate,
		MethaneEmission: rec.MethaneEmission,
		CarbonCredits:   rec.CarbonCredits,
		ConfidenceScore: rec.ConfidenceScore,
	}
	if rec.Contact != nil {
		row.Contact = *rec.Contact
	}
	if len(rec.GPSLocation) > 0 {
		var loc *farms.GPSLocation
		if err := json.Unmarshal(rec.GPSLocation, &loc); err == nil && loc != nil {
			lat, lon := loc.Y, loc.X
			row.Latitude, row.Longitude = &lat, &lon
		}
	}
	return row
}

func (r *gormRepository) CreateReport(ctx context.Context, report *Report) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *gormRepository) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	var report Report
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

func (r *gormRepository) ListReports(ctx context.Context, limit int) ([]Report, error) {
	var reports []Report
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}
