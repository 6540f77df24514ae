// Package estimation converts farm attributes into an estimated carbon credit amount
// using simplified IPCC emission and sequestration factors.
package estimation

import (
	"math"

	"go.uber.org/zap"
)

// Estimator computes carbon credit estimates. It holds no mutable state and is safe
// for concurrent use.
type Estimator struct {
	logger *zap.Logger
}

// NewEstimator creates an estimator. The logger receives warnings when inputs fall
// back to default factors; nil disables them.
func NewEstimator(logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{logger: logger}
}

var defaultEstimator = NewEstimator(nil)

// Estimate runs the estimator without a warning hook
func Estimate(input EstimationInput) (*EstimationResult, error) {
	return defaultEstimator.Estimate(input)
}

// Estimate performs the carbon credit estimation:
//  1. Biomass sequestration = land × crop rate (default 1.5)
//  2. Soil sequestration = land × 0.5, × 1.5 with agroforestry methods
//  3. Methane reduction (rice only) = land × (baseline − practice) × 365 × GWP / 1000
//  4. NDVI adjusts biomass by clamp(ndvi × 2, 0.5, 1.5) and raises confidence
//  5. Credits = max(0, biomass + soil + methane)
func (e *Estimator) Estimate(input EstimationInput) (*EstimationResult, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}

	land := input.LandSizeHectares

	rate, known := SequestrationRate(input.CropType)
	if !known && !IsKnownCropType(input.CropType) {
		e.logger.Warn("Unrecognized crop type, using default sequestration rate",
			zap.String("crop_type", input.CropType),
			zap.Float64("rate", rate))
	}
	biomass := land * rate

	soil := land * SoilOrganicMatterRate
	if input.Practices != nil && len(input.Practices.AgroforestryMethods) > 0 {
		soil *= AgroforestrySoilMultiplier
	}

	methane := e.methaneReduction(input)

	confidence := BaseConfidence
	adjustment := 1.0
	if ndvi := input.ndvi(); ndvi != nil {
		adjustment = clamp(*ndvi*NDVIScale, MinNDVIAdjustment, MaxNDVIAdjustment)
		confidence = math.Min(MaxConfidence, confidence+RemoteSensingConfidenceBoost)
	}
	biomass *= adjustment

	breakdown := Breakdown{
		BiomassCarbonSequestration: biomass,
		SoilCarbonSequestration:    soil,
		MethaneReduction:           methane,
	}

	return &EstimationResult{
		BiomassEstimate:          biomass,
		MethaneEmissionReduction: methane,
		CarbonCredits:            math.Max(0, breakdown.Total()),
		ConfidenceScore:          confidence,
		Breakdown:                breakdown,
	}, nil
}

// methaneReduction is non-zero only for rice with a reported water management practice.
// A practice factor above the baseline yields a negative value; only the aggregate is clamped.
func (e *Estimator) methaneReduction(input EstimationInput) float64 {
	if input.CropType != CropRice || input.Practices == nil || input.Practices.WaterManagement == "" {
		return 0
	}

	practice := input.Practices.WaterManagement
	factor, known := RiceEmissionFactor(practice)
	if !known {
		e.logger.Warn("Unrecognized water management practice, assuming continuous flooding",
			zap.String("water_management", practice))
	}

	return input.LandSizeHectares * (BaselineRiceEmission - factor) * DaysPerYear * MethaneGWP / KgPerTonne
}

func (in EstimationInput) ndvi() *float64 {
	if in.RemoteSensing == nil {
		return nil
	}
	return in.RemoteSensing.NDVI
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
