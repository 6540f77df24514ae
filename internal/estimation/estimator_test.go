package estimation

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const tolerance = 1e-9

func ptr(v float64) *float64 { return &v }

func TestEstimate_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		input      EstimationInput
		biomass    float64
		soil       float64
		methane    float64
		credits    float64
		confidence float64
	}{
		{
			name: "agroforestry with tree plantation",
			input: EstimationInput{
				CropType:         CropAgroforestry,
				LandSizeHectares: 10,
				Practices:        &Practices{AgroforestryMethods: []string{"tree_plantation"}},
			},
			biomass:    32,
			soil:       7.5,
			methane:    0,
			credits:    39.5,
			confidence: 0.7,
		},
		{
			name: "rice with alternate wetting and drying",
			input: EstimationInput{
				CropType:         CropRice,
				LandSizeHectares: 5,
				Practices:        &Practices{WaterManagement: WaterAlternateWettingDrying},
			},
			biomass:    7.5,
			soil:       2.5,
			methane:    59.3125,
			credits:    69.3125,
			confidence: 0.7,
		},
		{
			name: "rice with ndvi and no practices",
			input: EstimationInput{
				CropType:         CropRice,
				LandSizeHectares: 1,
				RemoteSensing:    &RemoteSensing{NDVI: ptr(0.8)},
			},
			biomass:    2.25,
			soil:       0.5,
			methane:    0,
			credits:    2.75,
			confidence: 0.9,
		},
		{
			name: "unrecognized crop type uses default rate",
			input: EstimationInput{
				CropType:         "quinoa",
				LandSizeHectares: 2,
			},
			biomass:    3.0,
			soil:       1.0,
			methane:    0,
			credits:    4.0,
			confidence: 0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Estimate(tt.input)
			require.NoError(t, err)

			assert.InDelta(t, tt.biomass, result.BiomassEstimate, tolerance)
			assert.InDelta(t, tt.biomass, result.Breakdown.BiomassCarbonSequestration, tolerance)
			assert.InDelta(t, tt.soil, result.Breakdown.SoilCarbonSequestration, tolerance)
			assert.InDelta(t, tt.methane, result.MethaneEmissionReduction, tolerance)
			assert.InDelta(t, tt.methane, result.Breakdown.MethaneReduction, tolerance)
			assert.InDelta(t, tt.credits, result.CarbonCredits, tolerance)
			assert.InDelta(t, tt.confidence, result.ConfidenceScore, tolerance)
		})
	}
}

func TestEstimate_BreakdownSumsToCredits(t *testing.T) {
	inputs := []EstimationInput{
		{CropType: CropMixed, LandSizeHectares: 3.3},
		{CropType: CropVegetables, LandSizeHectares: 0.25, RemoteSensing: &RemoteSensing{NDVI: ptr(0.1)}},
		{CropType: CropRice, LandSizeHectares: 12, Practices: &Practices{WaterManagement: WaterRainfed}},
		{CropType: CropAgroforestry, LandSizeHectares: 7, Practices: &Practices{AgroforestryMethods: []string{"alley_cropping", "silvopasture"}}},
	}

	for _, input := range inputs {
		result, err := Estimate(input)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.CarbonCredits, 0.0)
		assert.InDelta(t, result.Breakdown.Total(), result.CarbonCredits, tolerance)
	}
}

func TestEstimate_ConfidenceScore(t *testing.T) {
	without, err := Estimate(EstimationInput{CropType: CropRice, LandSizeHectares: 1})
	require.NoError(t, err)
	assert.Equal(t, BaseConfidence, without.ConfidenceScore)

	// Empty remote-sensing record without NDVI does not boost confidence.
	empty, err := Estimate(EstimationInput{
		CropType:         CropRice,
		LandSizeHectares: 1,
		RemoteSensing:    &RemoteSensing{BiomassIndex: ptr(0.5), SoilMoisture: ptr(0.4)},
	})
	require.NoError(t, err)
	assert.Equal(t, BaseConfidence, empty.ConfidenceScore)

	for _, ndvi := range []float64{-1, 0, 0.3, 0.95, 1} {
		with, err := Estimate(EstimationInput{
			CropType:         CropRice,
			LandSizeHectares: 1,
			RemoteSensing:    &RemoteSensing{NDVI: ptr(ndvi)},
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.9, with.ConfidenceScore, tolerance, "ndvi %v", ndvi)
		assert.LessOrEqual(t, with.ConfidenceScore, MaxConfidence)
	}
}

func TestEstimate_NDVIAdjustmentIsClamped(t *testing.T) {
	tests := []struct {
		ndvi       float64
		adjustment float64
	}{
		{ndvi: -0.5, adjustment: 0.5},
		{ndvi: 0.1, adjustment: 0.5},
		{ndvi: 0.5, adjustment: 1.0},
		{ndvi: 0.6, adjustment: 1.2},
		{ndvi: 0.9, adjustment: 1.5},
	}

	for _, tt := range tests {
		result, err := Estimate(EstimationInput{
			CropType:         CropAgroforestry,
			LandSizeHectares: 1,
			RemoteSensing:    &RemoteSensing{NDVI: ptr(tt.ndvi)},
		})
		require.NoError(t, err)
		assert.InDelta(t, 3.2*tt.adjustment, result.BiomassEstimate, tolerance, "ndvi %v", tt.ndvi)
	}
}

func TestEstimate_AgroforestryMultiplier(t *testing.T) {
	base := EstimationInput{CropType: CropMixed, LandSizeHectares: 4.2}
	withMethods := base
	withMethods.Practices = &Practices{AgroforestryMethods: []string{"windbreaks"}}
	emptyMethods := base
	emptyMethods.Practices = &Practices{AgroforestryMethods: []string{}}

	plain, err := Estimate(base)
	require.NoError(t, err)
	boosted, err := Estimate(withMethods)
	require.NoError(t, err)
	empty, err := Estimate(emptyMethods)
	require.NoError(t, err)

	assert.InDelta(t, plain.Breakdown.SoilCarbonSequestration*1.5, boosted.Breakdown.SoilCarbonSequestration, tolerance)
	assert.Equal(t, plain.Breakdown.SoilCarbonSequestration, empty.Breakdown.SoilCarbonSequestration)
	assert.Equal(t, plain.BiomassEstimate, boosted.BiomassEstimate)
}

func TestEstimate_MethaneReduction(t *testing.T) {
	estimateWith := func(practice string, crop string) float64 {
		result, err := Estimate(EstimationInput{
			CropType:         crop,
			LandSizeHectares: 3,
			Practices:        &Practices{WaterManagement: practice},
		})
		require.NoError(t, err)
		return result.MethaneEmissionReduction
	}

	flooding := estimateWith(WaterContinuousFlooding, CropRice)
	awd := estimateWith(WaterAlternateWettingDrying, CropRice)
	rainfed := estimateWith(WaterRainfed, CropRice)

	assert.Equal(t, 0.0, flooding)
	assert.Greater(t, awd, flooding)
	assert.Greater(t, rainfed, awd)

	assert.Equal(t, 0.0, estimateWith("flood_and_pray", CropRice), "unknown practice defaults to baseline")
	assert.Equal(t, 0.0, estimateWith(WaterAlternateWettingDrying, CropAgroforestry), "methane applies to rice only")
}

func TestEstimate_CreditsClampedAtZero(t *testing.T) {
	// A practice factor above the baseline drives the methane term negative.
	riceEmissionFactors["deep_flooding"] = 10
	defer delete(riceEmissionFactors, "deep_flooding")

	result, err := Estimate(EstimationInput{
		CropType:         CropRice,
		LandSizeHectares: 1,
		Practices:        &Practices{WaterManagement: "deep_flooding"},
	})
	require.NoError(t, err)

	assert.Less(t, result.Breakdown.MethaneReduction, 0.0)
	assert.Less(t, result.Breakdown.Total(), 0.0)
	assert.Equal(t, 0.0, result.CarbonCredits)
	assert.Equal(t, result.Breakdown.MethaneReduction, result.MethaneEmissionReduction)
}

func TestEstimate_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input EstimationInput
	}{
		{name: "zero land", input: EstimationInput{CropType: CropRice, LandSizeHectares: 0}},
		{name: "negative land", input: EstimationInput{CropType: CropRice, LandSizeHectares: -2}},
		{name: "nan land", input: EstimationInput{CropType: CropRice, LandSizeHectares: math.NaN()}},
		{name: "infinite land", input: EstimationInput{CropType: CropRice, LandSizeHectares: math.Inf(1)}},
		{name: "nan ndvi", input: EstimationInput{CropType: CropRice, LandSizeHectares: 1, RemoteSensing: &RemoteSensing{NDVI: ptr(math.NaN())}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Estimate(tt.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Nil(t, result)
		})
	}
}

func TestEstimator_WarnsOnFallbacks(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	estimator := NewEstimator(zap.New(core))

	_, err := estimator.Estimate(EstimationInput{CropType: "quinoa", LandSizeHectares: 1})
	require.NoError(t, err)
	_, err = estimator.Estimate(EstimationInput{
		CropType:         CropRice,
		LandSizeHectares: 1,
		Practices:        &Practices{WaterManagement: "terraces"},
	})
	require.NoError(t, err)

	// Known crop types without a dedicated rate do not warn.
	_, err = estimator.Estimate(EstimationInput{CropType: CropVegetables, LandSizeHectares: 1})
	require.NoError(t, err)

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "quinoa", entries[0].ContextMap()["crop_type"])
	assert.Equal(t, "terraces", entries[1].ContextMap()["water_management"])
}

func TestEstimate_ConcurrentUse(t *testing.T) {
	input := EstimationInput{
		CropType:         CropRice,
		LandSizeHectares: 5,
		Practices:        &Practices{WaterManagement: WaterAlternateWettingDrying},
	}
	want, err := Estimate(input)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*EstimationResult, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Estimate(input)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
