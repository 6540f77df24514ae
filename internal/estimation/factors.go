package estimation

// IPCC-style factors. The tables are read-only after package init.
const (
	// DefaultSequestrationRate applies to crop types without a dedicated rate (tonnes CO2/ha/year).
	DefaultSequestrationRate = 1.5

	// SoilOrganicMatterRate is the base soil sequestration rate (tonnes CO2/ha/year).
	SoilOrganicMatterRate = 0.5

	// AgroforestrySoilMultiplier boosts soil sequestration when any agroforestry method is practiced.
	AgroforestrySoilMultiplier = 1.5

	// BaselineRiceEmission is the continuous flooding emission factor (kg CH4/ha/day).
	BaselineRiceEmission = 2.5

	// MethaneGWP converts CH4 mass to CO2-equivalent (100-year horizon).
	MethaneGWP = 25.0

	// DaysPerYear annualises the daily methane emission factor.
	DaysPerYear = 365.0

	// KgPerTonne converts kg CO2e to tonnes CO2e.
	KgPerTonne = 1000.0

	// BaseConfidence is the score reported without remote-sensing input.
	BaseConfidence = 0.7

	// RemoteSensingConfidenceBoost is added when NDVI is available.
	RemoteSensingConfidenceBoost = 0.2

	// MaxConfidence caps the confidence score.
	MaxConfidence = 0.95

	// NDVI adjustment = clamp(ndvi * NDVIScale, MinNDVIAdjustment, MaxNDVIAdjustment)
	NDVIScale         = 2.0
	MinNDVIAdjustment = 0.5
	MaxNDVIAdjustment = 1.5
)

// Crop types with a known sequestration rate
const (
	CropAgroforestry = "agroforestry"
	CropRice         = "rice"
	CropMixed        = "mixed_crops"
	CropVegetables   = "vegetables"
)

// Water management practices for rice
const (
	WaterContinuousFlooding     = "continuous_flooding"
	WaterAlternateWettingDrying = "alternate_wetting_drying"
	WaterRainfed                = "rainfed"
)

// sequestrationRates is keyed by crop type (tonnes CO2/ha/year). Entries that are not
// crop types (rice_improved, soil_organic_matter) are kept for parity with the published
// rate sheet; plain "rice" therefore uses the default rate.
var sequestrationRates = map[string]float64{
	CropAgroforestry:      3.2,
	"rice_improved":       1.8,
	"soil_organic_matter": SoilOrganicMatterRate,
}

// riceEmissionFactors in kg CH4/ha/day
var riceEmissionFactors = map[string]float64{
	WaterContinuousFlooding:     BaselineRiceEmission,
	WaterAlternateWettingDrying: 1.2,
	WaterRainfed:                0.8,
}

// SequestrationRate returns the biomass sequestration rate for a crop type and whether
// the crop type was recognized.
func SequestrationRate(cropType string) (float64, bool) {
	if rate, ok := sequestrationRates[cropType]; ok {
		return rate, true
	}
	return DefaultSequestrationRate, false
}

// RiceEmissionFactor returns the methane emission factor for a water management practice.
// Unknown practices fall back to the baseline, which yields zero reduction.
func RiceEmissionFactor(practice string) (float64, bool) {
	if factor, ok := riceEmissionFactors[practice]; ok {
		return factor, true
	}
	return BaselineRiceEmission, false
}

// KnownWaterPractices lists the recognized water management practices
func KnownWaterPractices() []string {
	return []string{WaterContinuousFlooding, WaterAlternateWettingDrying, WaterRainfed}
}
