package estimation

// Practices describes the farming practices reported for a farm
type Practices struct {
	WaterManagement     string   `json:"water_management,omitempty"`
	FertilizerUsage     string   `json:"fertilizer_usage,omitempty"`
	AgroforestryMethods []string `json:"agroforestry_methods,omitempty"`
	RiceCultivation     string   `json:"rice_cultivation,omitempty"`
}

// RemoteSensing holds optional vegetation signals for a farm location
type RemoteSensing struct {
	NDVI         *float64 `json:"ndvi,omitempty"`
	BiomassIndex *float64 `json:"biomass_index,omitempty"`
	SoilMoisture *float64 `json:"soil_moisture,omitempty"`
}

// EstimationInput is the set of farm attributes fed to the estimator
type EstimationInput struct {
	CropType         string         `json:"crop_type"`
	LandSizeHectares float64        `json:"land_size"`
	Practices        *Practices     `json:"practices,omitempty"`
	RemoteSensing    *RemoteSensing `json:"remote_sensing_data,omitempty"`
}

// Breakdown holds the raw, unclamped components of an estimate
type Breakdown struct {
	BiomassCarbonSequestration float64 `json:"biomass_carbon_sequestration"`
	SoilCarbonSequestration    float64 `json:"soil_carbon_sequestration"`
	MethaneReduction           float64 `json:"methane_reduction"`
}

// Total returns the unclamped sum of all components
func (b Breakdown) Total() float64 {
	return b.BiomassCarbonSequestration + b.SoilCarbonSequestration + b.MethaneReduction
}

// EstimationResult is the outcome of a single estimation
type EstimationResult struct {
	BiomassEstimate          float64   `json:"biomass_estimate"` // tonnes CO2
	MethaneEmissionReduction float64   `json:"methane_emission"` // tonnes CO2e
	CarbonCredits            float64   `json:"carbon_credits"`   // tonnes CO2e, never negative
	ConfidenceScore          float64   `json:"confidence_score"` // 0-1
	Breakdown                Breakdown `json:"breakdown"`
}
