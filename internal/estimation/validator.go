package estimation

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned when an estimation input cannot be computed
var ErrInvalidInput = errors.New("invalid estimation input")

var knownCropTypes = map[string]struct{}{
	CropAgroforestry: {},
	CropRice:         {},
	CropMixed:        {},
	CropVegetables:   {},
}

// IsKnownCropType reports whether the crop type is one of the supported enumerations
func IsKnownCropType(cropType string) bool {
	_, ok := knownCropTypes[cropType]
	return ok
}

// ValidateInput checks the numeric fields of an input. Unknown enum values are not
// errors; they fall back to default factors.
func ValidateInput(input EstimationInput) error {
	land := input.LandSizeHectares
	if math.IsNaN(land) || math.IsInf(land, 0) {
		return fmt.Errorf("%w: land size must be a finite number", ErrInvalidInput)
	}
	if land <= 0 {
		return fmt.Errorf("%w: land size must be positive, got %g", ErrInvalidInput, land)
	}

	if ndvi := input.ndvi(); ndvi != nil {
		if math.IsNaN(*ndvi) || math.IsInf(*ndvi, 0) {
			return fmt.Errorf("%w: ndvi must be a finite number", ErrInvalidInput)
		}
	}

	return nil
}
