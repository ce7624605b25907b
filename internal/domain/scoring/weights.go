// Package scoring computes explainable similarity scores between a ficha and
// a hallazgo.
package scoring

import "fmt"

// Default point values and tolerances.
const (
	defaultGenderPoints       = 200
	defaultAgeMaxPoints       = 150
	defaultAgeStepPoints      = 25
	defaultAgeToleranceYears  = 3
	defaultHeightPoints       = 100
	defaultHeightToleranceCm  = 5
	defaultWeightPoints       = 100
	defaultWeightToleranceKg  = 5
	defaultBuildPoints        = 50
	defaultStatePoints        = 50
	defaultMunicipalityPoints = 100
	defaultTraitPoints        = 50
	defaultGarmentPoints      = 30
	defaultExactNamePoints    = 500
	defaultGivenNamePoints    = 100
)

// Weights is the single table of point values and tolerances used by the
// comparators. Tags let the config layer load it directly.
type Weights struct {
	Gender int `koanf:"gender" json:"gender"`

	// Age awards AgeMax - diff*AgeStep while diff <= AgeTolerance.
	AgeMax       int `koanf:"age_max" json:"age_max"`
	AgeStep      int `koanf:"age_step" json:"age_step"`
	AgeTolerance int `koanf:"age_tolerance" json:"age_tolerance"`

	Height            int     `koanf:"height" json:"height"`
	HeightToleranceCm float64 `koanf:"height_tolerance_cm" json:"height_tolerance_cm"`
	Weight            int     `koanf:"weight" json:"weight"`
	WeightToleranceKg float64 `koanf:"weight_tolerance_kg" json:"weight_tolerance_kg"`
	Build             int     `koanf:"build" json:"build"`

	State        int `koanf:"state" json:"state"`
	Municipality int `koanf:"municipality" json:"municipality"`

	Trait   int `koanf:"trait" json:"trait"`
	Garment int `koanf:"garment" json:"garment"`

	ExactName int `koanf:"exact_name" json:"exact_name"`
	GivenName int `koanf:"given_name" json:"given_name"`
}

// DefaultWeights returns the stock weight table.
func DefaultWeights() Weights {
	return Weights{
		Gender:            defaultGenderPoints,
		AgeMax:            defaultAgeMaxPoints,
		AgeStep:           defaultAgeStepPoints,
		AgeTolerance:      defaultAgeToleranceYears,
		Height:            defaultHeightPoints,
		HeightToleranceCm: defaultHeightToleranceCm,
		Weight:            defaultWeightPoints,
		WeightToleranceKg: defaultWeightToleranceKg,
		Build:             defaultBuildPoints,
		State:             defaultStatePoints,
		Municipality:      defaultMunicipalityPoints,
		Trait:             defaultTraitPoints,
		Garment:           defaultGarmentPoints,
		ExactName:         defaultExactNamePoints,
		GivenName:         defaultGivenNamePoints,
	}
}

// Validate rejects tables that could award negative points.
func (w Weights) Validate() error {
	ints := map[string]int{
		"gender":        w.Gender,
		"age_max":       w.AgeMax,
		"age_step":      w.AgeStep,
		"age_tolerance": w.AgeTolerance,
		"height":        w.Height,
		"weight":        w.Weight,
		"build":         w.Build,
		"state":         w.State,
		"municipality":  w.Municipality,
		"trait":         w.Trait,
		"garment":       w.Garment,
		"exact_name":    w.ExactName,
		"given_name":    w.GivenName,
	}
	for name, v := range ints {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidWeights, name)
		}
	}
	if w.HeightToleranceCm < 0 || w.WeightToleranceKg < 0 {
		return fmt.Errorf("%w: tolerances must not be negative", ErrInvalidWeights)
	}
	if w.AgeStep*w.AgeTolerance > w.AgeMax {
		return fmt.Errorf("%w: age_step*age_tolerance exceeds age_max", ErrInvalidWeights)
	}
	return nil
}
