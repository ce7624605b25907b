// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Location is the state/municipality pair attached to a record.
type Location struct {
	State        string `json:"state,omitempty"`
	Municipality string `json:"municipality,omitempty"`
}

// PhysicalTrait is a distinguishing mark listed on a ficha.
type PhysicalTrait struct {
	BodyPartID int    `json:"body_part_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// ObservedTrait is a distinguishing mark described on a hallazgo.
type ObservedTrait struct {
	BodyPartID  int    `json:"body_part_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// ClothingItem is one garment. GarmentTypeID 0 means unknown.
type ClothingItem struct {
	GarmentTypeID int    `json:"garment_type_id,omitempty"`
	Color         string `json:"color,omitempty"`
}

// MissingPersonRecord is a ficha: a filed report describing a missing person.
//
// Numeric attributes are optional; nil means "not reported".
type MissingPersonRecord struct {
	ID                    string          `json:"id"`
	GivenName             string          `json:"given_name,omitempty"`
	PaternalSurname       string          `json:"paternal_surname,omitempty"`
	MaternalSurname       string          `json:"maternal_surname,omitempty"`
	Gender                string          `json:"gender,omitempty"`
	EstimatedAge          *int            `json:"estimated_age,omitempty"`
	HeightCm              *float64        `json:"height_cm,omitempty"`
	WeightKg              *float64        `json:"weight_kg,omitempty"`
	BodyBuild             string          `json:"body_build,omitempty"`
	DisappearanceLocation Location        `json:"disappearance_location"`
	PhysicalTraits        []PhysicalTrait `json:"physical_traits,omitempty"`
	ClothingItems         []ClothingItem  `json:"clothing_items,omitempty"`
}

// FoundPersonRecord is a hallazgo: a filed report describing a found or
// unidentified person.
type FoundPersonRecord struct {
	ID              string          `json:"id"`
	GivenName       string          `json:"given_name,omitempty"`
	PaternalSurname string          `json:"paternal_surname,omitempty"`
	MaternalSurname string          `json:"maternal_surname,omitempty"`
	Gender          string          `json:"gender,omitempty"`
	EstimatedAge    *int            `json:"estimated_age,omitempty"`
	HeightCm        *float64        `json:"height_cm,omitempty"`
	WeightKg        *float64        `json:"weight_kg,omitempty"`
	BodyBuild       string          `json:"body_build,omitempty"`
	FoundLocation   Location        `json:"found_location"`
	Traits          []ObservedTrait `json:"traits,omitempty"`
	ClothingItems   []ClothingItem  `json:"clothing_items,omitempty"`
}

// Validate checks the invariants the ingest boundary enforces.
func (r *MissingPersonRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil ficha", ErrInvalidInput)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing ficha id", ErrInvalidInput)
	}
	return validateMeasures(r.EstimatedAge, r.HeightCm, r.WeightKg)
}

// Validate checks the invariants the ingest boundary enforces.
func (r *FoundPersonRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil hallazgo", ErrInvalidInput)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing hallazgo id", ErrInvalidInput)
	}
	return validateMeasures(r.EstimatedAge, r.HeightCm, r.WeightKg)
}

// validateMeasures requires each present measure to be strictly positive.
func validateMeasures(age *int, height, weight *float64) error {
	switch {
	case age != nil && *age <= 0:
		return fmt.Errorf("%w: estimated_age must be positive, got %d", ErrInvalidInput, *age)
	case height != nil && !(*height > 0):
		return fmt.Errorf("%w: height_cm must be positive, got %v", ErrInvalidInput, *height)
	case weight != nil && !(*weight > 0):
		return fmt.Errorf("%w: weight_kg must be positive, got %v", ErrInvalidInput, *weight)
	}
	return nil
}

// Int returns a pointer to v. Handy for literals of optional fields.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Clone returns a deep copy of r.
func (r *MissingPersonRecord) Clone() *MissingPersonRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.EstimatedAge = cloneInt(r.EstimatedAge)
	out.HeightCm = cloneFloat(r.HeightCm)
	out.WeightKg = cloneFloat(r.WeightKg)
	out.PhysicalTraits = append([]PhysicalTrait(nil), r.PhysicalTraits...)
	out.ClothingItems = append([]ClothingItem(nil), r.ClothingItems...)
	return &out
}

// Clone returns a deep copy of r.
func (r *FoundPersonRecord) Clone() *FoundPersonRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.EstimatedAge = cloneInt(r.EstimatedAge)
	out.HeightCm = cloneFloat(r.HeightCm)
	out.WeightKg = cloneFloat(r.WeightKg)
	out.Traits = append([]ObservedTrait(nil), r.Traits...)
	out.ClothingItems = append([]ClothingItem(nil), r.ClothingItems...)
	return &out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	return Int(*p)
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}
