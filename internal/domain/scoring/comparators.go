package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/reencuentro/internal/domain/model"
)

// Facet names, in the order the scorer applies them.
const (
	FacetGeneral  = "general"
	FacetLocation = "location"
	FacetTraits   = "traits"
	FacetClothing = "clothing"
	FacetName     = "name"
)

// Criterion labels.
const (
	labelGender       = "Género"
	labelHeight       = "Estatura"
	labelWeight       = "Peso"
	labelBuild        = "Complexión"
	labelState        = "Estado"
	labelMunicipality = "Municipio"
	labelExactName    = "Nombre Exacto"
	labelGivenName    = "Primer Nombre"
)

// Comparator scores one facet of a pair. Comparators read their inputs only
// and never fail: absent data contributes nothing.
type Comparator func(w Weights, f *model.MissingPersonRecord, h *model.FoundPersonRecord) model.FacetScore

type facetBuilder struct {
	fs model.FacetScore
}

func newFacet(name string) *facetBuilder {
	return &facetBuilder{fs: model.FacetScore{Facet: name, Criteria: []model.MatchCriterion{}}}
}

func (b *facetBuilder) award(points int, label string) {
	b.fs.Score += points
	b.fs.Criteria = append(b.fs.Criteria, label)
}

// CompareGeneral scores gender, age, height, weight and body build.
func CompareGeneral(w Weights, f *model.MissingPersonRecord, h *model.FoundPersonRecord) model.FacetScore {
	b := newFacet(FacetGeneral)

	// Gender values arrive normalized upstream; compare exactly.
	if present(f.Gender) && present(h.Gender) && f.Gender == h.Gender {
		b.award(w.Gender, labelGender)
	}

	if a1, ok1 := positiveInt(f.EstimatedAge); ok1 {
		if a2, ok2 := positiveInt(h.EstimatedAge); ok2 {
			if diff := absInt(a1 - a2); diff <= w.AgeTolerance {
				b.award(w.AgeMax-diff*w.AgeStep, fmt.Sprintf("Edad (dif. %d)", diff))
			}
		}
	}

	if withinTolerance(f.HeightCm, h.HeightCm, w.HeightToleranceCm) {
		b.award(w.Height, labelHeight)
	}
	if withinTolerance(f.WeightKg, h.WeightKg, w.WeightToleranceKg) {
		b.award(w.Weight, labelWeight)
	}

	if equalFold(f.BodyBuild, h.BodyBuild) {
		b.award(w.Build, labelBuild)
	}
	return b.fs
}

func withinTolerance(a, b *float64, tolerance float64) bool {
	v1, ok1 := positiveFloat(a)
	v2, ok2 := positiveFloat(b)
	return ok1 && ok2 && math.Abs(v1-v2) <= tolerance
}

// CompareLocation scores state, then municipality. Municipality credit
// requires a state match first.
func CompareLocation(w Weights, f *model.MissingPersonRecord, h *model.FoundPersonRecord) model.FacetScore {
	b := newFacet(FacetLocation)
	lf, lh := f.DisappearanceLocation, h.FoundLocation
	if !present(lf.State) || !present(lh.State) || lf.State != lh.State {
		return b.fs
	}
	b.award(w.State, labelState)
	if present(lf.Municipality) && present(lh.Municipality) && lf.Municipality == lh.Municipality {
		b.award(w.Municipality, labelMunicipality)
	}
	return b.fs
}

// CompareTraits credits each ficha trait whose detail appears inside any
// hallazgo trait description. A ficha trait is credited at most once.
func CompareTraits(w Weights, f *model.MissingPersonRecord, h *model.FoundPersonRecord) model.FacetScore {
	b := newFacet(FacetTraits)
	if len(f.PhysicalTraits) == 0 || len(h.Traits) == 0 {
		return b.fs
	}
	for _, want := range f.PhysicalTraits {
		for _, got := range h.Traits {
			if containsFold(got.Description, want.Detail) {
				b.award(w.Trait, "Rasgo: "+strings.TrimSpace(want.Detail))
				break
			}
		}
	}
	return b.fs
}

// CompareClothing credits each ficha garment that has a hallazgo garment of
// the same type and the same color. Type-only matches earn nothing.
func CompareClothing(w Weights, f *model.MissingPersonRecord, h *model.FoundPersonRecord) model.FacetScore {
	b := newFacet(FacetClothing)
	if len(f.ClothingItems) == 0 || len(h.ClothingItems) == 0 {
		return b.fs
	}
	for _, want := range f.ClothingItems {
		if want.GarmentTypeID == 0 {
			continue
		}
		for _, got := range h.ClothingItems {
			if got.GarmentTypeID == want.GarmentTypeID && equalFold(want.Color, got.Color) {
				b.award(w.Garment, "Vestimenta: "+strings.TrimSpace(want.Color))
				break
			}
		}
	}
	return b.fs
}

// CompareNames corroborates identity when both records disclose a given name
// and a paternal surname. Surname-only agreement is never scored.
func CompareNames(w Weights, f *model.MissingPersonRecord, h *model.FoundPersonRecord) model.FacetScore {
	b := newFacet(FacetName)
	if !present(f.GivenName) || !present(f.PaternalSurname) ||
		!present(h.GivenName) || !present(h.PaternalSurname) {
		return b.fs
	}
	switch {
	case fullName(f.GivenName, f.PaternalSurname) == fullName(h.GivenName, h.PaternalSurname):
		b.award(w.ExactName, labelExactName)
	case equalFold(f.GivenName, h.GivenName):
		b.award(w.GivenName, labelGivenName)
	}
	return b.fs
}

func fullName(given, paternal string) string {
	return fold(strings.TrimSpace(given) + " " + strings.TrimSpace(paternal))
}
