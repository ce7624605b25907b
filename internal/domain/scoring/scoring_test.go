package scoring_test

import (
	"errors"
	"testing"

	"github.com/okian/reencuentro/internal/domain/model"
	scoring "github.com/okian/reencuentro/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func baseFicha() *model.MissingPersonRecord {
	return &model.MissingPersonRecord{
		ID:                    "f-1",
		Gender:                "femenino",
		EstimatedAge:          model.Int(22),
		HeightCm:              model.Float(160),
		WeightKg:              model.Float(55),
		BodyBuild:             "media",
		DisappearanceLocation: model.Location{State: "Jalisco", Municipality: "Zapopan"},
	}
}

func baseHallazgo() *model.FoundPersonRecord {
	return &model.FoundPersonRecord{
		ID:            "h-1",
		Gender:        "femenino",
		EstimatedAge:  model.Int(22),
		HeightCm:      model.Float(160),
		WeightKg:      model.Float(55),
		BodyBuild:     "media",
		FoundLocation: model.Location{State: "Jalisco", Municipality: "Zapopan"},
	}
}

func TestRuleScorer_Score(t *testing.T) {
	Convey("Given a scorer with default weights", t, func() {
		scorer := scoring.NewRuleScorer()
		f, h := baseFicha(), baseHallazgo()

		Convey("When every general and location attribute is identical", func() {
			res, err := scorer.Score(f, h)

			Convey("Then the total should be 750 with criteria in comparator order", func() {
				So(err, ShouldBeNil)
				So(res.TotalScore, ShouldEqual, 750)
				So(res.Criteria, ShouldResemble, []string{
					"Género", "Edad (dif. 0)", "Estatura", "Peso", "Complexión", "Estado", "Municipio",
				})
			})

			Convey("And the facet breakdown should split 600 and 150", func() {
				So(len(res.Facets), ShouldEqual, 5)
				So(res.Facets[0].Facet, ShouldEqual, scoring.FacetGeneral)
				So(res.Facets[0].Score, ShouldEqual, 600)
				So(res.Facets[1].Facet, ShouldEqual, scoring.FacetLocation)
				So(res.Facets[1].Score, ShouldEqual, 150)
				So(res.Facets[2].Score+res.Facets[3].Score+res.Facets[4].Score, ShouldEqual, 0)
			})
		})

		Convey("When the ages differ by four years", func() {
			h.EstimatedAge = model.Int(26)
			res, err := scorer.Score(f, h)

			Convey("Then the age facet should contribute nothing", func() {
				So(err, ShouldBeNil)
				So(res.TotalScore, ShouldEqual, 600)
				So(res.Criteria, ShouldNotContain, "Edad (dif. 4)")
			})
		})

		Convey("When scoring the same pair twice", func() {
			f.PhysicalTraits = []model.PhysicalTrait{{BodyPartID: 3, Detail: "cicatriz"}, {Detail: "lunar"}}
			h.Traits = []model.ObservedTrait{{Description: "Cicatriz en el brazo y lunar en la mejilla"}}
			f.ClothingItems = []model.ClothingItem{{GarmentTypeID: 1, Color: "Rojo"}}
			h.ClothingItems = []model.ClothingItem{{GarmentTypeID: 1, Color: "rojo"}}
			first, err1 := scorer.Score(f, h)
			second, err2 := scorer.Score(f, h)

			Convey("Then both results should be identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})

		Convey("When a record is nil", func() {
			_, errF := scorer.Score(nil, h)
			_, errH := scorer.Score(f, nil)

			Convey("Then it should fail with ErrInvalidInput", func() {
				So(errors.Is(errF, scoring.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errH, scoring.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When both records are empty", func() {
			res, err := scorer.Score(&model.MissingPersonRecord{}, &model.FoundPersonRecord{})

			Convey("Then the score should be zero with empty criteria", func() {
				So(err, ShouldBeNil)
				So(res.TotalScore, ShouldEqual, 0)
				So(res.Criteria, ShouldNotBeNil)
				So(len(res.Criteria), ShouldEqual, 0)
			})
		})

		Convey("When scoring does not mutate its inputs", func() {
			f.PhysicalTraits = []model.PhysicalTrait{{Detail: "Tatuaje"}}
			h.Traits = []model.ObservedTrait{{Description: "tatuaje de ancla"}}
			_, err := scorer.Score(f, h)

			Convey("Then the records should be unchanged", func() {
				So(err, ShouldBeNil)
				So(f.PhysicalTraits[0].Detail, ShouldEqual, "Tatuaje")
				So(h.Traits[0].Description, ShouldEqual, "tatuaje de ancla")
				So(*f.EstimatedAge, ShouldEqual, 22)
			})
		})
	})
}

func TestRuleScorer_NullSafety(t *testing.T) {
	Convey("Given a fully populated pair", t, func() {
		scorer := scoring.NewRuleScorer()
		full, err := scorer.Score(baseFicha(), baseHallazgo())
		So(err, ShouldBeNil)

		clearers := map[string]func(f *model.MissingPersonRecord, h *model.FoundPersonRecord){
			"ficha gender":    func(f *model.MissingPersonRecord, _ *model.FoundPersonRecord) { f.Gender = "" },
			"hallazgo gender": func(_ *model.MissingPersonRecord, h *model.FoundPersonRecord) { h.Gender = "" },
			"ficha age":       func(f *model.MissingPersonRecord, _ *model.FoundPersonRecord) { f.EstimatedAge = nil },
			"hallazgo age":    func(_ *model.MissingPersonRecord, h *model.FoundPersonRecord) { h.EstimatedAge = nil },
			"ficha height":    func(f *model.MissingPersonRecord, _ *model.FoundPersonRecord) { f.HeightCm = nil },
			"hallazgo height": func(_ *model.MissingPersonRecord, h *model.FoundPersonRecord) { h.HeightCm = nil },
			"ficha weight":    func(f *model.MissingPersonRecord, _ *model.FoundPersonRecord) { f.WeightKg = nil },
			"hallazgo weight": func(_ *model.MissingPersonRecord, h *model.FoundPersonRecord) { h.WeightKg = nil },
			"ficha build":     func(f *model.MissingPersonRecord, _ *model.FoundPersonRecord) { f.BodyBuild = "" },
			"hallazgo build":  func(_ *model.MissingPersonRecord, h *model.FoundPersonRecord) { h.BodyBuild = "  " },
			"ficha state":     func(f *model.MissingPersonRecord, _ *model.FoundPersonRecord) { f.DisappearanceLocation.State = "" },
			"hallazgo state":  func(_ *model.MissingPersonRecord, h *model.FoundPersonRecord) { h.FoundLocation.State = "" },
			"ficha municipality": func(f *model.MissingPersonRecord, _ *model.FoundPersonRecord) {
				f.DisappearanceLocation.Municipality = ""
			},
			"hallazgo location":   func(_ *model.MissingPersonRecord, h *model.FoundPersonRecord) { h.FoundLocation = model.Location{} },
			"non-positive age":    func(f *model.MissingPersonRecord, _ *model.FoundPersonRecord) { f.EstimatedAge = model.Int(0) },
			"non-positive height": func(_ *model.MissingPersonRecord, h *model.FoundPersonRecord) { h.HeightCm = model.Float(-1) },
		}

		Convey("When any optional field is absent on either side", func() {
			Convey("Then scoring should not fail and should not score higher", func() {
				for _, clear := range clearers {
					f, h := baseFicha(), baseHallazgo()
					clear(f, h)
					res, err := scorer.Score(f, h)
					So(err, ShouldBeNil)
					So(res.TotalScore, ShouldBeLessThan, full.TotalScore)
				}
			})
		})
	})
}

func TestCompareGeneral(t *testing.T) {
	Convey("Given the general data comparator", t, func() {
		w := scoring.DefaultWeights()
		f, h := baseFicha(), baseHallazgo()
		f.Gender, f.BodyBuild, f.HeightCm, f.WeightKg = "", "", nil, nil

		Convey("When age differences cross the tolerance", func() {
			cases := []struct {
				age   int
				score int
				label string
			}{
				{22, 150, "Edad (dif. 0)"},
				{23, 125, "Edad (dif. 1)"},
				{20, 100, "Edad (dif. 2)"},
				{25, 75, "Edad (dif. 3)"},
				{26, 0, ""},
				{18, 0, ""},
			}

			Convey("Then points should fall by 25 per year and stop past 3", func() {
				for _, tc := range cases {
					h.EstimatedAge = model.Int(tc.age)
					fs := scoring.CompareGeneral(w, f, h)
					So(fs.Score, ShouldEqual, tc.score)
					if tc.label == "" {
						So(len(fs.Criteria), ShouldEqual, 0)
					} else {
						So(fs.Criteria, ShouldResemble, []string{tc.label})
					}
				}
			})
		})

		Convey("When heights and weights are within five units", func() {
			f.EstimatedAge = nil
			f.HeightCm, h.HeightCm = model.Float(160), model.Float(165)
			f.WeightKg, h.WeightKg = model.Float(60), model.Float(55.5)
			fs := scoring.CompareGeneral(w, f, h)

			Convey("Then both should earn flat points", func() {
				So(fs.Score, ShouldEqual, 200)
				So(fs.Criteria, ShouldResemble, []string{"Estatura", "Peso"})
			})
		})

		Convey("When heights differ by more than five", func() {
			f.EstimatedAge = nil
			f.HeightCm, h.HeightCm = model.Float(160), model.Float(165.5)
			fs := scoring.CompareGeneral(w, f, h)

			Convey("Then no partial credit is given", func() {
				So(fs.Score, ShouldEqual, 0)
			})
		})

		Convey("When genders differ only by case", func() {
			f.EstimatedAge = nil
			f.Gender, h.Gender = "Femenino", "femenino"
			fs := scoring.CompareGeneral(w, f, h)

			Convey("Then gender should not match", func() {
				So(fs.Score, ShouldEqual, 0)
			})
		})

		Convey("When builds differ only by case", func() {
			f.EstimatedAge = nil
			f.BodyBuild, h.BodyBuild = "DELGADA", "delgada"
			fs := scoring.CompareGeneral(w, f, h)

			Convey("Then build should match", func() {
				So(fs.Score, ShouldEqual, 50)
				So(fs.Criteria, ShouldResemble, []string{"Complexión"})
			})
		})
	})
}

func TestCompareLocation(t *testing.T) {
	Convey("Given the location comparator", t, func() {
		w := scoring.DefaultWeights()
		f, h := baseFicha(), baseHallazgo()

		Convey("When the municipality matches but the state does not", func() {
			h.FoundLocation = model.Location{State: "Nuevo León", Municipality: "Zapopan"}
			fs := scoring.CompareLocation(w, f, h)

			Convey("Then the location facet should be zero", func() {
				So(fs.Score, ShouldEqual, 0)
				So(len(fs.Criteria), ShouldEqual, 0)
			})
		})

		Convey("When only the state matches", func() {
			h.FoundLocation.Municipality = "Guadalajara"
			fs := scoring.CompareLocation(w, f, h)

			Convey("Then only state points are awarded", func() {
				So(fs.Score, ShouldEqual, 50)
				So(fs.Criteria, ShouldResemble, []string{"Estado"})
			})
		})

		Convey("When states differ by case", func() {
			h.FoundLocation.State = "jalisco"
			fs := scoring.CompareLocation(w, f, h)

			Convey("Then the comparison is case-sensitive", func() {
				So(fs.Score, ShouldEqual, 0)
			})
		})
	})
}

func TestCompareTraits(t *testing.T) {
	Convey("Given the traits comparator", t, func() {
		w := scoring.DefaultWeights()
		f, h := baseFicha(), baseHallazgo()

		Convey("When one hallazgo trait contains several ficha details", func() {
			f.PhysicalTraits = []model.PhysicalTrait{{Detail: "Cicatriz"}, {Detail: "lunar"}, {Detail: "tatuaje"}}
			h.Traits = []model.ObservedTrait{{Description: "cicatriz en ceja, LUNAR en cuello"}}
			fs := scoring.CompareTraits(w, f, h)

			Convey("Then each matching ficha trait earns once", func() {
				So(fs.Score, ShouldEqual, 100)
				So(fs.Criteria, ShouldResemble, []string{"Rasgo: Cicatriz", "Rasgo: lunar"})
			})
		})

		Convey("When a ficha trait matches several hallazgo traits", func() {
			f.PhysicalTraits = []model.PhysicalTrait{{Detail: "lunar"}}
			h.Traits = []model.ObservedTrait{{Description: "lunar"}, {Description: "otro lunar"}}
			fs := scoring.CompareTraits(w, f, h)

			Convey("Then it counts once", func() {
				So(fs.Score, ShouldEqual, 50)
			})
		})

		Convey("When the match is only in the reverse direction", func() {
			f.PhysicalTraits = []model.PhysicalTrait{{Detail: "cicatriz en ceja izquierda"}}
			h.Traits = []model.ObservedTrait{{Description: "cicatriz"}}
			fs := scoring.CompareTraits(w, f, h)

			Convey("Then nothing is awarded", func() {
				So(fs.Score, ShouldEqual, 0)
			})
		})

		Convey("When either list is empty", func() {
			f.PhysicalTraits = []model.PhysicalTrait{{Detail: "lunar"}}
			fs := scoring.CompareTraits(w, f, h)

			Convey("Then the comparator is a no-op", func() {
				So(fs.Score, ShouldEqual, 0)
				So(len(fs.Criteria), ShouldEqual, 0)
			})
		})

		Convey("When a ficha detail is blank", func() {
			f.PhysicalTraits = []model.PhysicalTrait{{Detail: " "}}
			h.Traits = []model.ObservedTrait{{Description: "lunar"}}
			fs := scoring.CompareTraits(w, f, h)

			Convey("Then it never matches", func() {
				So(fs.Score, ShouldEqual, 0)
			})
		})
	})
}

func TestCompareClothing(t *testing.T) {
	Convey("Given the clothing comparator", t, func() {
		w := scoring.DefaultWeights()
		f, h := baseFicha(), baseHallazgo()

		Convey("When type and color match case-insensitively", func() {
			f.ClothingItems = []model.ClothingItem{{GarmentTypeID: 4, Color: "Azul"}, {GarmentTypeID: 7, Color: "negro"}}
			h.ClothingItems = []model.ClothingItem{{GarmentTypeID: 7, Color: "NEGRO"}, {GarmentTypeID: 4, Color: "azul"}}
			fs := scoring.CompareClothing(w, f, h)

			Convey("Then each garment earns 30 labelled with the ficha color", func() {
				So(fs.Score, ShouldEqual, 60)
				So(fs.Criteria, ShouldResemble, []string{"Vestimenta: Azul", "Vestimenta: negro"})
			})
		})

		Convey("When only the type matches", func() {
			f.ClothingItems = []model.ClothingItem{{GarmentTypeID: 4, Color: "Azul"}}
			h.ClothingItems = []model.ClothingItem{{GarmentTypeID: 4, Color: "rojo"}}

			Convey("Then nothing is awarded", func() {
				So(scoring.CompareClothing(w, f, h).Score, ShouldEqual, 0)
			})
		})

		Convey("When a color is missing on one side", func() {
			f.ClothingItems = []model.ClothingItem{{GarmentTypeID: 4}}
			h.ClothingItems = []model.ClothingItem{{GarmentTypeID: 4}}

			Convey("Then nothing is awarded", func() {
				So(scoring.CompareClothing(w, f, h).Score, ShouldEqual, 0)
			})
		})

		Convey("When the color matches but the type differs", func() {
			f.ClothingItems = []model.ClothingItem{{GarmentTypeID: 4, Color: "azul"}}
			h.ClothingItems = []model.ClothingItem{{GarmentTypeID: 5, Color: "azul"}}

			Convey("Then nothing is awarded", func() {
				So(scoring.CompareClothing(w, f, h).Score, ShouldEqual, 0)
			})
		})
	})
}

func TestCompareNames(t *testing.T) {
	Convey("Given the name comparator", t, func() {
		w := scoring.DefaultWeights()
		f, h := baseFicha(), baseHallazgo()
		f.GivenName, f.PaternalSurname = "María", "López"

		Convey("When the full names match ignoring case and padding", func() {
			h.GivenName, h.PaternalSurname = " maría", "LÓPEZ "
			fs := scoring.CompareNames(w, f, h)

			Convey("Then it should score an exact name", func() {
				So(fs.Score, ShouldEqual, 500)
				So(fs.Criteria, ShouldResemble, []string{"Nombre Exacto"})
			})
		})

		Convey("When only the given names match", func() {
			h.GivenName, h.PaternalSurname = "MARÍA", "Pérez"
			fs := scoring.CompareNames(w, f, h)

			Convey("Then it should score a first name match", func() {
				So(fs.Score, ShouldEqual, 100)
				So(fs.Criteria, ShouldResemble, []string{"Primer Nombre"})
			})
		})

		Convey("When only the surnames match", func() {
			h.GivenName, h.PaternalSurname = "Rosa", "López"
			fs := scoring.CompareNames(w, f, h)

			Convey("Then nothing is awarded", func() {
				So(fs.Score, ShouldEqual, 0)
				So(len(fs.Criteria), ShouldEqual, 0)
			})
		})

		Convey("When a name part carries trailing spaces", func() {
			f.GivenName = "María "
			h.GivenName, h.PaternalSurname = "María", "López"
			fs := scoring.CompareNames(w, f, h)

			Convey("Then each part is trimmed before joining and it is an exact name", func() {
				So(fs.Score, ShouldEqual, 500)
				So(fs.Criteria, ShouldResemble, []string{"Nombre Exacto"})
			})
		})

		Convey("When the given names differ only by padding", func() {
			f.GivenName = "  María"
			h.GivenName, h.PaternalSurname = "maría ", "Pérez"
			fs := scoring.CompareNames(w, f, h)

			Convey("Then padding does not block the first name match", func() {
				So(fs.Score, ShouldEqual, 100)
				So(fs.Criteria, ShouldResemble, []string{"Primer Nombre"})
			})
		})

		Convey("When the hallazgo has no surname", func() {
			h.GivenName = "María"
			fs := scoring.CompareNames(w, f, h)

			Convey("Then the comparator is a no-op", func() {
				So(fs.Score, ShouldEqual, 0)
			})
		})
	})
}

func TestWeights(t *testing.T) {
	Convey("Given weight tables", t, func() {
		Convey("When using the defaults", func() {
			Convey("Then they should validate", func() {
				So(scoring.DefaultWeights().Validate(), ShouldBeNil)
			})
		})

		Convey("When a weight is negative", func() {
			w := scoring.DefaultWeights()
			w.Garment = -1

			Convey("Then validation should fail", func() {
				So(errors.Is(w.Validate(), scoring.ErrInvalidWeights), ShouldBeTrue)
			})

			Convey("And the scorer should keep its defaults", func() {
				s := scoring.NewRuleScorer(scoring.WithWeights(w))
				So(s.Weights(), ShouldResemble, scoring.DefaultWeights())
			})

			Convey("And the checked constructor should report it", func() {
				s, err := scoring.NewRuleScorerWithWeights(w)
				So(s, ShouldBeNil)
				So(errors.Is(err, scoring.ErrInvalidWeights), ShouldBeTrue)
			})
		})

		Convey("When the age step would go below zero inside the tolerance", func() {
			w := scoring.DefaultWeights()
			w.AgeStep = 60

			Convey("Then validation should fail", func() {
				So(errors.Is(w.Validate(), scoring.ErrInvalidWeights), ShouldBeTrue)
			})
		})

		Convey("When custom weights are supplied", func() {
			w := scoring.DefaultWeights()
			w.State = 10
			w.Municipality = 20
			s := scoring.NewRuleScorer(scoring.WithWeights(w))
			res, err := s.Score(baseFicha(), baseHallazgo())

			Convey("Then the scorer should use them", func() {
				So(err, ShouldBeNil)
				So(res.TotalScore, ShouldEqual, 630)
			})

			Convey("And the checked constructor should accept them", func() {
				checked, err := scoring.NewRuleScorerWithWeights(w)
				So(err, ShouldBeNil)
				So(checked.Weights(), ShouldResemble, w)
			})
		})
	})
}

func TestRuleScorer_Concurrent(t *testing.T) {
	Convey("Given a shared scorer", t, func() {
		scorer := scoring.NewRuleScorer()
		f, h := baseFicha(), baseHallazgo()

		Convey("When scoring from many goroutines", func() {
			results := make(chan model.MatchResult, 16)
			for i := 0; i < 16; i++ {
				go func() {
					res, _ := scorer.Score(f, h)
					results <- res
				}()
			}

			Convey("Then every result should be the same", func() {
				for i := 0; i < 16; i++ {
					res := <-results
					So(res.TotalScore, ShouldEqual, 750)
				}
			})
		})
	})
}
