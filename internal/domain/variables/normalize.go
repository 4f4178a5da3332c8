package variables

import (
	"strings"

	"github.com/okian/formguide/internal/domain/model"
)

// Race-group column names.
const (
	ColNormalizedDraw      = "normalized_draw"
	ColNormalizedActualWt  = "normalized_act_wt"
	ColNormalizedRating    = "normalized_rtg"
	ColRaceClassLevel      = "race_class_level"
	NameNormalizedDraw     = ColNormalizedDraw
	NameNormalizedActualWt = ColNormalizedActualWt
	NameNormalizedRating   = ColNormalizedRating
	NameRaceClassLevel     = ColRaceClassLevel
)

// classLevels maps canonical class codes to a numeric level, 1 being the
// strongest company.
var classLevels = map[string]float64{
	"G1":      1,
	"G2":      1,
	"G3":      1,
	"1":       1,
	"2":       2,
	"4YO":     2,
	"3":       3,
	"3R":      3,
	"4":       4,
	"4R":      4,
	"5":       5,
	"GRIFFIN": 6,
}

var groupNames = map[string]string{
	"GROUP ONE":   "G1",
	"GROUP TWO":   "G2",
	"GROUP THREE": "G3",
	"GROUP 1":     "G1",
	"GROUP 2":     "G2",
	"GROUP 3":     "G3",
}

// ClassCode canonicalizes a race class name from the results page, e.g.
// "Class 4" -> "4", "Group One" -> "G1", "Class 3 (Restricted)" -> "3R",
// "4 Year Olds" -> "4YO", "Griffin Race" -> "GRIFFIN".
func ClassCode(name string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(name), " "))
	if s == "" {
		return ""
	}
	if g, ok := groupNames[s]; ok {
		return g
	}
	restricted := false
	if i := strings.Index(s, "(RESTRICTED)"); i >= 0 {
		restricted = true
		s = strings.TrimSpace(s[:i])
	}
	switch {
	case strings.HasPrefix(s, "GRIFFIN"):
		return "GRIFFIN"
	case strings.HasPrefix(s, "4 YEAR OLD"):
		return "4YO"
	}
	s = strings.TrimPrefix(s, "CLASS ")
	if restricted {
		s += "R"
	}
	return strings.ReplaceAll(s, " ", "")
}

// ClassLevel returns the level of a race class name and whether it is known.
func ClassLevel(name string) (float64, bool) {
	v, ok := classLevels[ClassCode(name)]
	return v, ok
}

// NormalizedDraw maps each barrier draw to (draw-1)/(field-1), where field is
// the number of runners in the race. Draws above the field size, left by
// late scratchings, land above 1.
func NormalizedDraw() GroupCreator {
	return GroupCreator{
		Name:    NameNormalizedDraw,
		Columns: []string{ColNormalizedDraw},
		Compute: func(group []*model.EnrichedRecord) {
			field := len(group)
			if field <= 1 {
				return
			}
			for _, r := range group {
				if r.Draw <= 0 {
					continue
				}
				r.Stats.Set(ColNormalizedDraw, float64(r.Draw-1)/float64(field-1))
			}
		},
	}
}

// NormalizedActualWeight divides each carried weight by the top weight of the race.
func NormalizedActualWeight() GroupCreator {
	return ratioToMax(NameNormalizedActualWt, ColNormalizedActualWt, func(r *model.EnrichedRecord) int {
		return r.ActualWeight
	})
}

// NormalizedRating divides each rating by the highest rating in the race.
func NormalizedRating() GroupCreator {
	return ratioToMax(NameNormalizedRating, ColNormalizedRating, func(r *model.EnrichedRecord) int {
		return r.Rating
	})
}

func ratioToMax(name, col string, field func(*model.EnrichedRecord) int) GroupCreator {
	return GroupCreator{
		Name:    name,
		Columns: []string{col},
		Compute: func(group []*model.EnrichedRecord) {
			top := 0
			for _, r := range group {
				top = max(top, field(r))
			}
			if top <= 0 {
				return
			}
			for _, r := range group {
				if v := field(r); v > 0 {
					r.Stats.Set(col, float64(v)/float64(top))
				}
			}
		},
	}
}

// RaceClassLevel maps the race class to its numeric level.
func RaceClassLevel() GroupCreator {
	return GroupCreator{
		Name:    NameRaceClassLevel,
		Columns: []string{ColRaceClassLevel},
		Compute: func(group []*model.EnrichedRecord) {
			for _, r := range group {
				if lvl, ok := ClassLevel(r.RaceClass); ok {
					r.Stats.Set(ColRaceClassLevel, lvl)
				}
			}
		},
	}
}
