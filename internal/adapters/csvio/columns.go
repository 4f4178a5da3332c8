package csvio

import (
	"strconv"

	"github.com/okian/formguide/internal/adapters/scrape"
	"github.com/okian/formguide/internal/domain/model"
)

// column binds a CSV column to a ParticipationRecord field.
type column struct {
	name    string
	aliases []string
	get     func(*model.ParticipationRecord) string
	set     func(*model.ParticipationRecord, string) error
}

func text(name string, f func(*model.ParticipationRecord) *string, aliases ...string) column {
	return column{
		name:    name,
		aliases: aliases,
		get:     func(r *model.ParticipationRecord) string { return *f(r) },
		set: func(r *model.ParticipationRecord, v string) error {
			*f(r) = v
			return nil
		},
	}
}

func integer(name string, f func(*model.ParticipationRecord) *int, aliases ...string) column {
	return column{
		name:    name,
		aliases: aliases,
		get: func(r *model.ParticipationRecord) string {
			if v := *f(r); v != 0 {
				return strconv.Itoa(v)
			}
			return ""
		},
		set: func(r *model.ParticipationRecord, v string) error {
			n, err := scrape.ParseInt(v)
			*f(r) = n
			return err
		},
	}
}

func number(name string, parse func(string) (float64, error), f func(*model.ParticipationRecord) *float64, aliases ...string) column {
	return column{
		name:    name,
		aliases: aliases,
		get: func(r *model.ParticipationRecord) string {
			if v := *f(r); v != 0 {
				return formatFloat(v)
			}
			return ""
		},
		set: func(r *model.ParticipationRecord, v string) error {
			n, err := parse(v)
			*f(r) = n
			return err
		},
	}
}

// participationColumns is the canonical column order of a participation CSV.
var participationColumns = []column{
	text("horse_id", func(r *model.ParticipationRecord) *string { return &r.HorseID }),
	text("horse_name", func(r *model.ParticipationRecord) *string { return &r.HorseName }),
	integer("horse_number", func(r *model.ParticipationRecord) *int { return &r.HorseNumber }),
	text("jockey_id", func(r *model.ParticipationRecord) *string { return &r.JockeyID }),
	text("jockey", func(r *model.ParticipationRecord) *string { return &r.Jockey }),
	text("trainer_id", func(r *model.ParticipationRecord) *string { return &r.TrainerID }),
	text("trainer", func(r *model.ParticipationRecord) *string { return &r.Trainer }),
	{
		name: "date",
		get:  func(r *model.ParticipationRecord) string { return formatDate(r.Date) },
		set: func(r *model.ParticipationRecord, v string) error {
			d, err := model.ParseDate(v)
			r.Date = d
			return err
		},
	},
	text("season", func(r *model.ParticipationRecord) *string { return &r.Season }),
	integer("race_index", func(r *model.ParticipationRecord) *int { return &r.RaceIndex }),
	integer("race_number", func(r *model.ParticipationRecord) *int { return &r.RaceNumber }, "race_no"),
	text("racecourse", func(r *model.ParticipationRecord) *string { return &r.Racecourse }),
	text("track", func(r *model.ParticipationRecord) *string { return &r.Track }),
	text("course", func(r *model.ParticipationRecord) *string { return &r.Course }),
	integer("distance", func(r *model.ParticipationRecord) *int { return &r.Distance }, "dist"),
	text("going", func(r *model.ParticipationRecord) *string { return &r.Going }),
	text("race_class", func(r *model.ParticipationRecord) *string { return &r.RaceClass }, "class_name", "class"),
	integer("draw", func(r *model.ParticipationRecord) *int { return &r.Draw }, "dr"),
	integer("rating", func(r *model.ParticipationRecord) *int { return &r.Rating }, "rtg"),
	integer("actual_weight", func(r *model.ParticipationRecord) *int { return &r.ActualWeight }, "act_wt"),
	integer("declared_horse_weight", func(r *model.ParticipationRecord) *int { return &r.DeclaredHorseWeight }, "declar_horse_wt"),
	text("gear", func(r *model.ParticipationRecord) *string { return &r.Gear }),
	text("position", func(r *model.ParticipationRecord) *string { return &r.Position }, "plc", "pla"),
	text("lbw", func(r *model.ParticipationRecord) *string { return &r.LBW }),
	text("running_position", func(r *model.ParticipationRecord) *string { return &r.RunningPosition }),
	number("finish_time", scrape.ParseFinishTime, func(r *model.ParticipationRecord) *float64 { return &r.FinishTime }),
	number("win_odds", scrape.ParseDecimal, func(r *model.ParticipationRecord) *float64 { return &r.WinOdds }),
}

// ParticipationColumns returns the canonical participation column names.
func ParticipationColumns() []string {
	out := make([]string, len(participationColumns))
	for i, c := range participationColumns {
		out[i] = c.name
	}
	return out
}
