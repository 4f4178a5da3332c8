package variables

import (
	"math"

	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/placement"
)

// Derived column names.
const (
	ColTotalRuns = "total_runs"
	ColTop1      = "top1"
	ColTop2      = "top2"
	ColTop3      = "top3"
	ColTop1Rate  = "top1_rate"
	ColTop2Rate  = "top2_rate"
	ColTop3Rate  = "top3_rate"

	ColSeasonalRuns = "seasonal_runs"

	ColDaysSinceLastRun      = "days_since_last_run"
	ColDaysSinceLastRunLog1p = "days_since_last_run_log1p"
	ColDaysSinceLastRunSqrt  = "days_since_last_run_sqrt"

	ColJockeySeasonalRuns = "jockey_seasonal_runs"

	ColFormScore      = "form_score"
	ColDistanceChange = "distance_change"

	ColJockeyTotalRuns = "jockey_total_runs"
	ColJockeyTop1Rate  = "jockey_top1_rate"
	ColJockeyTop3Rate  = "jockey_top3_rate"
)

// Creator names.
const (
	NameRuns               = "runs"
	NameSeasonalRuns       = "seasonal_runs"
	NameRecency            = "recency"
	NameJockeySeasonalRuns = "jockey_seasonal_runs"
	NameForm               = "form"
	NameDistanceChange     = "distance_change"
	NameJockeyRuns         = "jockey_runs"
)

// formDecay is the per-place decay of the form score: a winner scores 1, a
// runner-up exp(-0.5), and so on.
const formDecay = 0.5

// Runs counts placings over the horse's history.
func Runs() Creator {
	return Creator{
		Name:    NameRuns,
		Scope:   ScopeHorse,
		Columns: []string{ColTotalRuns, ColTop1, ColTop2, ColTop3, ColTop1Rate, ColTop2Rate, ColTop3Rate},
		Compute: computeRuns,
	}
}

// placings holds cumulative top-N counts.
type placings struct {
	total            int
	top1, top2, top3 int
}

func countPlacings(h []model.ParticipationRecord) placings {
	var byPlace [4]int
	for _, r := range h {
		byPlace[placement.Top(r.Position)]++
	}
	p := placings{total: len(h), top1: byPlace[1]}
	p.top2 = p.top1 + byPlace[2]
	p.top3 = p.top2 + byPlace[3]
	return p
}

func computeRuns(_ model.ParticipationRecord, h []model.ParticipationRecord, out model.Stats) {
	p := countPlacings(h)
	n := float64(p.total)
	out.Set(ColTotalRuns, n)
	out.Set(ColTop1, float64(p.top1))
	out.Set(ColTop2, float64(p.top2))
	out.Set(ColTop3, float64(p.top3))
	out.Set(ColTop1Rate, float64(p.top1)/n)
	out.Set(ColTop2Rate, float64(p.top2)/n)
	out.Set(ColTop3Rate, float64(p.top3)/n)
}

// SeasonalRuns counts the horse's earlier runs in the current record's season.
func SeasonalRuns() Creator {
	return Creator{
		Name:    NameSeasonalRuns,
		Scope:   ScopeHorse,
		Columns: []string{ColSeasonalRuns},
		Compute: seasonal(ColSeasonalRuns),
	}
}

// JockeySeasonalRuns applies the seasonal count to the jockey's own history.
func JockeySeasonalRuns() Creator {
	return Creator{
		Name:    NameJockeySeasonalRuns,
		Scope:   ScopeJockey,
		Columns: []string{ColJockeySeasonalRuns},
		Compute: seasonal(ColJockeySeasonalRuns),
	}
}

func seasonal(col string) Func {
	return func(cur model.ParticipationRecord, h []model.ParticipationRecord, out model.Stats) {
		season := seasonOf(cur)
		n := 0
		for _, r := range h {
			if seasonOf(r) == season {
				n++
			}
		}
		out.Set(col, float64(n))
	}
}

// seasonOf prefers the season carried by the record and derives it otherwise.
func seasonOf(r model.ParticipationRecord) string {
	if r.Season != "" {
		return r.Season
	}
	return model.SeasonOf(r.Date)
}

// Recency measures the rest since the horse's last run.
func Recency() Creator {
	return Creator{
		Name:    NameRecency,
		Scope:   ScopeHorse,
		Columns: []string{ColDaysSinceLastRun, ColDaysSinceLastRunLog1p, ColDaysSinceLastRunSqrt},
		Compute: computeRecency,
	}
}

func computeRecency(cur model.ParticipationRecord, h []model.ParticipationRecord, out model.Stats) {
	days := float64(model.DaysBetween(h[len(h)-1].Date, cur.Date))
	out.Set(ColDaysSinceLastRun, days)
	out.Set(ColDaysSinceLastRunLog1p, math.Log1p(days))
	out.Set(ColDaysSinceLastRunSqrt, math.Sqrt(days))
}

// Form scores recent finishing ranks with an exponential decay per place.
// Runs without a numeric rank are ignored; the column is absent when none remain.
func Form() Creator {
	return Creator{
		Name:    NameForm,
		Scope:   ScopeHorse,
		Columns: []string{ColFormScore},
		Compute: computeForm,
	}
}

func computeForm(_ model.ParticipationRecord, h []model.ParticipationRecord, out model.Stats) {
	var sum float64
	n := 0
	for _, r := range h {
		rank, ok := placement.Numeric(r.Position)
		if !ok {
			continue
		}
		sum += math.Exp(-formDecay * float64(rank-1))
		n++
	}
	if n == 0 {
		return
	}
	out.Set(ColFormScore, sum/float64(n))
}

// DistanceChange is the step up or down in trip from the last run, in metres.
func DistanceChange() Creator {
	return Creator{
		Name:    NameDistanceChange,
		Scope:   ScopeHorse,
		Columns: []string{ColDistanceChange},
		Compute: computeDistanceChange,
	}
}

func computeDistanceChange(cur model.ParticipationRecord, h []model.ParticipationRecord, out model.Stats) {
	last := h[len(h)-1]
	if cur.Distance <= 0 || last.Distance <= 0 {
		return
	}
	out.Set(ColDistanceChange, float64(cur.Distance-last.Distance))
}

// JockeyRuns counts the jockey's rides and strike rates.
func JockeyRuns() Creator {
	return Creator{
		Name:    NameJockeyRuns,
		Scope:   ScopeJockey,
		Columns: []string{ColJockeyTotalRuns, ColJockeyTop1Rate, ColJockeyTop3Rate},
		Compute: computeJockeyRuns,
	}
}

func computeJockeyRuns(_ model.ParticipationRecord, h []model.ParticipationRecord, out model.Stats) {
	p := countPlacings(h)
	n := float64(p.total)
	out.Set(ColJockeyTotalRuns, n)
	out.Set(ColJockeyTop1Rate, float64(p.top1)/n)
	out.Set(ColJockeyTop3Rate, float64(p.top3)/n)
}
