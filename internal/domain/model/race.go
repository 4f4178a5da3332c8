package model

import (
	"fmt"
	"sort"
	"time"
)

// Race is one race of a meeting as published on the results page.
type Race struct {
	Date       time.Time
	Racecourse string
	RaceNumber int
	RaceIndex  int
	ClassName  string
	Distance   int
	Rating     string // rating band, e.g. "60-40"
	Name       string
	Prize      int64 // HK$
	Going      string
	Track      string
	Course     string
	Sections   []float64 // cumulative sectional times of the leader, in seconds
	URL        string

	Results    []Result
	Sectionals []SectionalTime
	Incidents  []Incident
}

// Result is one runner's line in a race result table.
type Result struct {
	Date                time.Time
	RaceNumber          int
	RaceIndex           int
	Position            string
	HorseNumber         int
	HorseName           string
	HorseID             string
	Jockey              string
	JockeyID            string
	Trainer             string
	TrainerID           string
	ActualWeight        int
	DeclaredHorseWeight int
	Draw                int
	LBW                 string
	RunningPosition     string
	FinishTime          float64
	WinOdds             float64

	Sectionals []SectionalTime
}

// SectionalTime is one runner's split for one section of a race.
type SectionalTime struct {
	Date          time.Time
	RaceNumber    int
	PositionFinal string
	HorseNumber   int
	HorseName     string
	HorseCode     string
	HorseID       string
	Section       int
	Position      int
	LBW           string
	Time          float64
	Subtime1      *float64
	Subtime2      *float64
}

// Incident is a stewards' note attached to a runner.
type Incident struct {
	Date          time.Time
	RaceNumber    int
	PositionFinal string
	HorseNumber   int
	HorseName     string
	HorseCode     string
	HorseID       string
	Description   string
}

type meetingRace struct {
	date   time.Time
	number int
}

type meetingRunner struct {
	meetingRace
	horseID string
}

// Link attaches results, sectionals and incidents to their races by
// (date, race number). Rows whose race is unknown are dropped. Races come back
// ordered by date, then race number.
func Link(races []Race, results []Result, sectionals []SectionalTime, incidents []Incident) []Race {
	byRace := make(map[meetingRace]*Race, len(races))
	ordered := make([]*Race, 0, len(races))
	for i := range races {
		r := races[i]
		r.Results, r.Sectionals, r.Incidents = nil, nil, nil
		key := meetingRace{date: r.Date, number: r.RaceNumber}
		if _, dup := byRace[key]; dup {
			continue
		}
		byRace[key] = &r
		ordered = append(ordered, &r)
	}

	runners := make(map[meetingRunner][]int)
	for _, res := range results {
		race, ok := byRace[meetingRace{date: res.Date, number: res.RaceNumber}]
		if !ok {
			continue
		}
		res.Sectionals = nil
		race.Results = append(race.Results, res)
		key := meetingRunner{meetingRace{res.Date, res.RaceNumber}, res.HorseID}
		runners[key] = append(runners[key], len(race.Results)-1)
	}

	for _, st := range sectionals {
		rk := meetingRace{date: st.Date, number: st.RaceNumber}
		race, ok := byRace[rk]
		if !ok {
			continue
		}
		race.Sectionals = append(race.Sectionals, st)
		for _, idx := range runners[meetingRunner{rk, st.HorseID}] {
			race.Results[idx].Sectionals = append(race.Results[idx].Sectionals, st)
		}
	}

	for _, inc := range incidents {
		race, ok := byRace[meetingRace{date: inc.Date, number: inc.RaceNumber}]
		if !ok {
			continue
		}
		race.Incidents = append(race.Incidents, inc)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].RaceNumber < ordered[j].RaceNumber
	})
	out := make([]Race, len(ordered))
	for i, r := range ordered {
		out[i] = *r
	}
	return out
}

// Flatten denormalizes linked races into participation records carrying the
// race context.
func Flatten(races []Race) []ParticipationRecord {
	var out []ParticipationRecord
	for _, race := range races {
		season := SeasonOf(race.Date)
		for _, res := range race.Results {
			out = append(out, ParticipationRecord{
				HorseID:             res.HorseID,
				HorseName:           res.HorseName,
				HorseNumber:         res.HorseNumber,
				JockeyID:            res.JockeyID,
				Jockey:              res.Jockey,
				TrainerID:           res.TrainerID,
				Trainer:             res.Trainer,
				Date:                race.Date,
				Season:              season,
				RaceIndex:           race.RaceIndex,
				RaceNumber:          race.RaceNumber,
				Racecourse:          race.Racecourse,
				Track:               race.Track,
				Course:              race.Course,
				Distance:            race.Distance,
				Going:               race.Going,
				RaceClass:           race.ClassName,
				Draw:                res.Draw,
				ActualWeight:        res.ActualWeight,
				DeclaredHorseWeight: res.DeclaredHorseWeight,
				Position:            res.Position,
				LBW:                 res.LBW,
				RunningPosition:     res.RunningPosition,
				FinishTime:          res.FinishTime,
				WinOdds:             res.WinOdds,
			})
		}
	}
	return out
}

// seasonStartMonth is the month an HKJC season opens.
const seasonStartMonth = time.September

// SeasonOf returns the HKJC season label for a race date, e.g. "2024-25" for
// any date from 2024-09-01 to 2025-08-31.
func SeasonOf(d time.Time) string {
	year := d.Year()
	if d.Month() < seasonStartMonth {
		year--
	}
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}
