// Package synth generates deterministic fake race history: the same Config
// always yields the same races, runners and ids.
package synth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/placement"
	"github.com/okian/formguide/pkg/logger"
)

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/okian/formguide/synth"))

var (
	nameHeads = []string{"GOLDEN", "LUCKY", "BEAUTY", "HAPPY", "ROMANTIC", "CALIFORNIA", "PACKING", "SUPER", "VOYAGE", "WINNING"}
	nameTails = []string{"SIXTY", "PATCH", "GENERATION", "WARRIOR", "SPIRIT", "MOMENT", "DRAGON", "EMPEROR", "STAR", "SPEED", "PALACE", "JOY"}
	surnames  = []string{"Purton", "Moreira", "Teetan", "Hamelin", "Badel", "Ferraris", "Bentley", "Chadwick", "Poon", "Ho", "Yeung", "Atzeni", "Avdulla", "Leung", "Wong", "Chau"}
)

type entity struct {
	id   string
	name string
}

// slot is one scheduled meeting with the season index of its first race.
type slot struct {
	date       time.Time
	racecourse string
	firstIndex int
}

// Generator builds synthetic meetings.
type Generator struct {
	cfg      Config
	horses   []entity
	jockeys  []entity
	trainers []entity
	logger   logger.Logger
}

// New validates cfg and builds the horse, jockey and trainer pools.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	g := &Generator{cfg: cfg, logger: logger.Nop()}
	for _, opt := range opts {
		opt(g)
	}

	g.horses = make([]entity, cfg.Horses)
	for i := range g.horses {
		g.horses[i] = entity{id: g.id("horse", i), name: horseName(i)}
	}
	g.jockeys = make([]entity, cfg.Jockeys)
	for i := range g.jockeys {
		g.jockeys[i] = entity{id: g.id("jockey", i), name: personName(i)}
	}
	trainers := max(1, cfg.Horses/10)
	g.trainers = make([]entity, trainers)
	for i := range g.trainers {
		g.trainers[i] = entity{id: g.id("trainer", i), name: personName(i + cfg.Jockeys)}
	}
	return g, nil
}

// id derives a stable opaque id from the seed, the kind and the pool index.
func (g *Generator) id(kind string, i int) string {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%d/%s/%d", g.cfg.Seed, kind, i))).String()
}

// Races generates every meeting, linked and ordered by date then race number.
// Meetings are generated concurrently, each from its own seeded source, so the
// worker count never changes the output.
func (g *Generator) Races(ctx context.Context) ([]model.Race, error) {
	schedule := g.schedule()
	g.logger.Info(ctx, "generating synthetic meetings",
		logger.Int("meetings", len(schedule)),
		logger.Int("workers", g.cfg.Workers))

	type meetingResult struct {
		index int
		races []model.Race
		err   error
	}
	resultChan := make(chan meetingResult, len(schedule))

	workerCount := min(g.cfg.Workers, len(schedule))
	perWorker := len(schedule) / workerCount
	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = len(schedule)
		}
		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- meetingResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- meetingResult{index: i, races: g.meeting(i, schedule[i])}
				}
			}
		}(start, end)
	}

	byMeeting := make([][]model.Race, len(schedule))
	for i := 0; i < len(schedule); i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("generate meetings: %w", ctx.Err())
		case res := <-resultChan:
			if res.err != nil {
				return nil, fmt.Errorf("generate meeting %d: %w", res.index, res.err)
			}
			byMeeting[res.index] = res.races
		}
	}

	races := make([]model.Race, 0, len(schedule)*g.cfg.RacesPerMeeting)
	for _, m := range byMeeting {
		races = append(races, m...)
	}
	g.logger.Info(ctx, "generated synthetic races", logger.Int("races", len(races)))
	return races, nil
}

// Records generates the history flattened into participations.
func (g *Generator) Records(ctx context.Context) ([]model.ParticipationRecord, error) {
	races, err := g.Races(ctx)
	if err != nil {
		return nil, err
	}
	return model.Flatten(races), nil
}

// schedule lays out meeting dates and season race indexes. The index restarts
// at 1 when a new season opens.
func (g *Generator) schedule() []slot {
	out := make([]slot, g.cfg.Meetings)
	date := g.cfg.Start
	season := model.SeasonOf(date)
	next := 1
	for i := range out {
		if s := model.SeasonOf(date); s != season {
			season, next = s, 1
		}
		course := shaTin
		gap := sundayToWednesday
		if i%2 == 1 {
			course = happyValley
			gap = wednesdayToSunday
		}
		out[i] = slot{date: date, racecourse: course, firstIndex: next}
		next += g.cfg.RacesPerMeeting
		date = date.AddDate(0, 0, gap)
	}
	return out
}

func (g *Generator) meeting(i int, s slot) []model.Race {
	rng := rand.New(rand.NewPCG(g.cfg.Seed, uint64(i)+1))
	going := goings[rng.IntN(len(goings))]
	course := courses[rng.IntN(len(courses))]
	races := make([]model.Race, g.cfg.RacesPerMeeting)
	for n := range races {
		races[n] = g.race(rng, s, n+1, going, course)
	}
	return races
}

type runner struct {
	horse, jockey, trainer entity
	draw                   int
	time                   float64
	withdrawn              bool
}

func (g *Generator) race(rng *rand.Rand, s slot, number int, going, course string) model.Race {
	class := rng.IntN(len(classes))
	race := model.Race{
		Date:       s.date,
		Racecourse: s.racecourse,
		RaceNumber: number,
		RaceIndex:  s.firstIndex + number - 1,
		ClassName:  classes[class],
		Distance:   distances[rng.IntN(len(distances))],
		Name:       fmt.Sprintf("%s %s HANDICAP", nameTails[rng.IntN(len(nameTails))], nameHeads[rng.IntN(len(nameHeads))]),
		Prize:      prizes[class],
		Going:      going,
		Track:      "TURF",
		Course:     course,
	}

	horses := rng.Perm(g.cfg.Horses)[:g.cfg.FieldSize]
	jockeys := rng.Perm(g.cfg.Jockeys)[:g.cfg.FieldSize]
	draws := rng.Perm(g.cfg.FieldSize)
	runners := make([]runner, g.cfg.FieldSize)
	for k := range runners {
		h := horses[k]
		runners[k] = runner{
			horse:     g.horses[h],
			jockey:    g.jockeys[jockeys[k]],
			trainer:   g.trainers[h%len(g.trainers)],
			draw:      draws[k] + 1,
			time:      float64(race.Distance)*secondsPerMetre + rng.Float64()*paceJitter,
			withdrawn: rng.Float64() < g.cfg.WithdrawnRate,
		}
	}
	// Finishers by time, withdrawn runners last.
	sort.SliceStable(runners, func(a, b int) bool {
		if runners[a].withdrawn != runners[b].withdrawn {
			return !runners[a].withdrawn
		}
		return runners[a].time < runners[b].time
	})

	var winner float64
	for k, r := range runners {
		res := model.Result{
			Date:                s.date,
			RaceNumber:          number,
			RaceIndex:           race.RaceIndex,
			HorseNumber:         k + 1,
			HorseName:           r.horse.name,
			HorseID:             r.horse.id,
			Jockey:              r.jockey.name,
			JockeyID:            r.jockey.id,
			Trainer:             r.trainer.name,
			TrainerID:           r.trainer.id,
			ActualWeight:        minActualWeight + rng.IntN(actualWeightRange),
			DeclaredHorseWeight: minHorseWeight + rng.IntN(horseWeightRange),
			Draw:                r.draw,
			WinOdds:             round(minOdds+rng.Float64()*oddsRange, 1),
		}
		if r.withdrawn {
			res.Position = "WV"
			res.LBW = "---"
			race.Results = append(race.Results, res)
			continue
		}
		pos := k + 1
		res.Position = placement.Normalize(strconv.Itoa(pos))
		res.FinishTime = round(r.time, 2)
		res.RunningPosition = runningPosition(rng, pos, g.cfg.FieldSize)
		if k == 0 {
			winner = r.time
			res.LBW = "-"
			race.Sections = sections(r.time)
		} else {
			res.LBW = decimal.NewFromFloat((r.time - winner) * lengthsPerSecond).Round(2).String()
		}
		race.Results = append(race.Results, res)
	}
	return race
}

// runningPosition places the runner at each call, ending at its finish.
func runningPosition(rng *rand.Rand, finish, field int) string {
	calls := make([]string, sectionCount)
	for i := 0; i < sectionCount-1; i++ {
		calls[i] = strconv.Itoa(1 + rng.IntN(field))
	}
	calls[sectionCount-1] = strconv.Itoa(finish)
	return strings.Join(calls, " ")
}

// sections splits the winning time into cumulative section times.
func sections(total float64) []float64 {
	out := make([]float64, sectionCount)
	for i := range out {
		out[i] = round(total*float64(i+1)/sectionCount, 2)
	}
	return out
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func horseName(i int) string {
	name := nameHeads[i%len(nameHeads)] + " " + nameTails[(i/len(nameHeads))%len(nameTails)]
	if gen := i / (len(nameHeads) * len(nameTails)); gen > 0 {
		name += " " + strconv.Itoa(gen+1)
	}
	return name
}

func personName(i int) string {
	initial := string(rune('A' + i%26))
	name := initial + " " + surnames[(i/26+i)%len(surnames)]
	if gen := i / (26 * len(surnames)); gen > 0 {
		name += " " + strconv.Itoa(gen+1)
	}
	return name
}
