package synth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/placement"
	"github.com/okian/formguide/internal/synth"
)

func smallConfig() synth.Config {
	cfg := synth.DefaultConfig()
	cfg.Meetings = 6
	cfg.RacesPerMeeting = 3
	cfg.FieldSize = 8
	cfg.Horses = 30
	cfg.Jockeys = 10
	cfg.WithdrawnRate = 0.1
	return cfg
}

func races(t *testing.T, cfg synth.Config) []model.Race {
	t.Helper()
	g, err := synth.New(cfg)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	out, err := g.Races(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return out
}

func TestGenerator_Determinism(t *testing.T) {
	Convey("Given two generators with the same config", t, func() {
		cfg := smallConfig()
		first := races(t, cfg)

		Convey("Then the worker count does not change the output", func() {
			cfg.Workers = 1
			So(cmp.Diff(first, races(t, cfg)), ShouldBeEmpty)
		})

		Convey("Then a different seed changes the output", func() {
			cfg.Seed++
			So(cmp.Diff(first, races(t, cfg)), ShouldNotBeEmpty)
		})
	})
}

func TestGenerator_Races(t *testing.T) {
	Convey("Given a generated history", t, func() {
		cfg := smallConfig()
		out := races(t, cfg)

		Convey("Then every meeting has its races in order", func() {
			So(out, ShouldHaveLength, cfg.Meetings*cfg.RacesPerMeeting)
			for i := 1; i < len(out); i++ {
				prev := model.RaceKey{Date: out[i-1].Date, RaceIndex: out[i-1].RaceIndex}
				So(prev.Before(model.RaceKey{Date: out[i].Date, RaceIndex: out[i].RaceIndex}), ShouldBeTrue)
			}
			So(out[0].Date.Equal(cfg.Start), ShouldBeTrue)
			So(out[0].Racecourse, ShouldEqual, "ST")
			So(out[cfg.RacesPerMeeting].Racecourse, ShouldEqual, "HV")
			So(out[0].RaceIndex, ShouldEqual, 1)
		})

		Convey("Then each field is full with unique horses and plausible codes", func() {
			for _, race := range out {
				So(race.Results, ShouldHaveLength, cfg.FieldSize)
				seen := map[string]bool{}
				for _, res := range race.Results {
					So(seen[res.HorseID], ShouldBeFalse)
					seen[res.HorseID] = true
					So(res.HorseID, ShouldNotBeEmpty)
					So(res.JockeyID, ShouldNotBeEmpty)
					So(res.Position == "WV" || placement.Finished(res.Position), ShouldBeTrue)
				}
			}
		})

		Convey("Then finishers are ranked by time", func() {
			for _, race := range out {
				prev := 0.0
				for _, res := range race.Results {
					if res.Position == "WV" {
						continue
					}
					So(res.FinishTime, ShouldBeGreaterThanOrEqualTo, prev)
					prev = res.FinishTime
				}
			}
		})
	})
}

func TestGenerator_SeasonRollover(t *testing.T) {
	Convey("Given meetings that cross the September season start", t, func() {
		cfg := smallConfig()
		cfg.Start = model.MustDate("2024-08-25")
		out := races(t, cfg)

		Convey("Then the race index restarts with the new season", func() {
			So(model.SeasonOf(out[0].Date), ShouldEqual, "2023-24")
			var firstOfSeason model.Race
			for _, r := range out {
				if model.SeasonOf(r.Date) == "2024-25" {
					firstOfSeason = r
					break
				}
			}
			So(firstOfSeason.RaceIndex, ShouldEqual, 1)
		})
	})
}

func TestGenerator_Records(t *testing.T) {
	Convey("Records flattens the races into participations", t, func() {
		cfg := smallConfig()
		g, err := synth.New(cfg)
		So(err, ShouldBeNil)
		recs, err := g.Records(context.Background())
		So(err, ShouldBeNil)
		So(recs, ShouldHaveLength, cfg.Meetings*cfg.RacesPerMeeting*cfg.FieldSize)
		So(recs[0].Season, ShouldEqual, "2024-25")
		So(recs[0].Validate(), ShouldBeNil)
	})
}

func TestGenerator_Cancelled(t *testing.T) {
	Convey("A cancelled context stops generation", t, func() {
		g, err := synth.New(smallConfig())
		So(err, ShouldBeNil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = g.Races(ctx)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestConfig_Validate(t *testing.T) {
	Convey("Given invalid configs", t, func() {
		cases := []struct {
			name   string
			mutate func(*synth.Config)
		}{
			{"no meetings", func(c *synth.Config) { c.Meetings = 0 }},
			{"no races", func(c *synth.Config) { c.RacesPerMeeting = 0 }},
			{"too few horses", func(c *synth.Config) { c.Horses = c.FieldSize - 1 }},
			{"too few jockeys", func(c *synth.Config) { c.Jockeys = 1 }},
			{"withdrawn rate", func(c *synth.Config) { c.WithdrawnRate = 1 }},
		}
		for _, tc := range cases {
			cfg := smallConfig()
			tc.mutate(&cfg)
			_, err := synth.New(cfg)
			So(errors.Is(err, synth.ErrInvalidConfig), ShouldBeTrue)
		}
		So(synth.DefaultConfig().Validate(), ShouldBeNil)
	})
}
