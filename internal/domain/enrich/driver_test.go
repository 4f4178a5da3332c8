package enrich_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/formguide/internal/domain/enrich"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/variables"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(horse, jockey, date string, raceIndex int, position string) model.ParticipationRecord {
	d := model.MustDate(date)
	return model.ParticipationRecord{
		HorseID:   horse,
		JockeyID:  jockey,
		Date:      d,
		Season:    model.SeasonOf(d),
		RaceIndex: raceIndex,
		Distance:  1200,
		Position:  position,
	}
}

// fixture builds a reproducible season of races with overlapping horses and jockeys.
func fixture(seed int64, races int) []model.ParticipationRecord {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic fixture
	start := model.MustDate("2023-09-03")
	codes := []string{"WV", "PU", "01 DH"}
	var out []model.ParticipationRecord
	for i := range races {
		date := start.AddDate(0, 0, 3*(i/8)).Format(model.DateLayout)
		runners := 6 + rng.Intn(6)
		picked := rng.Perm(40)[:runners]
		for pos, h := range picked {
			code := fmt.Sprintf("%02d", pos+1)
			if rng.Intn(20) == 0 {
				code = codes[rng.Intn(len(codes))]
			}
			r := rec(fmt.Sprintf("H%03d", h), fmt.Sprintf("J%02d", rng.Intn(12)), date, i+1, code)
			r.Draw = pos + 1
			r.Rating = 40 + rng.Intn(40)
			r.ActualWeight = 113 + rng.Intn(21)
			r.RaceClass = "Class 4"
			out = append(out, r)
		}
	}
	return out
}

func newDriver(opts ...enrich.Option) *enrich.Driver {
	cs := variables.Builtin()
	return enrich.NewDriver(variables.MustEngine(cs, variables.BuiltinGroups()...), opts...)
}

func find(out []model.EnrichedRecord, horse string, raceIndex int) model.EnrichedRecord {
	for _, r := range out {
		if r.HorseID == horse && r.RaceIndex == raceIndex {
			return r
		}
	}
	panic("record not found: " + horse)
}

func TestDriverStatistics(t *testing.T) {
	ctx := context.Background()

	Convey("Given a horse with three earlier runs", t, func() {
		in := []model.ParticipationRecord{
			rec("H1", "J1", "2024-09-08", 1, "01"),
			rec("H1", "J1", "2024-09-15", 10, "03"),
			rec("H1", "J2", "2024-09-22", 20, "05"),
			rec("H1", "J1", "2024-10-01", 30, "02"),
		}
		out, err := newDriver().Process(ctx, in)
		So(err, ShouldBeNil)
		So(len(out), ShouldEqual, 4)

		Convey("Then the fourth run sees exactly the first three", func() {
			s := find(out, "H1", 30).Stats
			So(s[variables.ColTotalRuns], ShouldEqual, 3)
			So(s[variables.ColTop1], ShouldEqual, 1)
			So(s[variables.ColTop2], ShouldEqual, 1)
			So(s[variables.ColTop3], ShouldEqual, 2)
			So(s[variables.ColTop1Rate], ShouldAlmostEqual, 1.0/3, 1e-12)
			So(s[variables.ColTop3Rate], ShouldAlmostEqual, 2.0/3, 1e-12)
			So(s[variables.ColDaysSinceLastRun], ShouldEqual, 9)
			So(s[variables.ColJockeySeasonalRuns], ShouldEqual, 2)
		})

		Convey("Then the debut has no horse or jockey statistics", func() {
			s := find(out, "H1", 1).Stats
			So(s.Has(variables.ColTotalRuns), ShouldBeFalse)
			So(s.Has(variables.ColDaysSinceLastRun), ShouldBeFalse)
			So(s.Has(variables.ColJockeySeasonalRuns), ShouldBeFalse)
		})
	})

	Convey("Given two runners in one race sharing a jockey key", t, func() {
		in := []model.ParticipationRecord{
			rec("A", "", "2024-09-08", 1, "01"),
			rec("B", "", "2024-09-08", 1, "02"),
			rec("A", "", "2024-09-15", 2, "03"),
		}
		for i := range in {
			in[i].Jockey = "Z Purton"
		}
		out, err := newDriver().Process(ctx, in)
		So(err, ShouldBeNil)

		Convey("Then neither sees the other", func() {
			So(find(out, "A", 1).Stats, ShouldBeEmpty)
			So(find(out, "B", 1).Stats.Has(variables.ColJockeySeasonalRuns), ShouldBeFalse)
		})

		Convey("Then the next race sees both rides of the jockey", func() {
			s := find(out, "A", 2).Stats
			So(s[variables.ColJockeySeasonalRuns], ShouldEqual, 2)
			So(s[variables.ColJockeyTotalRuns], ShouldEqual, 2)
			So(s[variables.ColTotalRuns], ShouldEqual, 1)
		})
	})

	Convey("Given records without any jockey", t, func() {
		in := []model.ParticipationRecord{
			rec("A", "", "2024-09-08", 1, "01"),
			rec("A", "", "2024-09-15", 2, "03"),
		}
		out, rep, err := newDriver().Run(ctx, in)
		So(err, ShouldBeNil)

		So(find(out, "A", 2).Stats.Has(variables.ColJockeySeasonalRuns), ShouldBeFalse)
		So(rep.JockeyEntities, ShouldEqual, 0)
		So(rep.HorseRecords, ShouldEqual, 2)
	})
}

func TestDriverProperties(t *testing.T) {
	ctx := context.Background()
	records := fixture(7, 120)

	Convey("Output does not depend on input order", t, func() {
		want, err := newDriver().Process(ctx, records)
		So(err, ShouldBeNil)

		for _, seed := range []int64{1, 2, 3} {
			shuffled := append([]model.ParticipationRecord(nil), records...)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) { //nolint:gosec // deterministic shuffle
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			got, err := newDriver().Process(ctx, shuffled)
			So(err, ShouldBeNil)
			So(cmp.Diff(want, got), ShouldBeEmpty)
		}
	})

	Convey("Statistics ignore later races", t, func() {
		cut := model.MustDate("2023-10-15")
		var past []model.ParticipationRecord
		for _, r := range records {
			if r.Date.Before(cut) {
				past = append(past, r)
			}
		}
		full, err := newDriver().Process(ctx, records)
		So(err, ShouldBeNil)
		partial, err := newDriver().Process(ctx, past)
		So(err, ShouldBeNil)

		So(len(partial), ShouldBeGreaterThan, 0)
		So(cmp.Diff(partial, full[:len(partial)]), ShouldBeEmpty)
	})

	Convey("A record's own outcome does not change its statistics", t, func() {
		changed := append([]model.ParticipationRecord(nil), records...)
		last := len(changed) - 1
		changed[last].Position = "PU"

		a, err := newDriver().Process(ctx, records)
		So(err, ShouldBeNil)
		b, err := newDriver().Process(ctx, changed)
		So(err, ShouldBeNil)

		target := records[last]
		So(cmp.Diff(find(a, target.HorseID, target.RaceIndex).Stats, find(b, target.HorseID, target.RaceIndex).Stats), ShouldBeEmpty)
	})

	Convey("total_runs never decreases along a horse's history", t, func() {
		out, err := newDriver().Process(ctx, records)
		So(err, ShouldBeNil)

		last := map[string]float64{}
		for _, r := range out {
			n, ok := r.Stats.Get(variables.ColTotalRuns)
			if !ok {
				So(last, ShouldNotContainKey, r.HorseID)
				last[r.HorseID] = 0
				continue
			}
			So(n, ShouldBeGreaterThan, last[r.HorseID])
			last[r.HorseID] = n
		}
	})

	Convey("Output is chronological and group statistics are present", t, func() {
		out, rep, err := newDriver().Run(ctx, records)
		So(err, ShouldBeNil)
		So(rep.Races, ShouldEqual, 120)
		So(rep.Processed, ShouldEqual, len(records))
		for i := 1; i < len(out); i++ {
			So(out[i].Key().Before(out[i-1].Key()), ShouldBeFalse)
		}
		So(out[0].Stats.Has(variables.ColNormalizedDraw), ShouldBeTrue)
		So(out[0].Stats[variables.ColRaceClassLevel], ShouldEqual, 4)
	})
}

func TestDriverPolicy(t *testing.T) {
	ctx := context.Background()
	in := []model.ParticipationRecord{
		rec("A", "J1", "2024-09-08", 1, "01"),
		{Date: model.MustDate("2024-09-08"), RaceIndex: 1},
		rec("A", "J1", "2024-09-15", 2, "03"),
		{HorseID: "B"},
	}

	Convey("Under the strict policy the first malformed record aborts the pass", t, func() {
		_, err := newDriver(enrich.WithPolicy(model.PolicyStrict)).Process(ctx, in)
		So(errors.Is(err, model.ErrMalformedRecord), ShouldBeTrue)

		var mre *model.MalformedRecordError
		So(errors.As(err, &mre), ShouldBeTrue)
		So(mre.Line, ShouldEqual, 2)
		So(mre.Field, ShouldEqual, "horse_id")
	})

	Convey("Under the skip policy malformed records are counted and dropped", t, func() {
		out, rep, err := newDriver(enrich.WithPolicy(model.PolicySkip)).Run(ctx, in)
		So(err, ShouldBeNil)
		So(len(out), ShouldEqual, 2)
		So(rep.Skipped, ShouldEqual, 2)
		So(rep.Input, ShouldEqual, 4)
	})
}

func TestDriverProgress(t *testing.T) {
	Convey("Progress is reported every n records and at the end", t, func() {
		var calls [][2]int
		d := newDriver(enrich.WithProgress(100, func(done, total int) {
			calls = append(calls, [2]int{done, total})
		}))
		records := fixture(3, 30)
		_, err := d.Process(context.Background(), records)
		So(err, ShouldBeNil)

		So(len(calls), ShouldEqual, len(records)/100+boolToInt(len(records)%100 != 0))
		So(calls[0][0], ShouldEqual, min(100, len(records)))
		So(calls[len(calls)-1][0], ShouldEqual, len(records))
		So(calls[len(calls)-1][1], ShouldEqual, len(records))
	})
}

func TestSort(t *testing.T) {
	Convey("Sort orders by date, race, horse and jockey", t, func() {
		in := []model.ParticipationRecord{
			rec("B", "J2", "2024-09-08", 2, ""),
			rec("A", "J1", "2024-09-08", 2, ""),
			rec("C", "J1", "2024-09-01", 9, ""),
			rec("A", "J1", "2024-09-08", 1, ""),
		}
		in[2].Date = in[2].Date.In(time.FixedZone("HKT", 8*3600))
		enrich.Sort(in)

		var got []string
		for _, r := range in {
			got = append(got, fmt.Sprintf("%d%s", r.RaceIndex, r.HorseID))
		}
		So(got, ShouldResemble, []string{"9C", "1A", "2A", "2B"})
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
