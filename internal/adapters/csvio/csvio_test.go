package csvio_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/formguide/internal/adapters/csvio"
	"github.com/okian/formguide/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sample() []model.ParticipationRecord {
	d := model.MustDate("2024-09-08")
	return []model.ParticipationRecord{
		{
			HorseID: "HK_2022_H432", HorseName: "CALIFORNIA SPANGLE", HorseNumber: 3,
			JockeyID: "PZ", Jockey: "Z Purton", TrainerID: "SJJ", Trainer: "J Size",
			Date: d, Season: "2024-25", RaceIndex: 1, RaceNumber: 1, Racecourse: "ST",
			Track: "TURF", Course: "A", Distance: 1200, Going: "GOOD", RaceClass: "Class 4",
			Draw: 5, Rating: 52, ActualWeight: 128, DeclaredHorseWeight: 1105,
			Position: "01", LBW: "-", RunningPosition: "3 2 1", FinishTime: 69.45, WinOdds: 3.5,
		},
		{
			HorseID: "HK_2021_G011", HorseName: "SHINING, STAR", Date: d, Season: "2024-25",
			RaceIndex: 1, RaceNumber: 1, Jockey: "K Teetan", Position: "WV",
		},
	}
}

func TestParticipationsRoundTrip(t *testing.T) {
	Convey("Given records written as CSV", t, func() {
		var buf bytes.Buffer
		So(csvio.WriteParticipations(&buf, sample()), ShouldBeNil)

		Convey("When reading them back", func() {
			got, rep, err := csvio.ReadParticipations(context.Background(), &buf)

			Convey("Then every field survives", func() {
				So(err, ShouldBeNil)
				So(rep.Rows, ShouldEqual, 2)
				So(rep.Skipped, ShouldEqual, 0)
				So(cmp.Diff(sample(), got), ShouldBeEmpty)
			})
		})
	})
}

func TestReadParticipations(t *testing.T) {
	ctx := context.Background()

	Convey("Given a legacy header with aliases and an unpadded rank", t, func() {
		in := "Horse_ID,Date,race_index,plc,act_wt,class_name,finish_time,extra\n" +
			"H1,2024-07-01,700,1,126,Class 3,1:09.45,x\n"
		got, _, err := csvio.ReadParticipations(ctx, strings.NewReader(in))
		So(err, ShouldBeNil)
		So(len(got), ShouldEqual, 1)

		Convey("Then columns bind by alias and the code is kept as written", func() {
			r := got[0]
			So(r.Position, ShouldEqual, "1")
			So(r.ActualWeight, ShouldEqual, 126)
			So(r.RaceClass, ShouldEqual, "Class 3")
			So(r.FinishTime, ShouldEqual, 69.45)
			So(r.Season, ShouldEqual, "2023-24")
		})
	})

	Convey("Given a missing required column", t, func() {
		_, _, err := csvio.ReadParticipations(ctx, strings.NewReader("horse_id,date\nH1,2024-07-01\n"))
		So(errors.Is(err, csvio.ErrMissingColumn), ShouldBeTrue)
	})

	Convey("Given empty input", t, func() {
		_, _, err := csvio.ReadParticipations(ctx, strings.NewReader(""))
		So(errors.Is(err, csvio.ErrEmptyInput), ShouldBeTrue)
	})

	Convey("Given malformed rows", t, func() {
		in := "horse_id,date,race_index,draw\n" +
			"H1,2024-09-08,1,4\n" +
			"H2,2024-02-31,1,5\n" +
			",2024-09-08,1,6\n" +
			"H4,2024-09-08,1,x\n" +
			"H5,2024-09-08,1,7\n"

		Convey("When the policy is strict", func() {
			_, _, err := csvio.ReadParticipations(ctx, strings.NewReader(in), csvio.WithPolicy(model.PolicyStrict))

			Convey("Then the first bad row aborts with its line", func() {
				var mre *model.MalformedRecordError
				So(errors.As(err, &mre), ShouldBeTrue)
				So(mre.Line, ShouldEqual, 3)
				So(mre.Field, ShouldEqual, "date")
				So(mre.Value, ShouldEqual, "2024-02-31")
			})
		})

		Convey("When the policy is skip", func() {
			got, rep, err := csvio.ReadParticipations(ctx, strings.NewReader(in), csvio.WithPolicy(model.PolicySkip))

			Convey("Then good rows are kept and bad ones counted", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[1].HorseID, ShouldEqual, "H5")
				So(rep.Rows, ShouldEqual, 5)
				So(rep.Skipped, ShouldEqual, 3)
			})
		})
	})
}

func TestEnrichedWriter(t *testing.T) {
	recs := sample()
	first := model.NewEnrichedRecord(recs[0])
	first.Stats.Set("total_runs", 3)
	first.Stats.Set("top1_rate", 1.0/3)
	second := model.NewEnrichedRecord(recs[1])
	derived := []string{"total_runs", "top1_rate"}

	read := func(b *bytes.Buffer) [][]string {
		rows, err := csv.NewReader(b).ReadAll()
		So(err, ShouldBeNil)
		return rows
	}

	Convey("Given enriched records with and without statistics", t, func() {
		Convey("When written with defaults", func() {
			var buf bytes.Buffer
			So(csvio.WriteEnriched(&buf, derived, []model.EnrichedRecord{first, second}), ShouldBeNil)
			rows := read(&buf)

			Convey("Then derived columns follow the participation columns", func() {
				header := rows[0]
				n := len(csvio.ParticipationColumns())
				So(header[:n], ShouldResemble, csvio.ParticipationColumns())
				So(header[n:], ShouldResemble, derived)
			})

			Convey("Then absent statistics are empty cells", func() {
				n := len(csvio.ParticipationColumns())
				So(rows[1][n], ShouldEqual, "3")
				So(rows[2][n], ShouldEqual, "")
				So(rows[2][n+1], ShouldEqual, "")
			})
		})

		Convey("When written with fill_missing", func() {
			var buf bytes.Buffer
			So(csvio.WriteEnriched(&buf, derived, []model.EnrichedRecord{second}, csvio.WithFillMissing(true)), ShouldBeNil)
			rows := read(&buf)
			n := len(csvio.ParticipationColumns())
			So(rows[1][n:], ShouldResemble, []string{"0", "0"})
		})

		Convey("When nothing is written", func() {
			var buf bytes.Buffer
			w := csvio.NewEnrichedWriter(&buf, derived)
			So(w.Flush(), ShouldBeNil)
			So(len(read(&buf)), ShouldEqual, 1)
		})
	})
}
