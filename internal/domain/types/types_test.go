package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHorseRun(t *testing.T) {
	Convey("Given an enriched debut", t, func() {
		r := model.NewEnrichedRecord(model.ParticipationRecord{
			HorseID:   "HK_2022_H123",
			HorseName: "GOLDEN SIXTY",
			Date:      model.MustDate("2024-09-08"),
			RaceIndex: 3,
			Position:  "01",
		})

		Convey("When converting it", func() {
			hr := types.NewHorseRun("run-1", r)

			Convey("Then the date is ISO and stats are an empty object", func() {
				So(hr.Date, ShouldEqual, "2024-09-08")
				So(hr.Stats, ShouldNotBeNil)
				b, err := json.Marshal(hr)
				So(err, ShouldBeNil)
				So(string(b), ShouldContainSubstring, `"stats":{}`)
				So(string(b), ShouldNotContainSubstring, "jockey_id")
			})
		})

		Convey("When the record has statistics", func() {
			r.Stats.Set("total_runs", 4)
			hr := types.NewHorseRun("run-1", r)
			r.Stats.Set("total_runs", 5)

			Convey("Then the converted copy is independent", func() {
				So(hr.Stats["total_runs"], ShouldEqual, 4)
			})
		})
	})
}

func TestRunSummary(t *testing.T) {
	Convey("Duration is zero until the run finishes", t, func() {
		start := time.Date(2024, 9, 8, 12, 0, 0, 0, time.UTC)
		s := types.RunSummary{StartedAt: start}
		So(s.Duration(), ShouldEqual, 0)
		s.FinishedAt = start.Add(3 * time.Second)
		So(s.Duration(), ShouldEqual, 3*time.Second)
	})
}
