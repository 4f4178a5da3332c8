package history_test

import (
	"testing"

	"github.com/okian/formguide/internal/domain/history"
	"github.com/okian/formguide/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestIndex(t *testing.T) {
	Convey("Given an empty horse index", t, func() {
		idx := history.New("horse", history.WithCapacityHint(16))

		Convey("When looking up an unseen horse", func() {
			h := idx.Lookup("H1")

			Convey("Then the history is empty", func() {
				So(h, ShouldBeEmpty)
				So(idx.Len(), ShouldEqual, 0)
				So(idx.Name(), ShouldEqual, "horse")
			})
		})

		Convey("When appending records", func() {
			idx.Append("H1", model.ParticipationRecord{HorseID: "H1", Position: "01"})
			idx.Append("H1", model.ParticipationRecord{HorseID: "H1", Position: "05"})
			idx.Append("H2", model.ParticipationRecord{HorseID: "H2", Position: "02"})

			Convey("Then lookups return them in append order", func() {
				h := idx.Lookup("H1")
				So(len(h), ShouldEqual, 2)
				So(h[0].Position, ShouldEqual, "01")
				So(h[1].Position, ShouldEqual, "05")
				So(idx.Len(), ShouldEqual, 2)
				So(idx.Size(), ShouldEqual, 3)
			})

			Convey("Then appending to a returned history does not leak into the index", func() {
				h := idx.Lookup("H1")
				_ = append(h, model.ParticipationRecord{HorseID: "H1", Position: "99"})
				idx.Append("H1", model.ParticipationRecord{HorseID: "H1", Position: "03"})

				again := idx.Lookup("H1")
				So(len(again), ShouldEqual, 3)
				So(again[2].Position, ShouldEqual, "03")
			})
		})
	})
}
