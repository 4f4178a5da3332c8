package scrape_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/okian/formguide/internal/adapters/scrape"
	"github.com/okian/formguide/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return b
}

func TestParseResultPage(t *testing.T) {
	Convey("Given the result page of a race", t, func() {
		page, err := scrape.ParseResultPage(
			"https://racing.hkjc.com/racing/information/English/Racing/LocalResults.aspx?RaceDate=2024/09/08&Racecourse=ST&RaceNo=1",
			strings.NewReader(string(fixture(t, "results.html"))),
		)
		So(err, ShouldBeNil)
		race := page.Race

		Convey("Then the race header is parsed", func() {
			So(race.Date.Equal(model.MustDate("2024-09-08")), ShouldBeTrue)
			So(race.Racecourse, ShouldEqual, "Sha Tin")
			So(race.RaceNumber, ShouldEqual, 1)
			So(race.RaceIndex, ShouldEqual, 1)
			So(race.ClassName, ShouldEqual, "Class 4")
			So(race.Distance, ShouldEqual, 1200)
			So(race.Rating, ShouldEqual, "60-40")
			So(race.Name, ShouldEqual, "TIN SHUI WAI HANDICAP")
			So(race.Going, ShouldEqual, "GOOD")
			So(race.Prize, ShouldEqual, 1170000)
			So(race.Track, ShouldEqual, "TURF")
			So(race.Course, ShouldEqual, "A")
			So(race.Sections, ShouldResemble, []float64{23.85, 22.14, 23.75})
		})

		Convey("Then runners are parsed with padded placement codes", func() {
			So(len(race.Results), ShouldEqual, 3)
			win := race.Results[0]
			So(win.Position, ShouldEqual, "01")
			So(win.HorseID, ShouldEqual, "HK_2022_H432")
			So(win.HorseName, ShouldEqual, "CALIFORNIA SPANGLE")
			So(win.JockeyID, ShouldEqual, "PZ")
			So(win.TrainerID, ShouldEqual, "SJJ")
			So(win.ActualWeight, ShouldEqual, 128)
			So(win.DeclaredHorseWeight, ShouldEqual, 1105)
			So(win.Draw, ShouldEqual, 5)
			So(win.RunningPosition, ShouldEqual, "3 2 1")
			So(win.FinishTime, ShouldEqual, 69.74)
			So(win.WinOdds, ShouldEqual, 3.5)

			dh := race.Results[1]
			So(dh.Position, ShouldEqual, "02 DH")
			So(dh.Jockey, ShouldEqual, "K Teetan")
			So(dh.JockeyID, ShouldBeEmpty)

			wv := race.Results[2]
			So(wv.Position, ShouldEqual, "WV")
			So(wv.Draw, ShouldEqual, 0)
			So(wv.FinishTime, ShouldEqual, 0)
		})

		Convey("Then incidents and the sectional link are found", func() {
			So(len(race.Incidents), ShouldEqual, 1)
			So(race.Incidents[0].HorseCode, ShouldEqual, "E999")
			So(race.Incidents[0].HorseID, ShouldEqual, "HK_2020_E999")
			So(page.SectionalURL, ShouldStartWith, "/racing/information/English/Racing/DisplaySectionalTime.aspx")
		})
	})

	Convey("Given a page without a race", t, func() {
		_, err := scrape.ParseResultPage("x", strings.NewReader("<html><body>No information.</body></html>"))
		So(errors.Is(err, scrape.ErrNoResult), ShouldBeTrue)
	})
}

func TestParseSectionalPage(t *testing.T) {
	Convey("Given the sectional times page of a race", t, func() {
		secs, err := scrape.ParseSectionalPage(
			"https://racing.hkjc.com/racing/information/English/Racing/DisplaySectionalTime.aspx?RaceDate=08/09/2024&RaceNo=1",
			strings.NewReader(string(fixture(t, "sectional.html"))),
		)
		So(err, ShouldBeNil)

		Convey("Then one row per run section is produced", func() {
			So(len(secs), ShouldEqual, 5)
			s := secs[0]
			So(s.Date.Equal(model.MustDate("2024-09-08")), ShouldBeTrue)
			So(s.HorseName, ShouldEqual, "CALIFORNIA SPANGLE")
			So(s.HorseCode, ShouldEqual, "H432")
			So(s.HorseID, ShouldEqual, "HK_2022_H432")
			So(s.PositionFinal, ShouldEqual, "01")
			So(s.Section, ShouldEqual, 1)
			So(s.Position, ShouldEqual, 3)
			So(s.LBW, ShouldEqual, "1-1/4")
			So(s.Time, ShouldEqual, 24.13)
			So(*s.Subtime1, ShouldEqual, 11.95)
			So(*s.Subtime2, ShouldEqual, 12.18)
			So(secs[1].Subtime1, ShouldBeNil)
			So(secs[4].PositionFinal, ShouldEqual, "02 DH")
			So(secs[4].Section, ShouldEqual, 2)
		})
	})
}

func TestFetcher(t *testing.T) {
	results, sectional := fixture(t, "results.html"), fixture(t, "sectional.html")

	Convey("Given a site serving a result page and its sectional times", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/racing/information/English/Racing/LocalResults.aspx", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(results)
		})
		mux.HandleFunc("/racing/information/English/Racing/DisplaySectionalTime.aspx", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(sectional)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		f := scrape.NewFetcher(scrape.WithUserAgent("formguide-test"))
		base := srv.URL + "/racing/information/English/Racing/LocalResults.aspx"

		Convey("When fetching the race", func() {
			page, err := f.FetchRace(context.Background(), scrape.ResultURL(base, model.MustDate("2024-09-08"), "ST", 1))

			Convey("Then sectionals are attached to their runners", func() {
				So(err, ShouldBeNil)
				So(page.SectionalURL, ShouldStartWith, srv.URL)
				So(len(page.Race.Sectionals), ShouldEqual, 5)
				So(len(page.Race.Results[0].Sectionals), ShouldEqual, 3)
				So(len(page.Race.Results[1].Sectionals), ShouldEqual, 2)
				So(page.Race.Results[2].Sectionals, ShouldBeEmpty)
			})
		})

		Convey("When the page does not exist", func() {
			_, err := f.FetchRace(context.Background(), srv.URL+"/missing")
			So(errors.Is(err, scrape.ErrFetch), ShouldBeTrue)
		})
	})
}

func TestTargets(t *testing.T) {
	Convey("Meetings expand into one URL per race", t, func() {
		ts := scrape.Targets("", []scrape.Meeting{
			{Date: model.MustDate("2024-09-08"), Racecourse: "ST", MaxRace: 2},
			{Date: model.MustDate("2024-09-11"), Racecourse: "HV", MaxRace: 1},
		})
		So(len(ts), ShouldEqual, 3)
		So(ts[0].URL, ShouldEqual, scrape.DefaultBaseURL+"?RaceDate=2024/09/08&RaceNo=1&Racecourse=ST")
		So(ts[2].Racecourse, ShouldEqual, "HV")
	})
}

func TestConverters(t *testing.T) {
	Convey("Field converters", t, func() {
		p, err := scrape.ParsePrize("HK$ 1,170,000")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, 1170000)

		ft, err := scrape.ParseFinishTime("1:09.745")
		So(err, ShouldBeNil)
		So(ft, ShouldEqual, 69.75)

		ft, _ = scrape.ParseFinishTime("---")
		So(ft, ShouldEqual, 0)

		_, err = scrape.ParseFinishTime("1:xx")
		So(errors.Is(err, scrape.ErrParse), ShouldBeTrue)

		_, err = scrape.ParseInt("12.5")
		So(errors.Is(err, scrape.ErrParse), ShouldBeTrue)

		v, err := scrape.ParseOptionalDecimal("")
		So(err, ShouldBeNil)
		So(v, ShouldBeNil)
	})
}
