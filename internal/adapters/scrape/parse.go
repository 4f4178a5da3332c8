package scrape

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/domain/placement"
)

// Result page selectors.
const (
	selDateRacecourse  = "span.f_fl.f_fs13"
	selRaceInfo        = "div.race_tab table thead tr td:nth-child(1)"
	selClassDistRating = "div.race_tab table tbody tr:nth-child(2) td:nth-child(1)"
	selRaceName        = "div.race_tab table tbody tr:nth-child(3) td:nth-child(1)"
	selGoing           = "div.race_tab table tbody tr:nth-child(2) td:nth-child(3)"
	selPrize           = "div.race_tab table tbody tr:nth-child(4) td:nth-child(1)"
	selTrackCourse     = "div.race_tab table tbody tr:nth-child(3) td:nth-child(3)"
	selSectionalTimes  = "div.race_tab table tbody tr:nth-child(5) td:nth-child(n+3)"
	selHorseTable      = "table.f_tac.table_bd.draggable"
	selIncidentRows    = "table.f_tac.table_bd tbody.f_fs12.fontFam tr"
	selSectionalLink   = "div.raceMeeting_select p.sectional_time_btn.f_clear a"
	selSectionalRows   = "table.table_bd.f_tac.race_table tbody tr"
)

var (
	reDateRacecourse  = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+([A-Za-z ]+)$`)
	reRaceInfo        = regexp.MustCompile(`(\d+)\s+\((\d+)\)`)
	reClassDistRating = regexp.MustCompile(`(.*) - (\d+)M - \(([\d\-]+)\)`)
	reClassDist       = regexp.MustCompile(`(.*) - (\d+)M`)
	reTrackCourse     = regexp.MustCompile(`(.*) - "(.*)"`)
	reNameCode        = regexp.MustCompile(`^(.*?)\s*\((.*?)\)$`)
	reCode            = regexp.MustCompile(`\(([^)]+)\)`)
)

// runningPositionColumns is the width of the horse table once running
// positions are published; older pages have two columns fewer.
const runningPositionColumns = 11

// Page is a parsed result page.
type Page struct {
	Race model.Race
	// SectionalURL links the sectional times page, possibly relative.
	SectionalURL string
}

// directText joins the text nodes directly under s, ignoring child elements.
func directText(s *goquery.Selection) string {
	var parts []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				parts = append(parts, t)
			}
		}
	})
	return strings.Join(parts, " ")
}

// firstDirectText returns the first non-empty direct text in s.
func firstDirectText(s *goquery.Selection) string {
	var out string
	s.EachWithBreak(func(_ int, c *goquery.Selection) bool {
		out = directText(c)
		return out == ""
	})
	return out
}

func first(doc *goquery.Document, sel string) string {
	return directText(doc.Find(sel).First())
}

// ParseResultPage parses the HKJC local results page of one race.
func ParseResultPage(pageURL string, body io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.Find("div.race_tab").Length() == 0 {
		return Page{}, fmt.Errorf("%w: %s", ErrNoResult, pageURL)
	}

	race := model.Race{URL: pageURL}

	if m := reDateRacecourse.FindStringSubmatch(first(doc, selDateRacecourse)); m != nil {
		if race.Date, err = ParseDate(m[1]); err != nil {
			return Page{}, err
		}
		race.Racecourse = strings.TrimSpace(m[2])
	} else if race.Date, err = ParseDate(queryParam(pageURL, "RaceDate")); err != nil {
		return Page{}, fmt.Errorf("%w: no race date on %s", ErrParse, pageURL)
	}

	m := reRaceInfo.FindStringSubmatch(first(doc, selRaceInfo))
	if m == nil {
		return Page{}, fmt.Errorf("%w: no race number on %s", ErrParse, pageURL)
	}
	race.RaceNumber, _ = ParseInt(m[1])
	race.RaceIndex, _ = ParseInt(m[2])

	cdr := first(doc, selClassDistRating)
	if m := reClassDistRating.FindStringSubmatch(cdr); m != nil {
		race.ClassName, race.Rating = strings.TrimSpace(m[1]), m[3]
		race.Distance, _ = ParseInt(m[2])
	} else if m := reClassDist.FindStringSubmatch(cdr); m != nil {
		race.ClassName = strings.TrimSpace(m[1])
		race.Distance, _ = ParseInt(m[2])
	}

	race.Name = first(doc, selRaceName)
	race.Going = first(doc, selGoing)
	if race.Prize, err = ParsePrize(first(doc, selPrize)); err != nil {
		return Page{}, err
	}

	tc := first(doc, selTrackCourse)
	if m := reTrackCourse.FindStringSubmatch(tc); m != nil {
		race.Track, race.Course = strings.TrimSpace(m[1]), m[2]
	} else {
		race.Track = tc
	}

	var secErr error
	doc.Find(selSectionalTimes).Each(func(_ int, td *goquery.Selection) {
		v := strings.Trim(directText(td), "()")
		if v == "" || secErr != nil {
			return
		}
		f, err := ParseDecimal(v)
		if err != nil {
			secErr = err
			return
		}
		race.Sections = append(race.Sections, f)
	})
	if secErr != nil {
		return Page{}, secErr
	}

	if race.Results, err = parseHorseTable(doc, race); err != nil {
		return Page{}, err
	}
	race.Incidents = parseIncidents(doc, race)

	link, _ := doc.Find(selSectionalLink).First().Attr("href")
	return Page{Race: race, SectionalURL: strings.TrimSpace(link)}, nil
}

func parseHorseTable(doc *goquery.Document, race model.Race) ([]model.Result, error) {
	rows := doc.Find(selHorseTable).First().Find("tr")
	if rows.Length() == 0 {
		return nil, nil
	}
	columns := rows.First().Find("td").Length()

	var out []model.Result
	var rowErr error
	rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
		if rowErr != nil {
			return
		}
		td := func(n int) *goquery.Selection { return tr.Find(fmt.Sprintf("td:nth-child(%d)", n)) }
		res := model.Result{
			Date:       race.Date,
			RaceNumber: race.RaceNumber,
			RaceIndex:  race.RaceIndex,
			Position:   placement.Normalize(directText(td(1))),
			HorseName:  strings.TrimSpace(td(3).Find("a").First().Text()),
			LBW:        directText(td(9)),
		}
		href, _ := td(3).Find("a").First().Attr("href")
		res.HorseID = queryParam(href, "HorseId")

		res.Jockey, res.JockeyID = person(td(4), "JockeyId")
		res.Trainer, res.TrainerID = person(td(5), "TrainerId")

		finish, odds := 10, 11
		if columns > runningPositionColumns {
			var pos []string
			td(10).Find("div div").Each(func(_ int, d *goquery.Selection) {
				if t := strings.TrimSpace(d.Text()); t != "" {
					pos = append(pos, t)
				}
			})
			res.RunningPosition = strings.Join(pos, " ")
			finish, odds = 11, 12
		}

		var err error
		set := func(dst *int, n int) {
			if err == nil {
				*dst, err = ParseInt(directText(td(n)))
			}
		}
		set(&res.HorseNumber, 2)
		set(&res.ActualWeight, 6)
		set(&res.DeclaredHorseWeight, 7)
		set(&res.Draw, 8)
		if err == nil {
			res.FinishTime, err = ParseFinishTime(directText(td(finish)))
		}
		if err == nil {
			res.WinOdds, err = ParseDecimal(directText(td(odds)))
		}
		if err != nil {
			rowErr = fmt.Errorf("horse %s: %w", res.HorseID, err)
			return
		}
		out = append(out, res)
	})
	return out, rowErr
}

// person reads a jockey or trainer cell: a profile link when one exists,
// plain text otherwise.
func person(td *goquery.Selection, idParam string) (name, id string) {
	if a := td.Find("a").First(); a.Length() > 0 {
		href, _ := a.Attr("href")
		return strings.TrimSpace(a.Text()), queryParam(href, idParam)
	}
	return directText(td), ""
}

func parseIncidents(doc *goquery.Document, race model.Race) []model.Incident {
	var out []model.Incident
	doc.Find(selIncidentRows).Each(func(_ int, tr *goquery.Selection) {
		td := func(n int) *goquery.Selection { return tr.Find(fmt.Sprintf("td:nth-child(%d)", n)) }
		inc := model.Incident{
			Date:          race.Date,
			RaceNumber:    race.RaceNumber,
			PositionFinal: placement.Normalize(directText(td(1))),
			HorseName:     strings.TrimSpace(td(3).Find("a").First().Text()),
			Description:   directText(td(4)),
		}
		inc.HorseNumber, _ = ParseInt(directText(td(2)))
		if m := reCode.FindStringSubmatch(directText(td(3))); m != nil {
			inc.HorseCode = m[1]
		}
		href, _ := td(3).Find("a").First().Attr("href")
		inc.HorseID = queryParam(href, "HorseId")
		out = append(out, inc)
	})
	return out
}

// sectionCount is the maximum number of sections on the sectional times page.
const sectionCount = 6

// ParseSectionalPage parses the sectional times page of one race. The race is
// identified by the RaceDate and RaceNo parameters of pageURL.
func ParseSectionalPage(pageURL string, body io.Reader) ([]model.SectionalTime, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	date, err := ParseDate(queryParam(pageURL, "RaceDate"))
	if err != nil {
		return nil, err
	}
	raceNo, err := ParseInt(queryParam(pageURL, "RaceNo"))
	if err != nil {
		return nil, err
	}

	var out []model.SectionalTime
	var rowErr error
	doc.Find(selSectionalRows).Each(func(_ int, tr *goquery.Selection) {
		if rowErr != nil {
			return
		}
		td := func(n int) *goquery.Selection { return tr.Find(fmt.Sprintf("td:nth-child(%d)", n)) }
		base := model.SectionalTime{
			Date:          date,
			RaceNumber:    raceNo,
			PositionFinal: placement.Normalize(directText(td(1))),
		}
		base.HorseNumber, _ = ParseInt(directText(td(2)))
		a := td(3).Find("a").First()
		if m := reNameCode.FindStringSubmatch(strings.TrimSpace(a.Text())); m != nil {
			base.HorseName, base.HorseCode = m[1], m[2]
		} else {
			base.HorseName = strings.TrimSpace(a.Text())
		}
		href, _ := a.Attr("href")
		base.HorseID = queryParam(href, "HorseId")

		for s := 1; s <= sectionCount; s++ {
			cell := td(s + 3)
			pos := strings.TrimSpace(cell.Find("span.f_fl").First().Text())
			if pos == "" {
				continue
			}
			st := base
			st.Section = s
			st.LBW = strings.TrimSpace(cell.Find("i").First().Text())
			var err error
			if st.Position, err = ParseInt(pos); err == nil {
				st.Time, err = ParseDecimal(firstDirectText(cell.Find("p")))
			}
			subs := cell.Find("span.color_blue2 span")
			if err == nil && subs.Length() >= 2 {
				if st.Subtime1, err = ParseOptionalDecimal(subs.Eq(0).Text()); err == nil {
					st.Subtime2, err = ParseOptionalDecimal(subs.Eq(1).Text())
				}
			}
			if err != nil {
				rowErr = fmt.Errorf("horse %s section %d: %w", base.HorseID, s, err)
				return
			}
			out = append(out, st)
		}
	})
	return out, rowErr
}
