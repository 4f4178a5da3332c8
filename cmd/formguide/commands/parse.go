package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/okian/formguide/internal/adapters/scrape"
	"github.com/okian/formguide/internal/domain/model"
)

func newParseCmd(_ *state) *cobra.Command {
	var pageURL, sectional, out string
	cmd := &cobra.Command{
		Use:   "parse <results.html>",
		Short: "Parses a saved result page, and optionally its sectional times page.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			race, err := parseSaved(args[0], sectional, pageURL)
			if err != nil {
				return err
			}
			if out != "" {
				return writeFeeds(out, []model.Race{race})
			}
			printRace(cmd.OutOrStdout(), race)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&pageURL, "url", "", "URL the page was saved from; supplies date and racecourse")
	f.StringVar(&sectional, "sectional", "", "saved sectional times page")
	f.StringVarP(&out, "out", "o", "", "feed directory to write instead of printing")
	return cmd
}

func parseSaved(resultPath, sectionalPath, pageURL string) (model.Race, error) {
	f, err := os.Open(resultPath) //nolint:gosec // path comes from the operator
	if err != nil {
		return model.Race{}, fmt.Errorf("open result page: %w", err)
	}
	defer f.Close()
	page, err := scrape.ParseResultPage(pageURL, f)
	if err != nil {
		return model.Race{}, err
	}
	if sectionalPath == "" {
		return page.Race, nil
	}

	sf, err := os.Open(sectionalPath) //nolint:gosec // path comes from the operator
	if err != nil {
		return model.Race{}, fmt.Errorf("open sectional page: %w", err)
	}
	defer sf.Close()
	// The sectional parser reads the race from the link's query.
	link := page.SectionalURL
	if link == "" {
		link = scrape.ResultURL("", page.Race.Date, page.Race.Racecourse, page.Race.RaceNumber)
	}
	secs, err := scrape.ParseSectionalPage(link, sf)
	if err != nil {
		return model.Race{}, err
	}
	scrape.AttachSectionals(&page.Race, secs)
	return page.Race, nil
}

func printRace(w io.Writer, race model.Race) {
	t := newTable(w)
	t.SetTitle(fmt.Sprintf("%s %s race %d (#%d) %s %dm %s",
		race.Date.Format(model.DateLayout), race.Racecourse, race.RaceNumber, race.RaceIndex,
		race.ClassName, race.Distance, race.Going))
	t.AppendHeader(table.Row{"Pos", "No", "Horse", "Id", "Jockey", "Draw", "Wt", "LBW", "Time", "Odds"})
	for _, r := range race.Results {
		t.AppendRow(table.Row{
			r.Position, r.HorseNumber, r.HorseName, r.HorseID, r.Jockey,
			r.Draw, r.ActualWeight, r.LBW, r.FinishTime, r.WinOdds,
		})
	}
	t.Render()
}
