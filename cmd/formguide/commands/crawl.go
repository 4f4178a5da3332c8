package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/okian/formguide/internal/adapters/csvio"
	"github.com/okian/formguide/internal/adapters/scrape"
	service "github.com/okian/formguide/internal/app"
	"github.com/okian/formguide/internal/domain/model"
)

func newCrawlCmd(st *state) *cobra.Command {
	var out string
	var workers int
	cmd := &cobra.Command{
		Use:   "crawl <meetings.csv>",
		Short: "Fetches the result pages of the listed meetings into a feed directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd.Flags().Changed("workers"), &st.cfg.CrawlWorkers, workers)
			ctx := cmd.Context()

			meetings, err := readMeetings(cmd, args[0])
			if err != nil {
				return err
			}
			svc, err := st.service(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			rep, err := svc.Crawl(ctx, meetings, out)
			if err != nil {
				return err
			}
			printCrawl(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "feeds", "feed directory to write")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent page fetchers")
	return cmd
}

func readMeetings(cmd *cobra.Command, path string) ([]scrape.Meeting, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("open meetings: %w", err)
	}
	defer f.Close()
	meetings, _, err := csvio.ReadMeetings(cmd.Context(), f)
	return meetings, err
}

func printCrawl(w io.Writer, rep service.CrawlReport) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Pages", "Races", "Failed"})
	t.AppendRow(table.Row{rep.Targets, rep.Races, len(rep.Failed)})
	t.Render()
	if len(rep.Failed) == 0 {
		return
	}
	ft := newTable(w)
	ft.SetTitle("failed pages")
	ft.AppendHeader(table.Row{"Date", "Course", "Race", "Error"})
	for _, p := range rep.Failed {
		ft.AppendRow(table.Row{p.Target.Date.Format(model.DateLayout), p.Target.Racecourse, p.Target.RaceNo, p.Err})
	}
	ft.Render()
}
