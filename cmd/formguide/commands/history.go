package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/okian/formguide/internal/adapters/repository"
	"github.com/okian/formguide/internal/domain/types"
)

const defaultRunsLimit = 20

func newHistoryCmd(st *state) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [horse-id]",
		Short: "Prints a horse's enriched runs from the store, or the latest runs when no horse is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if st.cfg.DSN == "" {
				return fmt.Errorf("history reads the store: %w", errNoDSN)
			}
			svc, err := st.service(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			if len(args) == 0 {
				runs, err := svc.Runs(ctx, limit)
				if err != nil {
					return err
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			}

			rows, err := svc.HorseHistory(ctx, args[0])
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("horse %s has no enriched runs: %w", args[0], err)
			}
			if err != nil {
				return err
			}
			printHorse(cmd.OutOrStdout(), args[0], rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultRunsLimit, "runs to list")
	return cmd
}

var errNoDSN = errors.New("no dsn configured")

func printRuns(w io.Writer, runs []types.RunSummary) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Finished", "Records", "Skipped", "Duplicates", "Duration"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID, r.FinishedAt.Format(time.RFC3339), r.Records, r.Skipped, r.Duplicates,
			r.Duration().Round(time.Millisecond),
		})
	}
	t.Render()
}

func printHorse(w io.Writer, horseID string, rows []types.HorseRun) {
	names := map[string]bool{}
	for _, r := range rows {
		for k := range r.Stats {
			names[k] = true
		}
	}
	cols := make([]string, 0, len(names))
	for k := range names {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	t := newTable(w)
	if len(rows) > 0 {
		t.SetTitle(fmt.Sprintf("%s (run %s)", horseID, rows[0].RunID))
	}
	header := table.Row{"Date", "Race", "Course", "Pos", "Jockey"}
	for _, c := range cols {
		header = append(header, c)
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := table.Row{r.Date, r.RaceIndex, r.Racecourse, r.Position, r.Jockey}
		for _, c := range cols {
			// An absent statistic prints as an empty cell.
			if v, ok := r.Stats[c]; ok {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	t.Render()
}
