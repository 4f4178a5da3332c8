package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	service "github.com/okian/formguide/internal/app"
	"github.com/okian/formguide/pkg/logger"
)

func newEnrichCmd(st *state) *cobra.Command {
	var (
		input, format, output string
		creators              []string
		normalize, fill       bool
	)
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Derives form statistics for every participation of a CSV, feed directory or database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			override(flags.Changed("input"), &st.cfg.Input, input)
			override(flags.Changed("format"), &st.cfg.InputFormat, format)
			override(flags.Changed("output"), &st.cfg.Output, output)
			override(flags.Changed("creators"), &st.cfg.Creators, creators)
			override(flags.Changed("normalize"), &st.cfg.Normalize, normalize)
			override(flags.Changed("fill-missing"), &st.cfg.FillMissing, fill)
			if err := st.cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			src, err := st.source()
			if err != nil {
				return err
			}
			svc, err := st.service(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					st.log.Warn(ctx, "close store", logger.Error(err))
				}
			}()

			records, err := svc.Load(ctx, src)
			if err != nil {
				return err
			}
			res, err := svc.Enrich(ctx, records)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "", "participation CSV or feed directory")
	f.StringVarP(&format, "format", "f", "", "input format: csv, feeds, sqlite or postgres")
	f.StringVarP(&output, "output", "o", "", "enriched CSV to write")
	f.StringSliceVar(&creators, "creators", nil, "variable creators to run, in order")
	f.BoolVar(&normalize, "normalize", false, "run the race-group normalizers")
	f.BoolVar(&fill, "fill-missing", false, "write 0 for absent statistics")
	return cmd
}

func printResult(w io.Writer, res service.Result) {
	t := newTable(w)
	t.SetTitle("run " + res.Summary.ID)
	t.AppendHeader(table.Row{"Records", "Skipped", "Duplicates", "Races", "Horses", "Jockeys", "Duration"})
	t.AppendRow(table.Row{
		res.Summary.Records,
		res.Summary.Skipped,
		res.Summary.Duplicates,
		res.Report.Races,
		res.Report.HorseEntities,
		res.Report.JockeyEntities,
		res.Summary.Duration().Round(time.Millisecond),
	})
	t.AppendFooter(table.Row{"Columns", fmt.Sprint(len(res.Summary.Columns))})
	t.Render()
}
