package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/formguide/internal/adapters/csvio"
	"github.com/okian/formguide/internal/domain/model"
	"github.com/okian/formguide/internal/synth"
	"github.com/okian/formguide/pkg/logger"
)

func newGenerateCmd(st *state) *cobra.Command {
	cfg := synth.DefaultConfig()
	var start, feedsDir, csvPath string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Writes a deterministic synthetic race history as feeds or a participation CSV.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if feedsDir == "" && csvPath == "" {
				return errors.New("one of --feeds or --csv is required")
			}
			d, err := model.ParseDate(start)
			if err != nil {
				return err
			}
			cfg.Start = d

			ctx := cmd.Context()
			g, err := synth.New(cfg, synth.WithLogger(st.log.Named("synth")))
			if err != nil {
				return err
			}
			races, err := g.Races(ctx)
			if err != nil {
				return err
			}

			if feedsDir != "" {
				if err := writeFeeds(feedsDir, races); err != nil {
					return err
				}
				st.log.Info(ctx, "wrote feeds", logger.String("dir", feedsDir), logger.Int("races", len(races)))
			}
			if csvPath != "" {
				records := model.Flatten(races)
				if err := writeParticipations(csvPath, records); err != nil {
					return err
				}
				st.log.Info(ctx, "wrote participations", logger.String("path", csvPath), logger.Int("records", len(records)))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	f.StringVar(&start, "start", cfg.Start.Format(model.DateLayout), "first meeting date")
	f.IntVar(&cfg.Meetings, "meetings", cfg.Meetings, "number of race days")
	f.IntVar(&cfg.RacesPerMeeting, "races", cfg.RacesPerMeeting, "races per meeting")
	f.IntVar(&cfg.FieldSize, "field", cfg.FieldSize, "runners per race")
	f.IntVar(&cfg.Horses, "horses", cfg.Horses, "horse pool size")
	f.IntVar(&cfg.Jockeys, "jockeys", cfg.Jockeys, "jockey pool size")
	f.Float64Var(&cfg.WithdrawnRate, "withdrawn-rate", cfg.WithdrawnRate, "share of runners withdrawn")
	f.StringVar(&feedsDir, "feeds", "", "directory for the races, results, sectime and incident feeds")
	f.StringVar(&csvPath, "csv", "", "participation CSV to write")
	return cmd
}

func writeFeeds(dir string, races []model.Race) (err error) {
	fw, err := csvio.NewFeedWriter(dir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fw.Close(); err == nil {
			err = cerr
		}
	}()
	for _, r := range races {
		if err := fw.WriteRace(r); err != nil {
			return err
		}
	}
	return nil
}

func writeParticipations(path string, records []model.ParticipationRecord) (err error) {
	f, err := os.Create(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return csvio.WriteParticipations(f, records)
}
