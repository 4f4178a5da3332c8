package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/okian/formguide/internal/adapters/repository"
	"github.com/okian/formguide/internal/adapters/scrape"
	service "github.com/okian/formguide/internal/app"
	"github.com/okian/formguide/internal/config"
	"github.com/okian/formguide/internal/domain/variables"
)

func isDatabase(format string) bool {
	return format == config.FormatSQLite || format == config.FormatPostgres
}

// engine builds the variable engine from the configured creator names.
func (st *state) engine() (*variables.Engine, error) {
	creators, err := variables.Select(st.cfg.Creators)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	var groups []variables.GroupCreator
	if st.cfg.Normalize {
		groups = variables.BuiltinGroups()
	}
	return variables.NewEngine(creators, groups...)
}

// store opens the configured database, or returns nil when no DSN is set.
// A database input format names the driver to read from.
func (st *state) store(ctx context.Context) (repository.Store, error) {
	driver := st.cfg.Driver
	if isDatabase(st.cfg.InputFormat) {
		driver = st.cfg.InputFormat
	}
	if st.cfg.DSN == "" {
		if isDatabase(st.cfg.InputFormat) {
			return nil, fmt.Errorf("%w: input_format %s needs a dsn", config.ErrInvalidConfig, st.cfg.InputFormat)
		}
		return nil, nil
	}
	s, err := repository.Open(ctx, driver, st.cfg.DSN, repository.WithLogger(st.log.Named("repository")))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// service wires a Service from the loaded config.
func (st *state) service(ctx context.Context, extra ...service.Option) (*service.Service, error) {
	engine, err := st.engine()
	if err != nil {
		return nil, err
	}
	policy, err := st.cfg.MalformedPolicy()
	if err != nil {
		return nil, err
	}
	opts := []service.Option{
		service.WithLogger(st.log),
		service.WithEngine(engine),
		service.WithPolicy(policy),
		service.WithOutput(st.cfg.Output),
		service.WithFillMissing(st.cfg.FillMissing),
		service.WithProgressEvery(st.cfg.ProgressEvery),
		service.WithCrawlWorkers(st.cfg.CrawlWorkers),
		service.WithQueueSize(st.cfg.CrawlQueueSize),
		service.WithBaseURL(st.cfg.BaseURL),
		service.WithFetcher(scrape.NewFetcher(
			scrape.WithTimeout(st.cfg.RequestTimeout()),
			scrape.WithLogger(st.log.Named("fetcher")),
		)),
	}
	store, err := st.store(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, service.WithStore(store))
	}
	return service.New(append(opts, extra...)...), nil
}

// source maps the configured input onto a pipeline source.
func (st *state) source() (service.Source, error) {
	switch st.cfg.InputFormat {
	case config.FormatCSV, config.FormatFeeds:
		if st.cfg.Input == "" {
			return service.Source{}, fmt.Errorf("%w: input is required for %s", config.ErrInvalidConfig, st.cfg.InputFormat)
		}
		return service.Source{Format: st.cfg.InputFormat, Path: st.cfg.Input}, nil
	default:
		return service.Source{Format: service.SourceDatabase}, nil
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}
