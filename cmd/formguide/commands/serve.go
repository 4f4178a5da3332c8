package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/formguide/internal/adapters/http/api"
	service "github.com/okian/formguide/internal/app"
	"github.com/okian/formguide/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	maxRunsListed     = 100
)

func newServeCmd(st *state) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves metrics, run stats and horse histories over HTTP.",
		Long: "Serves metrics, run stats and horse histories over HTTP. When an input is " +
			"configured it is enriched once before the server starts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			override(cmd.Flags().Changed("addr"), &st.cfg.Addr, addr)
			ctx := cmd.Context()

			svc, err := st.service(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			if st.cfg.Input != "" {
				if err := warmUp(ctx, st, svc); err != nil {
					return err
				}
			}
			return serve(ctx, st.cfg.Addr, svc, st.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, e.g. :9080")
	return cmd
}

// warmUp enriches the configured input so the API has a run to serve.
func warmUp(ctx context.Context, st *state, svc *service.Service) error {
	src, err := st.source()
	if err != nil {
		return err
	}
	records, err := svc.Load(ctx, src)
	if err != nil {
		return err
	}
	_, err = svc.Enrich(ctx, records)
	return err
}

// serve runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, addr string, svc *service.Service, log logger.Logger) error {
	mux := http.NewServeMux()
	api.NewServer(svc, svc, maxRunsListed, api.WithLogger(log.Named("http"))).Register(ctx, mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}
