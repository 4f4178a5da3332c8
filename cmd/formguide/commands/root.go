// Package commands implements the formguide command line.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/formguide/internal/config"
	"github.com/okian/formguide/pkg/logger"
)

// state is shared by the subcommands of one root command.
type state struct {
	cfg *config.Config
	log logger.Logger

	configPath string
	logLevel   string
	logFormat  string
	driver     string
	dsn        string
	policy     string
}

// ExecuteContext runs the root command with os.Args.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:           "formguide",
		Short:         "formguide enriches horse racing results with point-in-time form statistics.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&st.configPath, "config", "", "YAML config file (overrides "+config.EnvConfig+")")
	f.StringVar(&st.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&st.logFormat, "log-format", "", "text or json")
	f.StringVar(&st.driver, "driver", "", "database driver: sqlite or postgres")
	f.StringVar(&st.dsn, "dsn", "", "database DSN; empty disables the store")
	f.StringVar(&st.policy, "policy", "", "malformed record policy: strict or skip")

	root.AddCommand(
		newEnrichCmd(st),
		newGenerateCmd(st),
		newCrawlCmd(st),
		newParseCmd(st),
		newHistoryCmd(st),
		newServeCmd(st),
	)
	return root
}

// load layers the config file, env and the persistent flags, then sets up
// the global logger.
func (st *state) load(cmd *cobra.Command) error {
	if st.configPath != "" {
		if err := os.Setenv(config.EnvConfig, st.configPath); err != nil {
			return fmt.Errorf("set %s: %w", config.EnvConfig, err)
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	override(flags.Changed("log-level"), &cfg.LogLevel, st.logLevel)
	override(flags.Changed("log-format"), &cfg.LogFormat, st.logFormat)
	override(flags.Changed("driver"), &cfg.Driver, st.driver)
	override(flags.Changed("dsn"), &cfg.DSN, st.dsn)
	override(flags.Changed("policy"), &cfg.Policy, st.policy)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.InitWithOptions(logger.Options{
		Writer: cmd.ErrOrStderr(),
		Format: logger.Format(cfg.LogFormat),
	}); err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	st.cfg = cfg
	st.log = logger.Named(cmd.Name())
	return nil
}

func override[T any](changed bool, dst *T, v T) {
	if changed {
		*dst = v
	}
}
