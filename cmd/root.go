package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/leaderboard-crawler/internal/app"
	"github.com/JakeFAU/leaderboard-crawler/internal/config"
	"github.com/JakeFAU/leaderboard-crawler/internal/crawler"
	"github.com/JakeFAU/leaderboard-crawler/internal/logging"
)

var cfgFile string

// runtimeKeyType is the key for storing the loaded runtime in the context.
type runtimeKeyType string

const runtimeKey runtimeKeyType = "runtime"

// runtime carries what every subcommand needs once flags are parsed.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Logger() *zap.Logger
	RunID() string
	Engine() (*crawler.Engine, error)
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so we can
// replace it with a fake factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard-crawler",
		Short: "Crawls the weekly product leaderboards with a headless browser.",
		Long: `leaderboard-crawler walks the weekly product leaderboards from the newest
configured week back to the first week of the start year. Each page is rendered
in a headless browser, scrolled until its lazy content has loaded, and parsed
into product records that are written to the configured sinks.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			ctx := context.WithValue(cmd.Context(), runtimeKey, &runtime{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newWeeksCmd())

	return cmd
}

// addWeekFlags registers the flags that select which weeks are visited.
func addWeekFlags(cmd *cobra.Command) {
	cmd.Flags().Int("start-year", 2013, "first year to crawl")
	cmd.Flags().Int("end-year", 2024, "last year to crawl")
	cmd.Flags().Int("end-week", 49, "week of the end year to start from")
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
