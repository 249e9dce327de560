// Package cmd defines and implements the CLI commands for the leaderboard-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/leaderboard-crawler/internal/api"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the weekly leaderboards",
		Long: `Visits every configured weekly leaderboard page in one browser session and
writes the extracted products to the enabled sinks. Comments are gathered from
each product's detail page when --comments is set.`,
		RunE: runCrawlCommand,
	}
	addWeekFlags(cmd)
	cmd.Flags().Bool("comments", false, "collect comments from product detail pages")
	cmd.Flags().String("driver", "chromedp", "browser driver (chromedp or rod)")
	cmd.Flags().String("metrics-addr", "", "serve /metrics, /healthz and /v1/stats on this address")
	cmd.Flags().StringP("output", "o", "products.json", "file sink path")
	cmd.Flags().String("format", "json", "file sink format (json, jsonl, csv)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appInstance, err := newApp(ctx, rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	logger := appInstance.Logger()
	defer func() {
		if cerr := appInstance.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Error("failed to close application services", zap.Error(cerr))
		}
	}()

	engine, err := appInstance.Engine()
	if err != nil {
		return err
	}

	crawlCtx, cancelCrawl := context.WithCancel(ctx)
	defer cancelCrawl()
	g, gctx := errgroup.WithContext(crawlCtx)

	if addr := rt.cfg.Metrics.Addr; addr != "" {
		server := api.NewServer(appInstance.RunID(), engine.Stats, logger)
		server.SetReady(true)
		g.Go(func() error {
			return server.ListenAndServe(gctx, addr)
		})
	}

	g.Go(func() error {
		defer cancelCrawl()
		stats, err := engine.Run(gctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Warn("crawl interrupted", zap.Int("products", stats.Products))
				return nil
			}
			return fmt.Errorf("run crawler: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Crawl command finished.")
	return nil
}
