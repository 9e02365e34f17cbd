package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newIncrementalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "incremental",
		Short: "Continuously re-crawl stale works",
		Long: `Loops until interrupted, re-crawling a few works per round whose last
chapter crawl is older than the configured staleness window, oldest
first. Rounds that hit errors back off before the next attempt.`,
		RunE: runIncremental,
	}
}

func runIncremental(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	serveMetrics(cfg.Metrics, logger)

	if err := a.sched.RunIncremental(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("incremental run: %w", err)
	}
	return nil
}
