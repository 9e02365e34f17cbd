package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Crawl every work still missing chapters or comments",
		Long: `Runs selection rounds against the store and crawls each incomplete
work once, chapter-gap works first, until nothing new is selected.`,
		RunE: runBatch,
	}
}

func runBatch(cmd *cobra.Command, _ []string) error {
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

	if err := a.sched.RunBatch(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("batch run: %w", err)
	}
	return nil
}
