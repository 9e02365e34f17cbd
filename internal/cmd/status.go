package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/noveldata/qdcrawler/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print corpus totals and recent crawl failures",
		RunE:  runStatus,
	}
}

// runStatus only needs the store; no browser or comment client is built.
func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.New(cmd.Context(), store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetimeMin) * time.Minute,
	}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	rep, err := st.BuildReport(cmd.Context(), cfg.Scheduler.FailureReportMax)
	if err != nil {
		return err
	}

	printReport(cmd, rep)
	return nil
}

func printReport(cmd *cobra.Command, rep store.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "works:    %d\n", rep.TotalWorks)
	fmt.Fprintf(out, "chapters: %d\n", rep.TotalChapters)
	fmt.Fprintf(out, "comments: %d\n", rep.TotalComments)

	if len(rep.StateCounts) > 0 {
		fmt.Fprintln(out, "\ncrawl attempts:")
		keys := make([]string, 0, len(rep.StateCounts))
		for k := range rep.StateCounts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %-20s %d\n", k, rep.StateCounts[k])
		}
	}

	if len(rep.Failures) > 0 {
		fmt.Fprintln(out, "\nrecent failures:")
		for _, f := range rep.Failures {
			fmt.Fprintf(out, "  %s work=%d type=%s: %s\n",
				f.LastAttempt.Format(time.RFC3339), f.WorkID, f.CrawlType, f.ErrorMessage)
		}
	}
}
