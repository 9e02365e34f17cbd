package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noveldata/qdcrawler/internal/crawler"
)

func newCrawlCmd() *cobra.Command {
	var (
		sourceURL string
		title     string
	)
	cmd := &cobra.Command{
		Use:   "crawl <work-id>",
		Short: "Crawl a single work by its platform ID",
		Long: `Runs both crawl phases against one work. The work does not need to
exist in the store yet; its metadata row is created from the book page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid work id %q: %w", args[0], err)
			}

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

			ref := crawler.WorkRef{WorkID: workID, Title: title, SourceURL: sourceURL}
			if ref.SourceURL == "" {
				ref.SourceURL = fmt.Sprintf(cfg.Platform.BookURLTemplate, args[0])
			}

			if ok := a.sched.CrawlWork(cmd.Context(), ref); !ok {
				return fmt.Errorf("crawl of work %d persisted nothing", workID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceURL, "url", "", "book page URL (derived from the work id when omitted)")
	cmd.Flags().StringVar(&title, "title", "", "fallback title if the book page yields none")
	return cmd
}
