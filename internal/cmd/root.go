// Package cmd defines the CLI commands for the qdcrawler executable.
package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noveldata/qdcrawler/internal/config"
	"github.com/noveldata/qdcrawler/internal/logging"
)

var cfgFile string

// NewRootCmd creates and configures the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qdcrawler",
		Short: "Web-novel chapter and comment crawler",
		Long: `qdcrawler collects web-novel chapters and reader comments from the
source platform into Postgres. Chapter pages are rendered in a headless
browser and run through a layered content-extraction cascade; comments
come from the platform's JSON endpoints.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newIncrementalCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func loadConfigAndLogger() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// serveMetrics exposes the Prometheus endpoint on its own listener.
// Scrape failures never interfere with crawling, so errors are only logged.
func serveMetrics(cfg config.MetricsConfig, logger *zap.Logger) {
	if !cfg.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics listener starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics listener failed", zap.Error(err))
		}
	}()
}
