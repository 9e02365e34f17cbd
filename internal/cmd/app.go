package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noveldata/qdcrawler/internal/commentapi"
	"github.com/noveldata/qdcrawler/internal/config"
	"github.com/noveldata/qdcrawler/internal/crawler"
	"github.com/noveldata/qdcrawler/internal/renderer"
	"github.com/noveldata/qdcrawler/internal/scheduler"
	"github.com/noveldata/qdcrawler/internal/store"
	"github.com/noveldata/qdcrawler/internal/throttle"
)

// app bundles the long-lived services a crawl command needs.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *store.Postgres
	renderer *renderer.Chromedp
	sched    *scheduler.Scheduler
}

// newApp builds the full crawl pipeline: store, browser session, comment
// client, both phase crawlers, and the scheduler on top.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	st, err := store.New(ctx, store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetimeMin) * time.Minute,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}

	rend, err := renderer.New(renderer.Config{
		Headless:     cfg.Renderer.Headless,
		UserAgent:    cfg.Renderer.UserAgent,
		NavTimeout:   time.Duration(cfg.Renderer.NavTimeoutSec) * time.Second,
		DomainQPS:    cfg.Renderer.DomainQPS,
		WindowWidth:  cfg.Renderer.WindowWidth,
		WindowHeight: cfg.Renderer.WindowHeight,
	}, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	pause := throttle.NewJitter(
		time.Duration(cfg.Throttle.MinMs)*time.Millisecond,
		time.Duration(cfg.Throttle.MaxMs)*time.Millisecond,
	)
	clock := crawler.SystemClock{}

	extractor := crawler.NewExtractor(extractorConfig(cfg.Extractor), logger)
	discoverer := crawler.NewDiscoverer(discovererConfig(cfg.Platform), logger)

	chapters := crawler.NewChapterCrawler(rend, extractor, discoverer, st, pause, clock, crawler.ChapterCrawlerConfig{
		Platform:           cfg.Platform.Name,
		BookURLTemplate:    cfg.Platform.BookURLTemplate,
		CatalogURLTemplate: cfg.Platform.CatalogURLTemplate,
		MinContentLength:   cfg.Extractor.MinAcceptLength,
		ArchivePages:       cfg.Platform.ArchivePages,
	}, logger)

	api := commentapi.New(commentapi.Config{
		BaseURL:   cfg.Comments.BaseURL,
		Referer:   cfg.Comments.Referer,
		UserAgent: cfg.Renderer.UserAgent,
		PageSize:  cfg.Comments.PageSize,
		Timeout:   time.Duration(cfg.Comments.TimeoutSeconds) * time.Second,
	}, logger)

	comments := crawler.NewCommentCrawler(api, st, pause, crawler.CommentCrawlerConfig{
		MaxPagesPerTarget: cfg.Comments.MaxPagesPerTarget,
		ChapterLimit:      cfg.Comments.ChapterLimit,
	}, logger)

	// Works get a longer pause between their chapter and comment phases
	// than the per-request throttle.
	phasePause := throttle.NewJitter(
		time.Duration(cfg.Scheduler.PhasePauseMinSec)*time.Second,
		time.Duration(cfg.Scheduler.PhasePauseMaxSec)*time.Second,
	)
	sched := scheduler.New(st, chapters, comments, phasePause, clock, scheduler.Config{
		BatchSize:        cfg.Scheduler.BatchSize,
		IncrementalLimit: cfg.Scheduler.IncrementalLimit,
		Staleness:        cfg.Staleness(),
		CheckInterval:    cfg.CheckInterval(),
		Cooldown:         cfg.Cooldown(),
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		renderer: rend,
		sched:    sched,
	}, nil
}

func (a *app) close() {
	if err := a.renderer.Close(); err != nil {
		a.logger.Warn("renderer close failed", zap.Error(err))
	}
	a.store.Close()
}

func extractorConfig(c config.ExtractorConfig) crawler.ExtractorConfig {
	cfg := crawler.DefaultExtractorConfig()
	if c.MinFullLength > 0 {
		cfg.MinFullLength = c.MinFullLength
	}
	if c.MinAcceptLength > 0 {
		cfg.MinAcceptLength = c.MinAcceptLength
	}
	if c.MaxBlockLength > 0 {
		cfg.MaxBlockLength = c.MaxBlockLength
	}
	if c.MinCJKRatio > 0 {
		cfg.MinCJKRatio = c.MinCJKRatio
	}
	return cfg
}

func discovererConfig(c config.PlatformConfig) crawler.DiscovererConfig {
	cfg := crawler.DefaultDiscovererConfig()
	if c.Origin != "" {
		cfg.Origin = c.Origin
	}
	if c.MaxChapters > 0 {
		cfg.MaxChapters = c.MaxChapters
	}
	return cfg
}
