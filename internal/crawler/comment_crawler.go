package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CommentCrawlerConfig tunes the comment crawl phase.
type CommentCrawlerConfig struct {
	// MaxPagesPerTarget caps pagination per review section or chapter.
	MaxPagesPerTarget int
	// ChapterLimit caps how many stored chapters get their comment
	// threads polled.
	ChapterLimit int
}

// DefaultCommentCrawlerConfig returns the page caps used in production.
func DefaultCommentCrawlerConfig() CommentCrawlerConfig {
	return CommentCrawlerConfig{
		MaxPagesPerTarget: 3,
		ChapterLimit:      10,
	}
}

// CommentCrawler polls the platform's comment API page by page and
// persists parsed records: the work's review section first, then the
// threads of already-stored chapters.
type CommentCrawler struct {
	api      CommentAPI
	store    Store
	throttle Sleeper
	cfg      CommentCrawlerConfig
	logger   *zap.Logger
}

// NewCommentCrawler constructs a CommentCrawler.
func NewCommentCrawler(api CommentAPI, store Store, throttle Sleeper, cfg CommentCrawlerConfig, logger *zap.Logger) *CommentCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPagesPerTarget <= 0 {
		cfg.MaxPagesPerTarget = DefaultCommentCrawlerConfig().MaxPagesPerTarget
	}
	return &CommentCrawler{
		api:      api,
		store:    store,
		throttle: throttle,
		cfg:      cfg,
		logger:   logger,
	}
}

// Crawl runs the comment phase for one work. Per-page and per-record
// failures are contained; only an unresolvable book ID is a phase error.
func (c *CommentCrawler) Crawl(ctx context.Context, ref WorkRef) (PhaseReport, error) {
	report := PhaseReport{}

	bookID, err := PlatformBookID(ref.SourceURL)
	if err != nil {
		return report, fmt.Errorf("resolve book id: %w", err)
	}

	c.logger.Info("crawling review section", zap.Int64("work_id", ref.WorkID))
	c.crawlPages(ctx, ref.WorkID, &report, func(page int) ([]byte, error) {
		return c.api.FetchReviewPage(ctx, bookID, page)
	})

	chapterIDs, err := c.store.ChapterPlatformIDs(ctx, ref.WorkID, c.cfg.ChapterLimit)
	if err != nil {
		c.logger.Warn("list chapter ids failed", zap.Int64("work_id", ref.WorkID), zap.Error(err))
	}
	for _, chapterID := range chapterIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := c.throttle.Sleep(ctx); err != nil {
			return report, err
		}
		c.logger.Info("crawling chapter thread",
			zap.Int64("work_id", ref.WorkID),
			zap.String("chapter_id", chapterID))
		id := chapterID
		c.crawlPages(ctx, ref.WorkID, &report, func(page int) ([]byte, error) {
			return c.api.FetchChapterPage(ctx, bookID, id, page)
		})
	}

	c.logger.Info("comment phase finished",
		zap.Int64("work_id", ref.WorkID),
		zap.Int("attempted", report.Attempted),
		zap.Int("written", report.Written))
	return report, nil
}

// crawlPages polls one comment target until hasNext is false, a page
// fails, a page comes back empty, or the cap is reached.
func (c *CommentCrawler) crawlPages(ctx context.Context, workID int64, report *PhaseReport, fetch func(page int) ([]byte, error)) {
	for page := 1; page <= c.cfg.MaxPagesPerTarget; page++ {
		if ctx.Err() != nil {
			return
		}
		if page > 1 {
			if err := c.throttle.Sleep(ctx); err != nil {
				return
			}
		}

		payload, err := fetch(page)
		if err != nil {
			CommentRequestErrors.Inc()
			c.logger.Warn("comment page fetch failed",
				zap.Int64("work_id", workID),
				zap.Int("page", page),
				zap.Error(err))
			return
		}

		parsed := ParseCommentPage(workID, payload, c.logger)
		if len(parsed.Comments) == 0 {
			return
		}

		written, err := c.store.SaveComments(ctx, parsed.Comments)
		if err != nil {
			PersistErrors.Inc()
			c.logger.Error("save comments failed", zap.Int64("work_id", workID), zap.Error(err))
		}
		report.Attempted += len(parsed.Comments)
		report.Written += written
		if written < len(parsed.Comments) {
			report.Failures = append(report.Failures,
				fmt.Sprintf("page %d: %d of %d comments not saved", page, len(parsed.Comments)-written, len(parsed.Comments)))
		}
		CommentsSaved.Add(float64(written))

		if !parsed.HasNext {
			return
		}
	}
}
