package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ChapterCrawlerConfig tunes the chapter crawl phase.
type ChapterCrawlerConfig struct {
	Platform           string
	BookURLTemplate    string
	CatalogURLTemplate string
	// MinContentLength is the persistence bar for an extracted chapter.
	MinContentLength int
	// ArchivePages stores the raw rendered page alongside the chapter.
	ArchivePages bool
}

// DefaultChapterCrawlerConfig returns settings for the source platform.
func DefaultChapterCrawlerConfig() ChapterCrawlerConfig {
	return ChapterCrawlerConfig{
		Platform:           "起点中文网",
		BookURLTemplate:    "https://www.qidian.com/book/%s/",
		CatalogURLTemplate: "https://www.qidian.com/book/%s/catalog/",
		MinContentLength:   100,
		ArchivePages:       true,
	}
}

// ChapterCrawler fetches a work's metadata and chapter texts through the
// renderer and persists them. Execution is strictly sequential; the
// renderer session is reused across chapters.
type ChapterCrawler struct {
	renderer   Renderer
	extractor  *Extractor
	discoverer *Discoverer
	store      Store
	throttle   Sleeper
	clock      Clock
	cfg        ChapterCrawlerConfig
	logger     *zap.Logger
}

// NewChapterCrawler constructs a ChapterCrawler.
func NewChapterCrawler(
	renderer Renderer,
	extractor *Extractor,
	discoverer *Discoverer,
	store Store,
	throttle Sleeper,
	clock Clock,
	cfg ChapterCrawlerConfig,
	logger *zap.Logger,
) *ChapterCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ChapterCrawler{
		renderer:   renderer,
		extractor:  extractor,
		discoverer: discoverer,
		store:      store,
		throttle:   throttle,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Crawl runs the full chapter phase for one work: metadata, discovery,
// then per-chapter extraction and persistence. Per-chapter failures are
// contained in the report; only phase-level failures (no catalog, no
// chapters) return an error.
func (c *ChapterCrawler) Crawl(ctx context.Context, ref WorkRef) (PhaseReport, error) {
	report := PhaseReport{}

	bookID, err := PlatformBookID(ref.SourceURL)
	if err != nil {
		return report, fmt.Errorf("resolve book id: %w", err)
	}

	if err := c.crawlWorkInfo(ctx, ref, bookID); err != nil {
		// Metadata is best-effort; chapter extraction can proceed on a
		// stale works row.
		c.logger.Warn("work metadata crawl failed", zap.Int64("work_id", ref.WorkID), zap.Error(err))
	}

	links, err := c.discoverChapters(ctx, bookID)
	if err != nil {
		return report, fmt.Errorf("discover chapters: %w", err)
	}
	if len(links) == 0 {
		return report, fmt.Errorf("no chapters found for work %d", ref.WorkID)
	}

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if i > 0 {
			if err := c.throttle.Sleep(ctx); err != nil {
				return report, err
			}
		}
		if err := c.crawlChapter(ctx, ref.WorkID, link, &report); err != nil {
			c.logger.Error("chapter crawl failed",
				zap.Int64("work_id", ref.WorkID),
				zap.String("url", link.URL),
				zap.Error(err))
		}
	}

	c.logger.Info("chapter phase finished",
		zap.Int64("work_id", ref.WorkID),
		zap.Int("attempted", report.Attempted),
		zap.Int("written", report.Written))
	return report, nil
}

// crawlWorkInfo refreshes the works row from the book page.
func (c *ChapterCrawler) crawlWorkInfo(ctx context.Context, ref WorkRef, bookID string) error {
	bookURL := fmt.Sprintf(c.cfg.BookURLTemplate, bookID)
	if err := c.renderer.Navigate(ctx, bookURL); err != nil {
		RenderErrors.Inc()
		return fmt.Errorf("navigate book page: %w", err)
	}
	c.preparePage(ctx)

	pageTitle, err := c.renderer.PageTitle(ctx)
	if err != nil {
		return err
	}
	title := CleanWorkTitle(pageTitle)
	if title == "" {
		title = ref.Title
	}

	author := "未知作者"
	var scripted string
	if err := c.renderer.RunScript(ctx, authorLookupScript, &scripted); err == nil && scripted != "" {
		author = scripted
	}

	work := Work{
		WorkID:           ref.WorkID,
		Title:            title,
		Author:           author,
		Platform:         c.cfg.Platform,
		SourceURL:        ref.SourceURL,
		Category:         "未知分类",
		Tags:             "未知标签",
		CompletionStatus: StatusOngoing,
		ReferenceValue:   "0",
	}
	if err := c.store.UpsertWork(ctx, work); err != nil {
		PersistErrors.Inc()
		return fmt.Errorf("upsert work: %w", err)
	}
	c.logger.Info("work metadata saved",
		zap.Int64("work_id", ref.WorkID),
		zap.String("title", title),
		zap.String("author", author))
	return nil
}

func (c *ChapterCrawler) discoverChapters(ctx context.Context, bookID string) ([]ChapterLink, error) {
	catalogURL := fmt.Sprintf(c.cfg.CatalogURLTemplate, bookID)
	if err := c.renderer.Navigate(ctx, catalogURL); err != nil {
		RenderErrors.Inc()
		return nil, fmt.Errorf("navigate catalog: %w", err)
	}
	c.preparePage(ctx)
	return c.discoverer.Discover(ctx, c.renderer)
}

// crawlChapter fetches, extracts, and persists one chapter.
func (c *ChapterCrawler) crawlChapter(ctx context.Context, workID int64, link ChapterLink, report *PhaseReport) error {
	if err := c.renderer.Navigate(ctx, link.URL); err != nil {
		RenderErrors.Inc()
		report.RecordFailure(fmt.Sprintf("navigate %s: %v", link.URL, err))
		return err
	}
	c.preparePage(ctx)

	result, err := c.extractor.Extract(ctx, c.renderer)
	if err != nil {
		report.RecordFailure(fmt.Sprintf("extract %s: %v", link.URL, err))
		return err
	}
	if result.Empty() || result.ContentLength < c.cfg.MinContentLength {
		ExtractionEmpty.Inc()
		report.RecordFailure(fmt.Sprintf("content too short at %s (%d chars)", link.URL, result.ContentLength))
		return nil
	}

	chapterTitle := link.DisplayText
	if chapterTitle == "" {
		chapterTitle = result.Title
	}
	chapter := Chapter{
		WorkID:        workID,
		ChapterNo:     ChapterNumber(chapterTitle),
		PlatformID:    ChapterPlatformID(result.SourceURL),
		Title:         chapterTitle,
		Body:          result.Body,
		SourceURL:     result.SourceURL,
		IsVIP:         result.IsVIP || link.TierTag != "",
		RequiresLogin: result.RequiresLogin,
		ContentLength: result.ContentLength,
		FetchedAt:     c.clock.Now(),
	}

	if err := c.store.UpsertChapter(ctx, chapter); err != nil {
		PersistErrors.Inc()
		report.RecordFailure(fmt.Sprintf("save %s: %v", chapter.ChapterNo, err))
		return err
	}
	report.RecordWritten()
	ChaptersSaved.Inc()

	if c.cfg.ArchivePages {
		c.archivePage(ctx, workID, chapter)
	}

	c.logger.Info("chapter saved",
		zap.Int64("work_id", workID),
		zap.String("chapter_no", chapter.ChapterNo),
		zap.Int("length", chapter.ContentLength),
		zap.String("strategy", result.Strategy))
	return nil
}

// archivePage stores the raw rendered page for later re-analysis.
// Best-effort: an archive miss never fails the chapter.
func (c *ChapterCrawler) archivePage(ctx context.Context, workID int64, chapter Chapter) {
	source, err := c.renderer.PageSource(ctx)
	if err != nil {
		return
	}
	name := fmt.Sprintf("%d_%s.html", workID, chapter.PlatformID)
	if err := c.store.SaveCrawlFile(ctx, workID, name, source); err != nil {
		c.logger.Debug("archive page failed", zap.String("file", name), zap.Error(err))
	}
}

// preparePage dismisses popups and scrolls lazy content into view.
// Failures are ignored; these scripts are opportunistic.
func (c *ChapterCrawler) preparePage(ctx context.Context) {
	var dismissed bool
	if err := c.renderer.RunScript(ctx, dismissPopupsScript, &dismissed); err == nil && !dismissed {
		c.logger.Debug("page may still have open dialogs")
	}
	var scrolled bool
	_ = c.renderer.RunScript(ctx, scrollPageScript, &scrolled)
}
