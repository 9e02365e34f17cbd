// Package scheduler drives crawl rounds: it selects works from the
// store, runs both crawl phases against each, and records per-phase
// status rows.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noveldata/qdcrawler/internal/crawler"
)

// WorkCrawler runs one crawl phase for one work.
type WorkCrawler interface {
	Crawl(ctx context.Context, ref crawler.WorkRef) (crawler.PhaseReport, error)
}

// Config controls scheduling behavior.
type Config struct {
	// BatchSize bounds each selection round in batch mode.
	BatchSize int
	// IncrementalLimit bounds each incremental round.
	IncrementalLimit int
	// Staleness is how old a chapter crawl must be before the work is
	// picked up again by incremental rounds.
	Staleness time.Duration
	// CheckInterval is the pause between incremental rounds.
	CheckInterval time.Duration
	// Cooldown is the extra pause applied after a round that hit an
	// unexpected error, so a broken upstream is not hammered.
	Cooldown time.Duration
}

// DefaultConfig mirrors the production cadence: small incremental
// rounds every few minutes, re-crawling works not touched for days.
func DefaultConfig() Config {
	return Config{
		BatchSize:        10,
		IncrementalLimit: 3,
		Staleness:        72 * time.Hour,
		CheckInterval:    10 * time.Minute,
		Cooldown:         5 * time.Minute,
	}
}

// Scheduler orchestrates both crawl phases across selected works.
type Scheduler struct {
	store    crawler.Store
	chapters WorkCrawler
	comments WorkCrawler
	pause    crawler.Sleeper
	clock    crawler.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Scheduler.
func New(
	store crawler.Store,
	chapters WorkCrawler,
	comments WorkCrawler,
	pause crawler.Sleeper,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.IncrementalLimit <= 0 {
		cfg.IncrementalLimit = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:    store,
		chapters: chapters,
		comments: comments,
		pause:    pause,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunBatch crawls every work the store reports as incomplete, in
// selection rounds of BatchSize, until a round yields nothing new.
// Consecutive works are separated by the scheduler's pause so the
// upstream sees the same cadence as the phase gap.
// Works that fail stay incomplete; they are skipped within the same run
// so a permanently broken work cannot loop the batch forever.
func (s *Scheduler) RunBatch(ctx context.Context) error {
	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID), zap.String("mode", "batch"))
	log.Info("batch run starting", zap.Int("batch_size", s.cfg.BatchSize))

	seen := make(map[int64]bool)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		refs, err := s.store.SelectPendingWorks(ctx, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("select pending works: %w", err)
		}
		progressed := false
		for _, ref := range refs {
			if seen[ref.WorkID] {
				continue
			}
			seen[ref.WorkID] = true
			progressed = true
			if total > 0 {
				if err := s.pause.Sleep(ctx); err != nil {
					return err
				}
			}
			total++
			s.CrawlWork(ctx, ref)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if !progressed {
			break
		}
	}
	log.Info("batch run finished", zap.Int("works_crawled", total))
	return nil
}

// RunIncremental loops until the context is cancelled, re-crawling a few
// works per round whose chapter crawl is older than the staleness window.
func (s *Scheduler) RunIncremental(ctx context.Context) error {
	log := s.logger.With(zap.String("mode", "incremental"))
	log.Info("incremental loop starting",
		zap.Duration("check_interval", s.cfg.CheckInterval),
		zap.Duration("staleness", s.cfg.Staleness))

	for {
		roundFailed := s.runIncrementalRound(ctx)
		wait := s.cfg.CheckInterval
		if roundFailed {
			wait += s.cfg.Cooldown
			log.Warn("incremental round hit errors, extending pause",
				zap.Duration("wait", wait))
		}
		select {
		case <-ctx.Done():
			log.Info("incremental loop stopping")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *Scheduler) runIncrementalRound(ctx context.Context) (failed bool) {
	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID))

	cutoff := s.clock.Now().Add(-s.cfg.Staleness)
	refs, err := s.store.SelectStaleWorks(ctx, cutoff, s.cfg.IncrementalLimit)
	if err != nil {
		log.Error("select stale works failed", zap.Error(err))
		return true
	}
	if len(refs) == 0 {
		log.Debug("no stale works")
		return false
	}
	for i, ref := range refs {
		if ctx.Err() != nil {
			return failed
		}
		if i > 0 {
			if err := s.pause.Sleep(ctx); err != nil {
				return failed
			}
		}
		if !s.CrawlWork(ctx, ref) {
			failed = true
		}
	}
	return failed
}

// CrawlWork runs the chapter phase then the comment phase for one work,
// recording a status row per phase. The work counts as crawled if either
// phase persisted anything.
func (s *Scheduler) CrawlWork(ctx context.Context, ref crawler.WorkRef) bool {
	log := s.logger.With(zap.Int64("work_id", ref.WorkID), zap.String("title", ref.Title))
	log.Info("crawling work")

	chapterOK := s.runPhase(ctx, ref, crawler.CrawlChapters, s.chapters)

	if err := s.pause.Sleep(ctx); err != nil {
		log.Warn("inter-phase pause interrupted", zap.Error(err))
		return chapterOK
	}

	commentOK := s.runPhase(ctx, ref, crawler.CrawlComments, s.comments)

	ok := chapterOK || commentOK
	log.Info("work crawl finished",
		zap.Bool("chapters_ok", chapterOK),
		zap.Bool("comments_ok", commentOK))
	return ok
}

func (s *Scheduler) runPhase(ctx context.Context, ref crawler.WorkRef, kind crawler.CrawlType, wc WorkCrawler) bool {
	log := s.logger.With(zap.Int64("work_id", ref.WorkID), zap.String("crawl_type", string(kind)))

	report, err := wc.Crawl(ctx, ref)
	rec := crawler.StatusRecord{
		WorkID:      ref.WorkID,
		CrawlType:   kind,
		ItemCount:   report.Written,
		LastAttempt: s.clock.Now(),
	}
	switch {
	case err != nil:
		rec.State = crawler.StateFailed
		rec.ErrorMessage = err.Error()
		log.Warn("phase failed", zap.Error(err))
	case report.Succeeded():
		rec.State = crawler.StateSuccess
		log.Info("phase succeeded",
			zap.Int("attempted", report.Attempted),
			zap.Int("written", report.Written))
	default:
		rec.State = crawler.StateFailed
		rec.ErrorMessage = report.ErrorText()
		if rec.ErrorMessage == "" {
			rec.ErrorMessage = "nothing persisted"
		}
		log.Warn("phase persisted nothing", zap.Int("attempted", report.Attempted))
	}
	if serr := s.store.UpsertCrawlStatus(ctx, rec); serr != nil {
		log.Error("record crawl status failed", zap.Error(serr))
	}
	return rec.State == crawler.StateSuccess
}
