// Package store provides Postgres-backed persistence for crawled works,
// chapters, comments, and crawl bookkeeping.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/noveldata/qdcrawler/internal/crawler"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres implements crawler.Store over a pgx connection pool.
type Postgres struct {
	pool   querier
	logger *zap.Logger
}

// New creates a Postgres store using the provided config.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool querier, logger *zap.Logger) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// EnsureSchema creates all tables and indexes if they do not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const upsertWorkSQL = `
INSERT INTO works (work_id, title, author, platform, source_url, category, tags, completion_status, reference_value, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
ON CONFLICT (work_id) DO UPDATE SET
	title = EXCLUDED.title,
	author = EXCLUDED.author,
	platform = EXCLUDED.platform,
	source_url = EXCLUDED.source_url,
	updated_at = NOW()`

// UpsertWork inserts or refreshes one work's metadata row. On conflict
// only the fields the crawler observes on the page are refreshed;
// category, tags, completion_status and reference_value keep whatever
// values the row already holds, so pre-seeded metadata survives
// re-crawls.
func (s *Postgres) UpsertWork(ctx context.Context, w crawler.Work) error {
	_, err := s.pool.Exec(ctx, upsertWorkSQL,
		w.WorkID, w.Title, w.Author, w.Platform, w.SourceURL,
		w.Category, w.Tags, string(w.CompletionStatus), w.ReferenceValue)
	if err != nil {
		return fmt.Errorf("upsert work %d: %w", w.WorkID, err)
	}
	return nil
}

const upsertChapterSQL = `
INSERT INTO chapters (work_id, chapter_no, platform_id, title, body, source_url, is_vip, requires_login, content_length, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (work_id, chapter_no) DO UPDATE SET
	platform_id = EXCLUDED.platform_id,
	title = EXCLUDED.title,
	body = EXCLUDED.body,
	source_url = EXCLUDED.source_url,
	is_vip = EXCLUDED.is_vip,
	requires_login = EXCLUDED.requires_login,
	content_length = EXCLUDED.content_length,
	fetched_at = EXCLUDED.fetched_at`

// UpsertChapter inserts or refreshes one chapter keyed by (work_id,
// chapter_no). Re-crawling a chapter overwrites the body in place so the
// row count never grows for repeat visits.
func (s *Postgres) UpsertChapter(ctx context.Context, ch crawler.Chapter) error {
	_, err := s.pool.Exec(ctx, upsertChapterSQL,
		ch.WorkID, ch.ChapterNo, ch.PlatformID, ch.Title, ch.Body,
		ch.SourceURL, ch.IsVIP, ch.RequiresLogin, ch.ContentLength, ch.FetchedAt)
	if err != nil {
		return fmt.Errorf("upsert chapter %d/%s: %w", ch.WorkID, ch.ChapterNo, err)
	}
	return nil
}

const insertCommentSQL = `
INSERT INTO comments (work_id, dedup_hash, author_name, body, posted_at, like_count, floor_no, chapter_id, chapter_name)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (dedup_hash) DO UPDATE SET
	like_count = EXCLUDED.like_count,
	floor_no = EXCLUDED.floor_no`

// SaveComments persists a page of comments one row at a time so a single
// bad record cannot sink the batch. It returns the number of rows written;
// duplicates refresh their mutable counters and still count as written.
func (s *Postgres) SaveComments(ctx context.Context, comments []crawler.Comment) (int, error) {
	written := 0
	var firstErr error
	for _, c := range comments {
		_, err := s.pool.Exec(ctx, insertCommentSQL,
			c.WorkID, c.DedupHash(), c.AuthorName, c.Body, c.PostedAt,
			c.LikeCount, c.FloorNo, c.ChapterID, c.ChapterName)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("save comment for work %d: %w", c.WorkID, err)
			}
			s.logger.Warn("comment insert failed",
				zap.Int64("work_id", c.WorkID),
				zap.String("author", c.AuthorName),
				zap.Error(err))
			continue
		}
		written++
	}
	return written, firstErr
}

const upsertStatusSQL = `
INSERT INTO crawl_status (work_id, crawl_type, status, item_count, error_message, last_attempt)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (work_id, crawl_type) DO UPDATE SET
	status = EXCLUDED.status,
	item_count = EXCLUDED.item_count,
	error_message = EXCLUDED.error_message,
	last_attempt = EXCLUDED.last_attempt`

// UpsertCrawlStatus records the latest attempt for (work, crawl type).
// Each attempt replaces the previous row; there is exactly one row per
// pair no matter how many attempts are made.
func (s *Postgres) UpsertCrawlStatus(ctx context.Context, rec crawler.StatusRecord) error {
	_, err := s.pool.Exec(ctx, upsertStatusSQL,
		rec.WorkID, string(rec.CrawlType), string(rec.State),
		rec.ItemCount, rec.ErrorMessage, rec.LastAttempt)
	if err != nil {
		return fmt.Errorf("upsert crawl status %d/%s: %w", rec.WorkID, rec.CrawlType, err)
	}
	return nil
}

const insertCrawlFileSQL = `
INSERT INTO crawl_files (work_id, file_name, content, size_bytes)
VALUES ($1, $2, $3, $4)
ON CONFLICT (work_id, file_name) DO NOTHING`

// SaveCrawlFile archives one raw page snapshot. Re-archiving the same
// page name is a no-op; snapshots are write-once.
func (s *Postgres) SaveCrawlFile(ctx context.Context, workID int64, name, content string) error {
	_, err := s.pool.Exec(ctx, insertCrawlFileSQL, workID, name, content, len(content))
	if err != nil {
		return fmt.Errorf("save crawl file %d/%s: %w", workID, name, err)
	}
	return nil
}

const selectPendingSQL = `
SELECT w.work_id, w.title, w.source_url,
	EXISTS (SELECT 1 FROM chapters c WHERE c.work_id = w.work_id) AS has_chapters
FROM works w
WHERE NOT EXISTS (SELECT 1 FROM chapters c WHERE c.work_id = w.work_id)
   OR NOT EXISTS (SELECT 1 FROM comments m WHERE m.work_id = w.work_id)
ORDER BY has_chapters ASC, w.work_id ASC
LIMIT $1`

// SelectPendingWorks returns works still missing chapters or comments.
// Works with no chapters at all sort first so text content lands before
// discussion data.
func (s *Postgres) SelectPendingWorks(ctx context.Context, limit int) ([]crawler.WorkRef, error) {
	rows, err := s.pool.Query(ctx, selectPendingSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending works: %w", err)
	}
	defer rows.Close()
	var refs []crawler.WorkRef
	for rows.Next() {
		var ref crawler.WorkRef
		var hasChapters bool
		if err := rows.Scan(&ref.WorkID, &ref.Title, &ref.SourceURL, &hasChapters); err != nil {
			return nil, fmt.Errorf("scan pending work: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select pending works: %w", err)
	}
	return refs, nil
}

const selectStaleSQL = `
SELECT w.work_id, w.title, w.source_url
FROM works w
LEFT JOIN crawl_status cs ON cs.work_id = w.work_id AND cs.crawl_type = $1
WHERE cs.last_attempt IS NULL OR cs.last_attempt < $2
ORDER BY cs.last_attempt ASC NULLS FIRST, w.work_id ASC
LIMIT $3`

// SelectStaleWorks returns works whose chapter crawl is older than the
// given cutoff, oldest first. Works never attempted sort ahead of all
// attempted ones.
func (s *Postgres) SelectStaleWorks(ctx context.Context, olderThan time.Time, limit int) ([]crawler.WorkRef, error) {
	rows, err := s.pool.Query(ctx, selectStaleSQL, string(crawler.CrawlChapters), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("select stale works: %w", err)
	}
	defer rows.Close()
	var refs []crawler.WorkRef
	for rows.Next() {
		var ref crawler.WorkRef
		if err := rows.Scan(&ref.WorkID, &ref.Title, &ref.SourceURL); err != nil {
			return nil, fmt.Errorf("scan stale work: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select stale works: %w", err)
	}
	return refs, nil
}

const chapterIDsSQL = `
SELECT platform_id
FROM chapters
WHERE work_id = $1 AND platform_id <> ''
ORDER BY id ASC
LIMIT $2`

// ChapterPlatformIDs returns the platform-side chapter IDs stored for a
// work, in crawl order, for per-chapter comment fetching.
func (s *Postgres) ChapterPlatformIDs(ctx context.Context, workID int64, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, chapterIDsSQL, workID, limit)
	if err != nil {
		return nil, fmt.Errorf("select chapter ids for work %d: %w", workID, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chapter id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select chapter ids for work %d: %w", workID, err)
	}
	return ids, nil
}
