package store

import (
	"context"
	"fmt"
	"time"

	"github.com/noveldata/qdcrawler/internal/crawler"
)

// Report is the aggregate view shown by the status command.
type Report struct {
	TotalWorks    int64
	TotalChapters int64
	TotalComments int64
	StateCounts   map[string]int64
	Failures      []FailureRow
}

// FailureRow is one recently failed crawl attempt.
type FailureRow struct {
	WorkID       int64
	CrawlType    crawler.CrawlType
	ErrorMessage string
	LastAttempt  time.Time
}

const reportTotalsSQL = `
SELECT
	(SELECT COUNT(*) FROM works),
	(SELECT COUNT(*) FROM chapters),
	(SELECT COUNT(*) FROM comments)`

const reportStatesSQL = `
SELECT crawl_type || '/' || status, COUNT(*)
FROM crawl_status
GROUP BY 1
ORDER BY 1`

const reportFailuresSQL = `
SELECT work_id, crawl_type, error_message, last_attempt
FROM crawl_status
WHERE status = $1
ORDER BY last_attempt DESC
LIMIT $2`

// BuildReport gathers the corpus totals, per-state attempt counts, and
// the most recent failures.
func (s *Postgres) BuildReport(ctx context.Context, failureLimit int) (Report, error) {
	rep := Report{StateCounts: map[string]int64{}}
	row := s.pool.QueryRow(ctx, reportTotalsSQL)
	if err := row.Scan(&rep.TotalWorks, &rep.TotalChapters, &rep.TotalComments); err != nil {
		return Report{}, fmt.Errorf("report totals: %w", err)
	}

	rows, err := s.pool.Query(ctx, reportStatesSQL)
	if err != nil {
		return Report{}, fmt.Errorf("report states: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return Report{}, fmt.Errorf("scan state count: %w", err)
		}
		rep.StateCounts[key] = count
	}
	if err := rows.Err(); err != nil {
		return Report{}, fmt.Errorf("report states: %w", err)
	}

	frows, err := s.pool.Query(ctx, reportFailuresSQL, string(crawler.StateFailed), failureLimit)
	if err != nil {
		return Report{}, fmt.Errorf("report failures: %w", err)
	}
	defer frows.Close()
	for frows.Next() {
		var f FailureRow
		var crawlType string
		if err := frows.Scan(&f.WorkID, &crawlType, &f.ErrorMessage, &f.LastAttempt); err != nil {
			return Report{}, fmt.Errorf("scan failure row: %w", err)
		}
		f.CrawlType = crawler.CrawlType(crawlType)
		rep.Failures = append(rep.Failures, f)
	}
	if err := frows.Err(); err != nil {
		return Report{}, fmt.Errorf("report failures: %w", err)
	}
	return rep, nil
}
