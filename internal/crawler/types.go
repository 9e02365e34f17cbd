// Package crawler defines core types shared across subsystems.
package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// CrawlType identifies which facet of a work a crawl attempt covers.
type CrawlType string

// Crawl types persisted in crawl_status.crawl_type.
const (
	CrawlChapters CrawlType = "chapters"
	CrawlComments CrawlType = "comments"
)

// CrawlState represents the lifecycle state of a crawl attempt.
type CrawlState string

// Crawl states persisted in crawl_status.status. A work with no status
// row is implicitly pending.
const (
	StatePending CrawlState = "pending"
	StateSuccess CrawlState = "success"
	StateFailed  CrawlState = "failed"
)

// CompletionStatus marks whether a work is still being serialized.
type CompletionStatus string

// Completion statuses persisted in works.completion_status.
const (
	StatusOngoing   CompletionStatus = "ongoing"
	StatusCompleted CompletionStatus = "completed"
)

// Work is one novel on the source platform.
type Work struct {
	WorkID           int64            `json:"work_id"`
	Title            string           `json:"title"`
	Author           string           `json:"author"`
	Platform         string           `json:"platform"`
	SourceURL        string           `json:"source_url"`
	Category         string           `json:"category"`
	Tags             string           `json:"tags"`
	CompletionStatus CompletionStatus `json:"completion_status"`
	// ReferenceValue is an opaque platform popularity metric; it is
	// stored verbatim and never interpreted.
	ReferenceValue string `json:"reference_value"`
}

// WorkRef is the minimal identity the scheduler needs to select work.
type WorkRef struct {
	WorkID    int64
	Title     string
	SourceURL string
}

// Chapter is one installment of a work's text content. Identity is
// (WorkID, ChapterNo); ChapterNo is a string label because sequencing is
// not always numeric (prologues, extras).
type Chapter struct {
	WorkID        int64     `json:"work_id"`
	ChapterNo     string    `json:"chapter_no"`
	PlatformID    string    `json:"platform_id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	SourceURL     string    `json:"source_url"`
	IsVIP         bool      `json:"is_vip"`
	RequiresLogin bool      `json:"requires_login"`
	ContentLength int       `json:"content_length"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Comment is a single reader comment, optionally tied to a chapter.
type Comment struct {
	WorkID      int64  `json:"work_id"`
	AuthorName  string `json:"author_name"`
	Body        string `json:"body"`
	PostedAt    string `json:"posted_at"`
	LikeCount   int    `json:"like_count"`
	FloorNo     int    `json:"floor_no"`
	ChapterID   string `json:"chapter_id"`
	ChapterName string `json:"chapter_name"`
}

// DedupHash derives the natural key used for idempotent comment upserts.
// The source platform exposes no stable comment ID, so identity is a
// digest over the fields that make a comment distinguishable.
func (c Comment) DedupHash() string {
	body := strings.Join(strings.Fields(c.Body), " ")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", c.WorkID, c.AuthorName, body, c.PostedAt)))
	return hex.EncodeToString(sum[:])
}

// StatusRecord is the per-(work, crawl-type) attempt record. Each attempt
// overwrites the previous row; no history is retained.
type StatusRecord struct {
	WorkID       int64      `json:"work_id"`
	CrawlType    CrawlType  `json:"crawl_type"`
	State        CrawlState `json:"state"`
	ItemCount    int        `json:"item_count"`
	ErrorMessage string     `json:"error_message"`
	LastAttempt  time.Time  `json:"last_attempt"`
}

// ChapterLink is one candidate chapter discovered on a catalog page.
type ChapterLink struct {
	URL         string `json:"url"`
	DisplayText string `json:"display_text"`
	TierTag     string `json:"tier_tag"`
}

// ExtractionResult is the outcome of the content-extraction cascade for
// one rendered chapter page. Empty Body means no strategy cleared its
// threshold and the chapter must not be persisted.
type ExtractionResult struct {
	Title         string
	Body          string
	SourceURL     string
	ContentLength int
	IsVIP         bool
	RequiresLogin bool
	Strategy      string
}

// Empty reports whether extraction failed to produce usable content.
func (r ExtractionResult) Empty() bool {
	return r.Body == ""
}

// PhaseReport aggregates per-record outcomes of one crawl phase so the
// caller can derive attempt-level success without scraping logs.
type PhaseReport struct {
	Attempted int
	Written   int
	Failures  []string
}

// RecordFailure appends a per-record failure reason.
func (r *PhaseReport) RecordFailure(reason string) {
	r.Attempted++
	r.Failures = append(r.Failures, reason)
}

// RecordWritten counts a successfully persisted record.
func (r *PhaseReport) RecordWritten() {
	r.Attempted++
	r.Written++
}

// Succeeded applies the attempt-level policy: any persisted record counts.
func (r PhaseReport) Succeeded() bool {
	return r.Written > 0
}

// ErrorText flattens failure reasons for the status record, bounded so a
// pathological batch cannot bloat the row.
func (r PhaseReport) ErrorText() string {
	if len(r.Failures) == 0 {
		return ""
	}
	const maxReasons = 5
	reasons := r.Failures
	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}
	text := strings.Join(reasons, "; ")
	if len(r.Failures) > maxReasons {
		text = fmt.Sprintf("%s; (+%d more)", text, len(r.Failures)-maxReasons)
	}
	return text
}
