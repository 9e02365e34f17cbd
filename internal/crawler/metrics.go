package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChaptersSaved tracks chapters successfully persisted.
	ChaptersSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_chapters_saved_total",
		Help: "The total number of chapters extracted and saved.",
	})
	// CommentsSaved tracks comments successfully persisted.
	CommentsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_comments_saved_total",
		Help: "The total number of comments parsed and saved.",
	})
	// ExtractionFallbacks tracks chapters that fell through to the
	// whole-body strategy.
	ExtractionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_extraction_fallbacks_total",
		Help: "The total number of extractions served by the full-page fallback.",
	})
	// ExtractionEmpty tracks chapters where no strategy cleared its threshold.
	ExtractionEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_extraction_empty_total",
		Help: "The total number of chapter pages yielding no usable content.",
	})
	// RenderErrors tracks renderer navigation and script failures.
	RenderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_render_errors_total",
		Help: "The total number of renderer failures.",
	})
	// CommentRequestErrors tracks failed comment API requests.
	CommentRequestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_comment_request_errors_total",
		Help: "The total number of failed comment API requests.",
	})
	// PersistErrors tracks per-record persistence failures.
	PersistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawler_persist_errors_total",
		Help: "The total number of records that failed to persist.",
	})
)
