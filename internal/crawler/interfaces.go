package crawler

import (
	"context"
	"time"
)

// Renderer is the opaque page-rendering capability. Implementations own
// the browser session; the crawler only navigates and evaluates scripts.
// The session is reused serially across chapters and must not be shared
// across goroutines.
type Renderer interface {
	Navigate(ctx context.Context, url string) error
	RunScript(ctx context.Context, script string, out any) error
	CurrentURL(ctx context.Context) (string, error)
	PageTitle(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)
}

// Store owns all writes to the relational store. The scheduler's
// selection queries are the only reads outside this interface's writers.
type Store interface {
	UpsertWork(ctx context.Context, w Work) error
	UpsertChapter(ctx context.Context, ch Chapter) error
	SaveComments(ctx context.Context, comments []Comment) (int, error)
	UpsertCrawlStatus(ctx context.Context, rec StatusRecord) error
	SaveCrawlFile(ctx context.Context, workID int64, name, content string) error

	SelectPendingWorks(ctx context.Context, limit int) ([]WorkRef, error)
	SelectStaleWorks(ctx context.Context, olderThan time.Time, limit int) ([]WorkRef, error)
	ChapterPlatformIDs(ctx context.Context, workID int64, limit int) ([]string, error)
}

// CommentAPI fetches one page of raw comment JSON from the platform's
// comment endpoints. Transport details are not the crawler's concern.
type CommentAPI interface {
	FetchReviewPage(ctx context.Context, bookID string, page int) ([]byte, error)
	FetchChapterPage(ctx context.Context, bookID, chapterID string, page int) ([]byte, error)
}

// Sleeper throttles between outbound requests. Tests inject a zero-delay
// implementation.
type Sleeper interface {
	Sleep(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
