package crawler

import (
	"context"
	"fmt"
	"time"
)

// fakeRenderer serves canned pages keyed by URL and script results keyed
// by script constant, standing in for the browser session.
type fakeRenderer struct {
	pages       map[string]fakePage
	navErrs     map[string]error
	author      string
	scriptText  map[string]string
	inPageLinks []ChapterLink
	navigated   []string
	current     string
}

type fakePage struct {
	title  string
	source string
}

func (f *fakeRenderer) Navigate(_ context.Context, url string) error {
	if err := f.navErrs[url]; err != nil {
		return err
	}
	if _, ok := f.pages[url]; !ok {
		return fmt.Errorf("no such page %q", url)
	}
	f.current = url
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeRenderer) RunScript(_ context.Context, script string, out any) error {
	switch script {
	case dismissPopupsScript, scrollPageScript:
		if b, ok := out.(*bool); ok {
			*b = true
		}
	case authorLookupScript:
		if s, ok := out.(*string); ok {
			*s = f.author
		}
	case selectorExtractScript, densestBlockScript:
		if s, ok := out.(*string); ok {
			*s = f.scriptText[f.current]
		}
	case findChaptersScript:
		if l, ok := out.(*[]ChapterLink); ok {
			*l = f.inPageLinks
		}
	}
	return nil
}

func (f *fakeRenderer) CurrentURL(_ context.Context) (string, error) {
	return f.current, nil
}

func (f *fakeRenderer) PageTitle(_ context.Context) (string, error) {
	return f.pages[f.current].title, nil
}

func (f *fakeRenderer) PageSource(_ context.Context) (string, error) {
	return f.pages[f.current].source, nil
}

// fakeStore records every write in memory.
type fakeStore struct {
	works      []Work
	chapters   []Chapter
	comments   []Comment
	statuses   []StatusRecord
	files      map[string]string
	chapterIDs []string

	saveCommentsFn func(comments []Comment) (int, error)
}

func (f *fakeStore) UpsertWork(_ context.Context, w Work) error {
	f.works = append(f.works, w)
	return nil
}

func (f *fakeStore) UpsertChapter(_ context.Context, ch Chapter) error {
	f.chapters = append(f.chapters, ch)
	return nil
}

func (f *fakeStore) SaveComments(_ context.Context, comments []Comment) (int, error) {
	if f.saveCommentsFn != nil {
		return f.saveCommentsFn(comments)
	}
	f.comments = append(f.comments, comments...)
	return len(comments), nil
}

func (f *fakeStore) UpsertCrawlStatus(_ context.Context, rec StatusRecord) error {
	f.statuses = append(f.statuses, rec)
	return nil
}

func (f *fakeStore) SaveCrawlFile(_ context.Context, workID int64, name, content string) error {
	if f.files == nil {
		f.files = make(map[string]string)
	}
	f.files[fmt.Sprintf("%d/%s", workID, name)] = content
	return nil
}

func (f *fakeStore) SelectPendingWorks(_ context.Context, _ int) ([]WorkRef, error) {
	return nil, nil
}

func (f *fakeStore) SelectStaleWorks(_ context.Context, _ time.Time, _ int) ([]WorkRef, error) {
	return nil, nil
}

func (f *fakeStore) ChapterPlatformIDs(_ context.Context, _ int64, limit int) ([]string, error) {
	if len(f.chapterIDs) > limit {
		return f.chapterIDs[:limit], nil
	}
	return f.chapterIDs, nil
}

// noThrottle skips all pauses.
type noThrottle struct{}

func (noThrottle) Sleep(ctx context.Context) error { return ctx.Err() }

// fixedClock pins Now for deterministic timestamps.
type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }
