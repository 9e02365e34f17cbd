package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCommentAPI struct {
	reviewPages  map[int][]byte
	chapterPages map[string]map[int][]byte
	reviewErr    error
}

func (f *fakeCommentAPI) FetchReviewPage(_ context.Context, _ string, page int) ([]byte, error) {
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	payload, ok := f.reviewPages[page]
	if !ok {
		return nil, fmt.Errorf("unexpected review page %d", page)
	}
	return payload, nil
}

func (f *fakeCommentAPI) FetchChapterPage(_ context.Context, _ string, chapterID string, page int) ([]byte, error) {
	pages, ok := f.chapterPages[chapterID]
	if !ok {
		return nil, fmt.Errorf("unexpected chapter %s", chapterID)
	}
	payload, ok := pages[page]
	if !ok {
		return nil, fmt.Errorf("unexpected page %d for chapter %s", page, chapterID)
	}
	return payload, nil
}

func commentPayload(t *testing.T, page, n int, hasNext bool) []byte {
	t.Helper()
	posts := make([]map[string]any, n)
	for i := range posts {
		posts[i] = map[string]any{
			"userName":   fmt.Sprintf("读者%d_%d", page, i),
			"content":    fmt.Sprintf("第%d页的评论内容%d", page, i),
			"createTime": fmt.Sprintf("2026-08-01 %02d:%02d:00", page, i),
			"likeNum":    i,
		}
	}
	payload, err := json.Marshal(map[string]any{
		"data": map[string]any{"posts": posts, "hasNext": hasNext},
	})
	require.NoError(t, err)
	return payload
}

func emptyPayload(t *testing.T) []byte {
	t.Helper()
	return commentPayload(t, 1, 0, false)
}

func newCommentCrawlerUnderTest(api CommentAPI, st Store) *CommentCrawler {
	return NewCommentCrawler(api, st, noThrottle{}, CommentCrawlerConfig{
		MaxPagesPerTarget: 3,
		ChapterLimit:      10,
	}, zap.NewNop())
}

func TestCommentCrawlPaginatesReviewSection(t *testing.T) {
	t.Parallel()

	api := &fakeCommentAPI{
		reviewPages: map[int][]byte{
			1: commentPayload(t, 1, 20, true),
			2: commentPayload(t, 2, 5, false),
		},
	}
	st := &fakeStore{}

	c := newCommentCrawlerUnderTest(api, st)
	report, err := c.Crawl(context.Background(), WorkRef{WorkID: 42, SourceURL: "https://www.qidian.com/book/42/"})
	require.NoError(t, err)

	require.Equal(t, 25, report.Attempted)
	require.Equal(t, 25, report.Written)
	require.True(t, report.Succeeded())
	require.Len(t, st.comments, 25)
	require.Equal(t, int64(42), st.comments[0].WorkID)
}

func TestCommentCrawlStopsAtPageCap(t *testing.T) {
	t.Parallel()

	api := &fakeCommentAPI{
		reviewPages: map[int][]byte{
			1: commentPayload(t, 1, 20, true),
			2: commentPayload(t, 2, 20, true),
			3: commentPayload(t, 3, 20, true),
			// Page 4 exists upstream but must never be requested.
		},
	}
	st := &fakeStore{}

	c := newCommentCrawlerUnderTest(api, st)
	report, err := c.Crawl(context.Background(), WorkRef{WorkID: 42, SourceURL: "https://www.qidian.com/book/42/"})
	require.NoError(t, err)
	require.Equal(t, 60, report.Written)
}

func TestCommentCrawlWalksChapterThreads(t *testing.T) {
	t.Parallel()

	api := &fakeCommentAPI{
		reviewPages: map[int][]byte{1: emptyPayload(t)},
		chapterPages: map[string]map[int][]byte{
			"1001": {1: commentPayload(t, 1, 3, false)},
			"1002": {1: commentPayload(t, 2, 4, false)},
		},
	}
	st := &fakeStore{chapterIDs: []string{"1001", "1002"}}

	c := newCommentCrawlerUnderTest(api, st)
	report, err := c.Crawl(context.Background(), WorkRef{WorkID: 42, SourceURL: "https://www.qidian.com/book/42/"})
	require.NoError(t, err)
	require.Equal(t, 7, report.Written)
	require.Len(t, st.comments, 7)
}

func TestCommentCrawlFetchFailureIsContained(t *testing.T) {
	t.Parallel()

	api := &fakeCommentAPI{reviewErr: errors.New("status 503")}
	st := &fakeStore{}

	c := newCommentCrawlerUnderTest(api, st)
	report, err := c.Crawl(context.Background(), WorkRef{WorkID: 42, SourceURL: "https://www.qidian.com/book/42/"})
	require.NoError(t, err)
	require.False(t, report.Succeeded())
	require.Zero(t, report.Attempted)
}

func TestCommentCrawlPartialSaveRecorded(t *testing.T) {
	t.Parallel()

	api := &fakeCommentAPI{
		reviewPages: map[int][]byte{1: commentPayload(t, 1, 10, false)},
	}
	st := &fakeStore{
		saveCommentsFn: func(comments []Comment) (int, error) {
			return len(comments) - 2, errors.New("value too long")
		},
	}

	c := newCommentCrawlerUnderTest(api, st)
	report, err := c.Crawl(context.Background(), WorkRef{WorkID: 42, SourceURL: "https://www.qidian.com/book/42/"})
	require.NoError(t, err)
	require.Equal(t, 10, report.Attempted)
	require.Equal(t, 8, report.Written)
	require.Len(t, report.Failures, 1)
	require.Contains(t, report.Failures[0], "2 of 10")
}

func TestCommentCrawlBadSourceURL(t *testing.T) {
	t.Parallel()

	c := newCommentCrawlerUnderTest(&fakeCommentAPI{}, &fakeStore{})
	_, err := c.Crawl(context.Background(), WorkRef{WorkID: 42, SourceURL: ""})
	require.Error(t, err)
}
