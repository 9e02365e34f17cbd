package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noveldata/qdcrawler/internal/crawler"
)

type fakeStore struct {
	crawler.Store

	pendingRounds [][]crawler.WorkRef
	staleWorks    []crawler.WorkRef
	statuses      []crawler.StatusRecord
	selectErr     error
}

func (f *fakeStore) SelectPendingWorks(_ context.Context, _ int) ([]crawler.WorkRef, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	if len(f.pendingRounds) == 0 {
		return nil, nil
	}
	round := f.pendingRounds[0]
	f.pendingRounds = f.pendingRounds[1:]
	return round, nil
}

func (f *fakeStore) SelectStaleWorks(_ context.Context, _ time.Time, limit int) ([]crawler.WorkRef, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	if len(f.staleWorks) > limit {
		return f.staleWorks[:limit], nil
	}
	return f.staleWorks, nil
}

func (f *fakeStore) UpsertCrawlStatus(_ context.Context, rec crawler.StatusRecord) error {
	f.statuses = append(f.statuses, rec)
	return nil
}

type fakeCrawler struct {
	crawled []int64
	report  crawler.PhaseReport
	err     error
}

func (f *fakeCrawler) Crawl(_ context.Context, ref crawler.WorkRef) (crawler.PhaseReport, error) {
	f.crawled = append(f.crawled, ref.WorkID)
	return f.report, f.err
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type noSleep struct{}

func (noSleep) Sleep(ctx context.Context) error { return ctx.Err() }

type countingSleep struct{ calls int }

func (c *countingSleep) Sleep(ctx context.Context) error {
	c.calls++
	return ctx.Err()
}

func newTestScheduler(st *fakeStore, ch, cm *fakeCrawler) *Scheduler {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	return New(st, ch, cm, noSleep{}, fixedClock{at: time.Unix(1700000000, 0).UTC()}, cfg, zap.NewNop())
}

func TestRunBatchCrawlsEveryPendingWorkOnce(t *testing.T) {
	t.Parallel()

	st := &fakeStore{
		pendingRounds: [][]crawler.WorkRef{
			{{WorkID: 1}, {WorkID: 2}},
			{{WorkID: 3}},
			// Work 3 stays pending because its crawl wrote nothing;
			// the run must still terminate.
			{{WorkID: 3}},
		},
	}
	ch := &fakeCrawler{report: crawler.PhaseReport{Attempted: 5, Written: 5}}
	cm := &fakeCrawler{report: crawler.PhaseReport{Attempted: 3, Written: 3}}

	s := newTestScheduler(st, ch, cm)
	require.NoError(t, s.RunBatch(context.Background()))

	require.Equal(t, []int64{1, 2, 3}, ch.crawled)
	require.Equal(t, []int64{1, 2, 3}, cm.crawled)
	// One status row per phase per work.
	require.Len(t, st.statuses, 6)
}

func TestRunBatchPausesBetweenWorks(t *testing.T) {
	t.Parallel()

	st := &fakeStore{
		pendingRounds: [][]crawler.WorkRef{
			{{WorkID: 1}, {WorkID: 2}},
			{{WorkID: 3}},
		},
	}
	ch := &fakeCrawler{report: crawler.PhaseReport{Attempted: 1, Written: 1}}
	cm := &fakeCrawler{report: crawler.PhaseReport{Attempted: 1, Written: 1}}

	pause := &countingSleep{}
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	s := New(st, ch, cm, pause, fixedClock{at: time.Unix(1700000000, 0).UTC()}, cfg, zap.NewNop())

	require.NoError(t, s.RunBatch(context.Background()))
	require.Equal(t, []int64{1, 2, 3}, ch.crawled)
	// One sleep between the phases of each of the three works, plus one
	// between consecutive works but none before the first.
	require.Equal(t, 5, pause.calls)
}

func TestIncrementalRoundPausesBetweenWorks(t *testing.T) {
	t.Parallel()

	st := &fakeStore{staleWorks: []crawler.WorkRef{{WorkID: 1}, {WorkID: 2}}}
	ch := &fakeCrawler{report: crawler.PhaseReport{Attempted: 1, Written: 1}}
	cm := &fakeCrawler{report: crawler.PhaseReport{Attempted: 1, Written: 1}}

	pause := &countingSleep{}
	s := New(st, ch, cm, pause, fixedClock{at: time.Unix(1700000000, 0).UTC()}, DefaultConfig(), zap.NewNop())

	require.False(t, s.runIncrementalRound(context.Background()))
	// Two inter-phase sleeps plus one between the two works.
	require.Equal(t, 3, pause.calls)
}

func TestRunBatchStopsOnCancel(t *testing.T) {
	t.Parallel()

	st := &fakeStore{pendingRounds: [][]crawler.WorkRef{{{WorkID: 1}, {WorkID: 2}}}}
	ch := &fakeCrawler{report: crawler.PhaseReport{Attempted: 1, Written: 1}}
	cm := &fakeCrawler{report: crawler.PhaseReport{Attempted: 1, Written: 1}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestScheduler(st, ch, cm)
	require.ErrorIs(t, s.RunBatch(ctx), context.Canceled)
	require.Empty(t, ch.crawled)
}

func TestCrawlWorkRecordsFailureStatus(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	ch := &fakeCrawler{err: errors.New("no chapter links found")}
	cm := &fakeCrawler{report: crawler.PhaseReport{Attempted: 10, Written: 10}}

	s := newTestScheduler(st, ch, cm)
	ok := s.CrawlWork(context.Background(), crawler.WorkRef{WorkID: 7, Title: "某书"})

	// Comment phase succeeded, so the work still counts.
	require.True(t, ok)
	require.Len(t, st.statuses, 2)

	require.Equal(t, crawler.CrawlChapters, st.statuses[0].CrawlType)
	require.Equal(t, crawler.StateFailed, st.statuses[0].State)
	require.Equal(t, "no chapter links found", st.statuses[0].ErrorMessage)

	require.Equal(t, crawler.CrawlComments, st.statuses[1].CrawlType)
	require.Equal(t, crawler.StateSuccess, st.statuses[1].State)
	require.Equal(t, 10, st.statuses[1].ItemCount)
}

func TestCrawlWorkNothingPersistedIsFailure(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	empty := crawler.PhaseReport{Attempted: 4, Failures: []string{"extraction produced no content"}}
	ch := &fakeCrawler{report: empty}
	cm := &fakeCrawler{report: crawler.PhaseReport{}}

	s := newTestScheduler(st, ch, cm)
	ok := s.CrawlWork(context.Background(), crawler.WorkRef{WorkID: 8})

	require.False(t, ok)
	require.Equal(t, crawler.StateFailed, st.statuses[0].State)
	require.Contains(t, st.statuses[0].ErrorMessage, "extraction produced no content")
	require.Equal(t, crawler.StateFailed, st.statuses[1].State)
	require.Equal(t, "nothing persisted", st.statuses[1].ErrorMessage)
}

func TestIncrementalRoundRespectsLimit(t *testing.T) {
	t.Parallel()

	st := &fakeStore{staleWorks: []crawler.WorkRef{
		{WorkID: 1}, {WorkID: 2}, {WorkID: 3}, {WorkID: 4}, {WorkID: 5},
	}}
	ch := &fakeCrawler{report: crawler.PhaseReport{Attempted: 1, Written: 1}}
	cm := &fakeCrawler{report: crawler.PhaseReport{Attempted: 1, Written: 1}}

	s := newTestScheduler(st, ch, cm)
	failed := s.runIncrementalRound(context.Background())

	require.False(t, failed)
	require.Equal(t, []int64{1, 2, 3}, ch.crawled)
}

func TestIncrementalRoundReportsSelectionError(t *testing.T) {
	t.Parallel()

	st := &fakeStore{selectErr: errors.New("connection refused")}
	s := newTestScheduler(st, &fakeCrawler{}, &fakeCrawler{})

	require.True(t, s.runIncrementalRound(context.Background()))
}
