package timeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weftfeed/weft/internal/storage"
)

func pageOf(startID int64, n int) []byte {
	entries := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := startID - int64(i)
		entries = append(entries, entryXML(id, fmt.Sprintf("notice %d", id)))
	}
	return feedXML(entries...)
}

func newTestJob(t *testing.T, fetcher *fakeFetcher, mode FetchMode, perPage, maxPages int, limit *storage.ChainEntry) *FetchJob {
	t.Helper()
	store := newTestStore(t)
	return &FetchJob{
		Fetcher:  fetcher,
		Ingestor: newTestIngestor(t, store),
		Server:   testServer,
		Kind:     storage.TimelinePublic,
		Mode:     mode,
		PerPage:  perPage,
		MaxPages: maxPages,
		Limit:    limit,
		Log:      zap.NewNop().Sugar(),
	}
}

func TestJobShortPageMeansStartReached(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]byte{pageOf(100, 50), pageOf(50, 10)}}
	job := newTestJob(t, fetcher, ModeLoadMore, 50, 5, nil)

	result := job.Run(context.Background())
	require.True(t, result.Success)
	assert.True(t, result.ReachedStart)
	assert.Len(t, result.NewNotices, 60)
	assert.Len(t, fetcher.calls, 2)
}

func TestJobFullPagesUntilBudget(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]byte{pageOf(100, 50), pageOf(50, 50), pageOf(200, 50)}}
	job := newTestJob(t, fetcher, ModeLoadMore, 50, 2, nil)

	result := job.Run(context.Background())
	require.True(t, result.Success)

	// Every page came back full, so nothing says the history ended; the
	// budget is what stopped the job.
	assert.False(t, result.ReachedStart)
	assert.Len(t, result.NewNotices, 100)
	assert.Len(t, fetcher.calls, 2)
}

func TestJobSequentialPageNumbers(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]byte{pageOf(100, 3), pageOf(97, 3), pageOf(94, 1)}}
	job := newTestJob(t, fetcher, ModeLoadMore, 3, 10, nil)

	result := job.Run(context.Background())
	require.True(t, result.Success)
	require.Len(t, fetcher.calls, 3)
	for i, call := range fetcher.calls {
		assert.Equal(t, i+1, call.Page)
		assert.Equal(t, 3, call.Count)
	}
}

func TestJobRefreshUsesSinceID(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]byte{pageOf(120, 2)}}
	limit := &storage.ChainEntry{NoticeID: 100, Server: testServer}
	job := newTestJob(t, fetcher, ModeRefresh, 50, 1, limit)

	result := job.Run(context.Background())
	require.True(t, result.Success)
	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, int64(100), fetcher.calls[0].SinceID)
	assert.Zero(t, fetcher.calls[0].MaxID)
	assert.Same(t, limit, result.Limit)
}

func TestJobLoadMoreUsesMaxID(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]byte{pageOf(99, 2)}}
	limit := &storage.ChainEntry{NoticeID: 100, Server: testServer}
	job := newTestJob(t, fetcher, ModeLoadMore, 50, 1, limit)

	result := job.Run(context.Background())
	require.True(t, result.Success)
	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, int64(100), fetcher.calls[0].MaxID)
	assert.Zero(t, fetcher.calls[0].SinceID)
}

func TestJobNoLimitSendsNoCursor(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]byte{pageOf(100, 2)}}
	job := newTestJob(t, fetcher, ModeLoadMore, 50, 1, nil)

	result := job.Run(context.Background())
	require.True(t, result.Success)
	require.Len(t, fetcher.calls, 1)
	assert.Zero(t, fetcher.calls[0].SinceID)
	assert.Zero(t, fetcher.calls[0].MaxID)
}

func TestJobDownloadFailureDiscardsEverything(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	job := newTestJob(t, fetcher, ModeLoadMore, 50, 2, nil)

	result := job.Run(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "failed to download")
	assert.Empty(t, result.NewNotices)
	assert.False(t, result.ReachedStart)
}

func TestJobParseFailureDiscardsEarlierPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]byte{pageOf(100, 2), []byte("<feed><entry>")}}
	job := newTestJob(t, fetcher, ModeLoadMore, 2, 5, nil)

	result := job.Run(context.Background())
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "failed to parse")

	// The first page was fine, but a partial multi-page window is useless
	// for chaining.
	assert.Empty(t, result.NewNotices)
}

func TestJobSuccessMessage(t *testing.T) {
	fetcher := &fakeFetcher{pages: [][]byte{pageOf(100, 1)}}
	job := newTestJob(t, fetcher, ModeRefresh, 50, 1, nil)

	result := job.Run(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, "downloaded 1 notice", result.Message)

	fetcher = &fakeFetcher{pages: [][]byte{pageOf(100, 2)}}
	job = newTestJob(t, fetcher, ModeRefresh, 50, 1, nil)
	result = job.Run(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, "downloaded 2 notices", result.Message)
}
