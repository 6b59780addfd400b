package timeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/weftfeed/weft/internal/api"
	"github.com/weftfeed/weft/internal/feed"
	"github.com/weftfeed/weft/internal/storage"
)

// FetchMode selects which cursor parameter bounds a fetch job.
type FetchMode int

const (
	// ModeRefresh fetches notices newer than the limit via since_id.
	ModeRefresh FetchMode = iota
	// ModeLoadMore fetches notices older than the limit via max_id.
	ModeLoadMore
)

// FetchResult is the outcome of one paginated fetch job.
type FetchResult struct {
	// Success is false if any page request failed outright. Notices from
	// earlier pages of a failed job are not reported.
	Success      bool
	Message      string
	NewNotices   []*storage.Notice
	ReachedStart bool
	// Limit echoes the bounding chain entry so the merge step can re-attach
	// chain pointers.
	Limit *storage.ChainEntry
	Mode  FetchMode
}

// FetchJob walks one timeline endpoint page by page until a short page
// signals the start of the available history or the page budget runs out.
// Pages are requested strictly sequentially.
type FetchJob struct {
	Fetcher  api.Fetcher
	Ingestor *Ingestor
	Server   string
	Kind     storage.TimelineKind
	Param    string
	Mode     FetchMode
	PerPage  int
	MaxPages int
	Limit    *storage.ChainEntry
	Log      *zap.SugaredLogger
}

// Run executes the job to completion or first failure.
func (j *FetchJob) Run(ctx context.Context) *FetchResult {
	result := &FetchResult{Limit: j.Limit, Mode: j.Mode}

	page := 1
	for {
		params := api.ListParams{Page: page, Count: j.PerPage}
		if j.Limit != nil {
			switch j.Mode {
			case ModeRefresh:
				params.SinceID = j.Limit.NoticeID
			case ModeLoadMore:
				params.MaxID = j.Limit.NoticeID
			}
		}

		j.Log.Debugf("fetching timeline kind=%d page=%d%s", j.Kind, page, params.QueryString())
		body, err := j.Fetcher.FetchTimelinePage(ctx, j.Kind, j.Param, params)
		if err != nil {
			return j.fail(result, fmt.Sprintf("failed to download: %v", err))
		}

		entries, err := feed.ParseEntries(body)
		if err != nil {
			return j.fail(result, fmt.Sprintf("failed to parse feed: %v", err))
		}

		notices, err := j.Ingestor.Ingest(j.Server, entries, nil)
		if err != nil {
			return j.fail(result, fmt.Sprintf("failed to store notices: %v", err))
		}
		result.NewNotices = append(result.NewNotices, notices...)

		// A short page means the server ran out of results.
		result.ReachedStart = len(entries) < j.PerPage

		page++
		if result.ReachedStart || page > j.MaxPages {
			break
		}
	}

	result.Success = true
	plural := "s"
	if len(result.NewNotices) == 1 {
		plural = ""
	}
	result.Message = fmt.Sprintf("downloaded %d notice%s", len(result.NewNotices), plural)
	return result
}

// fail finalizes a job after a page error. Notices accumulated from earlier
// pages are dropped from the result; they were never linked into a chain.
func (j *FetchJob) fail(result *FetchResult, message string) *FetchResult {
	j.Log.Warnf("fetch job failed: %s", message)
	result.Success = false
	result.Message = message
	result.NewNotices = nil
	result.ReachedStart = false
	return result
}
