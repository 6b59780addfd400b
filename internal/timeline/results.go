package timeline

import (
	"github.com/weftfeed/weft/internal/storage"
)

// TimelineNotice pairs a chain link with its resolved notice.
type TimelineNotice struct {
	Link   *storage.ChainEntry
	Notice *storage.Notice
}

// RefreshResult is handed back from a refresh, notices newest first.
// ClearListFirst is set when the fetched window may not connect to what the
// caller is currently showing.
type RefreshResult struct {
	Notices        []*TimelineNotice
	ClearListFirst bool
}

// LoadMoreResult is handed back from a local page read or a load-more fetch,
// notices newest first. LoadMorePossible false means the confirmed start of
// history has been reached.
type LoadMoreResult struct {
	Notices          []*TimelineNotice
	LoadMorePossible bool

	// OldestWalked is the last chain link the walk visited, including links
	// whose notices are hidden from Notices. Paging further back must bound
	// on this link, not on the oldest displayed notice.
	OldestWalked *storage.ChainEntry
}
