package timeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weftfeed/weft/internal/api"
	"github.com/weftfeed/weft/internal/config"
	"github.com/weftfeed/weft/internal/feed"
	"github.com/weftfeed/weft/internal/storage"
)

const testServer = "gs.test"

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestIngestor(t *testing.T, store *storage.Store) *Ingestor {
	t.Helper()
	log := zap.NewNop().Sugar()
	return NewIngestor(store, NewUserResolver(store, log), nil, log)
}

// fakeFetcher serves canned feed documents in call order and records the
// cursor parameters each call asked for.
type fakeFetcher struct {
	pages [][]byte
	calls []api.ListParams
	err   error
}

func (f *fakeFetcher) FetchTimelinePage(_ context.Context, _ storage.TimelineKind, _ string, p api.ListParams) ([]byte, error) {
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.calls) > len(f.pages) {
		return feedXML(), nil
	}
	return f.pages[len(f.calls)-1], nil
}

func newTestManager(t *testing.T, fetcher api.Fetcher, pageSize int) (*Manager, *storage.Store) {
	return newTestManagerPages(t, fetcher, pageSize, 1)
}

func newTestManagerPages(t *testing.T, fetcher api.Fetcher, pageSize, maxPages int) (*Manager, *storage.Store) {
	t.Helper()
	store := newTestStore(t)
	cfg := config.TestConfig()
	cfg.Timeline.PageSize = pageSize
	cfg.Timeline.MaxPages = maxPages
	log := zap.NewNop().Sugar()
	ingestor := NewIngestor(store, NewUserResolver(store, log), nil, log)
	return NewManager(store, fetcher, ingestor, testServer, cfg, log), store
}

func i64(n int64) *int64 { return &n }

func ts(t time.Time) *time.Time { return &t }

var fixtureTime = time.Date(2017, 1, 15, 8, 30, 0, 0, time.UTC)

// postEntry builds a fully valid parsed post entry for ingestion tests.
func postEntry(id int64, content string) *feed.Entry {
	return &feed.Entry{
		ObjectType:         "http://activitystrea.ms/schema/1.0/note",
		ID:                 fmt.Sprintf("tag:%s,2017-01-15:noticeId=%d:objectType=note", testServer, id),
		Content:            content,
		Link:               fmt.Sprintf("https://%s/notice/%d", testServer, id),
		StatusID:           i64(id),
		Verb:               feed.VerbPost,
		Published:          ts(fixtureTime),
		Updated:            ts(fixtureTime),
		Author:             postAuthor(),
		ConversationURL:    fmt.Sprintf("https://%s/conversation/%d", testServer, id),
		ConversationID:     i64(id),
		ConversationThread: fmt.Sprintf("tag:%s,2017-01-15:objectType=thread:nonce=%d", testServer, id),
		Client:             "web",
		IsPost:             true,
	}
}

func postAuthor() *feed.Author {
	return &feed.Author{
		URI:         "https://" + testServer + "/user/1",
		Username:    "tom",
		DisplayName: "Tom Tester",
		UserID:      i64(1),
	}
}

// entryXML renders one post entry the way a StatusNet server would.
func entryXML(id int64, content string) string {
	return fmt.Sprintf(`<entry>
  <activity:object-type>http://activitystrea.ms/schema/1.0/note</activity:object-type>
  <id>tag:%[1]s,2017-01-15:noticeId=%[2]d:objectType=note</id>
  <content type="html">%[3]s</content>
  <link rel="alternate" type="text/html" href="https://%[1]s/notice/%[2]d"/>
  <activity:verb>http://activitystrea.ms/schema/1.0/post</activity:verb>
  <published>2017-01-15T08:30:00+00:00</published>
  <updated>2017-01-15T08:30:00+00:00</updated>
  <author>
   <uri>https://%[1]s/user/1</uri>
   <name>tom</name>
   <statusnet:profile_info local_id="1"></statusnet:profile_info>
  </author>
  <ostatus:conversation href="https://%[1]s/conversation/%[2]d" local_id="%[2]d" ref="tag:%[1]s,2017-01-15:objectType=thread:nonce=%[2]d"/>
  <statusnet:notice_info local_id="%[2]d" source="web"></statusnet:notice_info>
 </entry>`, testServer, id, content)
}

func feedXML(entries ...string) []byte {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:thr="http://purl.org/syndication/thread/1.0"
      xmlns:activity="http://activitystrea.ms/spec/1.0/"
      xmlns:poco="http://portablecontacts.net/spec/1.0"
      xmlns:ostatus="http://ostatus.org/schema/1.0"
      xmlns:statusnet="http://status.net/schema/api/1/">
 <id>https://gs.test/api/statuses/public_timeline.atom</id>
 <title>Public timeline</title>
`
	for _, e := range entries {
		doc += " " + e + "\n"
	}
	return []byte(doc + "</feed>")
}
