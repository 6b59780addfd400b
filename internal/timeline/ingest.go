package timeline

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/weftfeed/weft/internal/feed"
	"github.com/weftfeed/weft/internal/storage"
)

// NoticeIndexer receives newly persisted notices for full-text indexing.
type NoticeIndexer interface {
	IndexNotices(notices []*storage.Notice) error
}

// Ingestor turns parsed feed entries into persisted notices. Each notice is
// created exactly once per (server, status id); re-sightings resolve to the
// stored record.
type Ingestor struct {
	store *storage.Store
	users *UserResolver
	index NoticeIndexer
	log   *zap.SugaredLogger
}

// NewIngestor creates an ingestor. index may be nil when search is disabled.
func NewIngestor(store *storage.Store, users *UserResolver, index NoticeIndexer, log *zap.SugaredLogger) *Ingestor {
	return &Ingestor{store: store, users: users, index: index, log: log}
}

// Ingest processes entries in input order and returns one notice per entry
// that materialized. Already-known notices are returned too, so the result
// can be longer than the number of newly created rows. Entries that fail
// validation are skipped without side effects. idOverride substitutes the
// notice identity and is used when recursively ingesting the embedded object
// of a repeat, whose own id lives on the wrapping entry.
func (ing *Ingestor) Ingest(server string, entries []*feed.Entry, idOverride *int64) ([]*storage.Notice, error) {
	var ret []*storage.Notice
	var created []*storage.Notice

	for _, entry := range entries {
		statusID := entry.StatusID
		if idOverride != nil {
			statusID = idOverride
		}
		if statusID == nil {
			continue
		}

		existing, err := ing.store.GetNotice(server, *statusID)
		if err == nil {
			// Repeated notices already processed in the same batch come back
			// inline so they keep their position in the result.
			ret = append(ret, existing)
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return ret, fmt.Errorf("looking up notice %d: %w", *statusID, err)
		}

		// A notice is all-or-nothing: every base field must be present before
		// anything is persisted.
		if entry.ID == "" || entry.Content == "" || entry.Link == "" ||
			entry.Published == nil || entry.Updated == nil ||
			entry.ConversationURL == "" || entry.ConversationID == nil || entry.ConversationThread == "" {
			ing.log.Debugf("skipping entry %q: missing base fields", entry.ID)
			continue
		}

		user, err := ing.users.Resolve(server, entry.Author)
		if err != nil {
			return ret, fmt.Errorf("resolving author: %w", err)
		}
		if user == nil {
			ing.log.Debugf("skipping entry %q: unusable author", entry.ID)
			continue
		}

		// Verb-specific requirements, checked before any write.
		if entry.IsReply && (entry.InReplyToTag == "" || entry.InReplyToURL == "") {
			continue
		}
		if entry.IsFavourite && (entry.Object == nil || entry.Object.StatusID == nil || entry.Object.Link == "") {
			continue
		}
		var repeated *storage.Notice
		if entry.IsRepeat {
			if entry.Object != nil && entry.RepeatOfID != nil {
				inner, err := ing.Ingest(server, []*feed.Entry{entry.Object}, entry.RepeatOfID)
				if err != nil {
					return ret, err
				}
				if len(inner) > 0 {
					repeated = inner[0]
				}
			}
			// The original may land in the store while the wrapper is still
			// rejected; that is fine.
			if repeated == nil {
				continue
			}
		}

		notice := &storage.Notice{
			Server:             server,
			StatusID:           *statusID,
			Tag:                entry.ID,
			Content:            entry.Content,
			Link:               entry.Link,
			Published:          *entry.Published,
			Updated:            *entry.Updated,
			AuthorURI:          user.ProfileURI,
			ConversationURL:    entry.ConversationURL,
			ConversationID:     *entry.ConversationID,
			ConversationThread: entry.ConversationThread,
			Client:             entry.Client,
			IsOwnPost:          entry.IsPost || entry.IsComment,
			IsReply:            entry.IsReply,
			IsFavourite:        entry.IsFavourite,
			IsRepeat:           entry.IsRepeat,
			IsDelete:           entry.IsDelete,
			FaveCount:          -1,
			RepeatCount:        -1,
		}

		if entry.IsReply {
			notice.InReplyToTag = entry.InReplyToTag
			notice.InReplyToURL = entry.InReplyToURL
		}
		if entry.IsFavourite {
			notice.FavouritedStatusID = *entry.Object.StatusID
			notice.FavouritedLink = entry.Object.Link
		}
		if entry.IsRepeat {
			notice.RepeatedServer = repeated.Server
			notice.RepeatedStatusID = repeated.StatusID
		}

		// Commit immediately so later entries in this batch can rely on
		// earlier ones being visible.
		if err := ing.store.SaveNotice(notice); err != nil {
			return ret, fmt.Errorf("saving notice %d: %w", notice.StatusID, err)
		}
		ing.log.Debugf("created notice %d on %s", notice.StatusID, server)
		ret = append(ret, notice)
		created = append(created, notice)
	}

	if ing.index != nil && len(created) > 0 {
		if err := ing.index.IndexNotices(created); err != nil {
			ing.log.Warnf("indexing notices: %v", err)
		}
	}
	return ret, nil
}
