package timeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/weftfeed/weft/internal/api"
	"github.com/weftfeed/weft/internal/config"
	"github.com/weftfeed/weft/internal/storage"
)

// Manager owns the persisted timelines and their chains. It serves pages
// from local storage when the chain can satisfy them and falls back to
// paginated network fetches otherwise, splicing results into the chain.
type Manager struct {
	store    *storage.Store
	fetcher  api.Fetcher
	ingestor *Ingestor
	server   string
	cfg      *config.Config
	log      *zap.SugaredLogger

	// Guards the read-check-create sequence for timeline identities.
	acquisitionMu sync.Mutex

	// One lock per timeline key serializes merges so two concurrent fetches
	// cannot splice against the same boundary.
	mergeLocksMu sync.Mutex
	mergeLocks   map[string]*sync.Mutex
}

func NewManager(store *storage.Store, fetcher api.Fetcher, ingestor *Ingestor, server string, cfg *config.Config, log *zap.SugaredLogger) *Manager {
	return &Manager{
		store:      store,
		fetcher:    fetcher,
		ingestor:   ingestor,
		server:     server,
		cfg:        cfg,
		log:        log,
		mergeLocks: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) pageSize() int {
	if m.cfg.Timeline.PageSize > 0 {
		return m.cfg.Timeline.PageSize
	}
	return 50
}

func (m *Manager) maxPages() int {
	if m.cfg.Timeline.MaxPages > 0 {
		return m.cfg.Timeline.MaxPages
	}
	return 1
}

// GetOrCreateTimeline resolves the timeline record for a (kind, param)
// identity, creating it on first access. Safe for concurrent callers: at
// most one record ever exists per identity.
func (m *Manager) GetOrCreateTimeline(kind storage.TimelineKind, param string) (*storage.Timeline, error) {
	m.acquisitionMu.Lock()
	defer m.acquisitionMu.Unlock()

	timeline, err := m.store.GetTimeline(kind, param)
	if err == nil {
		return timeline, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	timeline = &storage.Timeline{Kind: kind, Param: param}
	if err := m.store.SaveTimeline(timeline); err != nil {
		return nil, fmt.Errorf("creating timeline: %w", err)
	}
	return timeline, nil
}

func (m *Manager) PublicTimeline() (*storage.Timeline, error) {
	return m.GetOrCreateTimeline(storage.TimelinePublic, "")
}

func (m *Manager) HomeTimeline() (*storage.Timeline, error) {
	return m.GetOrCreateTimeline(storage.TimelineHome, "")
}

func (m *Manager) UserTimeline(screenName string) (*storage.Timeline, error) {
	return m.GetOrCreateTimeline(storage.TimelineUser, screenName)
}

func (m *Manager) SearchTimeline(query string) (*storage.Timeline, error) {
	return m.GetOrCreateTimeline(storage.TimelineSearch, query)
}

// NoticesFor walks the stored chain from its head for up to one page.
// Favourite and delete notices are omitted from the returned list but still
// count toward the walk. LoadMorePossible is false only when the walk hit a
// terminus the server has confirmed as the start of history.
func (m *Manager) NoticesFor(timeline *storage.Timeline) (*LoadMoreResult, error) {
	res := &LoadMoreResult{LoadMorePossible: true}

	entries, err := m.store.ChainEntries(timeline)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return res, nil
	}

	byID := make(map[int64]*storage.ChainEntry, len(entries))
	for _, e := range entries {
		byID[e.NoticeID] = e
	}

	count := 0
	for cur := entries[0]; cur != nil; {
		count++
		res.OldestWalked = cur
		notice, err := m.store.GetNotice(cur.Server, cur.NoticeID)
		if err != nil {
			return nil, fmt.Errorf("resolving chained notice %d: %w", cur.NoticeID, err)
		}
		if !notice.IsFavourite && !notice.IsDelete {
			res.Notices = append(res.Notices, &TimelineNotice{Link: cur, Notice: notice})
		}

		if !cur.HasPrev {
			if timeline.AtBeginning {
				res.LoadMorePossible = false
			}
			break
		}
		if count >= m.pageSize() {
			break
		}
		cur = byID[cur.PrevID]
	}
	return res, nil
}

// LoadMore pages backward from maxNotice. The chain serves the page locally
// when maxNotice already has a resolved predecessor; otherwise a load-more
// fetch closes the gap. A fetch that reaches the start of history marks the
// timeline AtBeginning permanently.
func (m *Manager) LoadMore(ctx context.Context, timeline *storage.Timeline, maxNotice *storage.ChainEntry) (*LoadMoreResult, error) {
	if maxNotice != nil && maxNotice.HasPrev {
		res, ok, err := m.localPageBelow(timeline, maxNotice)
		if err != nil {
			return nil, err
		}
		if ok {
			return res, nil
		}
	}

	job := &FetchJob{
		Fetcher:  m.fetcher,
		Ingestor: m.ingestor,
		Server:   m.server,
		Kind:     timeline.Kind,
		Param:    timeline.Param,
		Mode:     ModeLoadMore,
		PerPage:  m.pageSize(),
		MaxPages: m.maxPages(),
		Limit:    maxNotice,
		Log:      m.log,
	}
	result := job.Run(ctx)
	if !result.Success {
		return nil, errors.New(result.Message)
	}

	links, err := m.mergeFetchResult(result, timeline)
	if err != nil {
		return nil, err
	}

	if result.ReachedStart && !timeline.AtBeginning {
		timeline.AtBeginning = true
		if err := m.store.SaveTimeline(timeline); err != nil {
			return nil, fmt.Errorf("marking timeline at beginning: %w", err)
		}
	}

	notices, err := m.resolveLinks(links)
	if err != nil {
		return nil, err
	}
	res := &LoadMoreResult{Notices: notices, LoadMorePossible: !result.ReachedStart}
	if len(links) > 0 {
		res.OldestWalked = links[0]
	}
	return res, nil
}

// localPageBelow follows the chain from maxNotice's predecessor. ok is false
// when the pointer chain cannot be resolved locally and the caller should go
// to the network instead.
func (m *Manager) localPageBelow(timeline *storage.Timeline, maxNotice *storage.ChainEntry) (*LoadMoreResult, bool, error) {
	res := &LoadMoreResult{LoadMorePossible: true}

	cur, err := m.store.GetChainEntry(timeline, maxNotice.PrevID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	count := 0
	for cur != nil {
		count++
		res.OldestWalked = cur
		notice, err := m.store.GetNotice(cur.Server, cur.NoticeID)
		if err != nil {
			return nil, false, fmt.Errorf("resolving chained notice %d: %w", cur.NoticeID, err)
		}
		if !notice.IsFavourite && !notice.IsDelete {
			res.Notices = append(res.Notices, &TimelineNotice{Link: cur, Notice: notice})
		}

		if !cur.HasPrev {
			if timeline.AtBeginning {
				res.LoadMorePossible = false
			}
			break
		}
		if count >= m.pageSize() {
			break
		}
		next, err := m.store.GetChainEntry(timeline, cur.PrevID)
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, false, err
		}
		cur = next
	}
	return res, true, nil
}

// Refresh fetches notices newer than lastNotice. There is no local path:
// newer content has by definition not been fetched yet.
func (m *Manager) Refresh(ctx context.Context, timeline *storage.Timeline, lastNotice *storage.ChainEntry) (*RefreshResult, error) {
	job := &FetchJob{
		Fetcher:  m.fetcher,
		Ingestor: m.ingestor,
		Server:   m.server,
		Kind:     timeline.Kind,
		Param:    timeline.Param,
		Mode:     ModeRefresh,
		PerPage:  m.pageSize(),
		MaxPages: 1,
		Limit:    lastNotice,
		Log:      m.log,
	}
	result := job.Run(ctx)
	if !result.Success {
		return nil, errors.New(result.Message)
	}

	links, err := m.mergeFetchResult(result, timeline)
	if err != nil {
		return nil, err
	}
	notices, err := m.resolveLinks(links)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{Notices: notices, ClearListFirst: !result.ReachedStart}, nil
}

// mergeFetchResult splices a fetch job's notices into the timeline's chain
// and returns the new links in ascending id order. Serialized per timeline.
func (m *Manager) mergeFetchResult(result *FetchResult, timeline *storage.Timeline) ([]*storage.ChainEntry, error) {
	mu := m.mergeLockFor(timeline.Key())
	mu.Lock()
	defer mu.Unlock()

	m.log.Infof("merge success=%v new=%d reachedStart=%v timeline=%s",
		result.Success, len(result.NewNotices), result.ReachedStart, timeline.Key())

	// The job returns already-known notices too; only notices without an
	// existing link get spliced in.
	var fresh []*storage.Notice
	for _, n := range result.NewNotices {
		_, err := m.store.GetChainEntry(timeline, n.StatusID)
		if errors.Is(err, storage.ErrNotFound) {
			fresh = append(fresh, n)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].StatusID < fresh[j].StatusID })

	// A multi-page job can report the same notice twice (the ingestor hands
	// back the existing record inline); a duplicate here would link an id to
	// itself.
	uniq := fresh[:1]
	for _, n := range fresh[1:] {
		if n.StatusID != uniq[len(uniq)-1].StatusID {
			uniq = append(uniq, n)
		}
	}
	fresh = uniq

	limit := result.Limit
	entries := make([]*storage.ChainEntry, 0, len(fresh))
	for i, n := range fresh {
		entry := &storage.ChainEntry{NoticeID: n.StatusID, Server: n.Server}
		switch {
		case i > 0:
			entry.HasPrev = true
			entry.PrevID = fresh[i-1].StatusID
		case result.Mode == ModeRefresh && limit != nil && n.StatusID > limit.NoticeID:
			// Stitch the oldest new link down onto the pre-existing chain.
			entry.HasPrev = true
			entry.PrevID = limit.NoticeID
		}
		entries = append(entries, entry)
	}

	batch := entries
	if result.Mode == ModeLoadMore && limit != nil {
		// Stitch the old chain's tail onto the newest of the older notices.
		newest := fresh[len(fresh)-1]
		if newest.StatusID < limit.NoticeID {
			batch = append(batch, &storage.ChainEntry{
				NoticeID: limit.NoticeID,
				Server:   limit.Server,
				HasPrev:  true,
				PrevID:   newest.StatusID,
			})
		}
	}

	if err := m.store.PutChainEntries(timeline, batch); err != nil {
		return nil, fmt.Errorf("persisting chain links: %w", err)
	}
	return entries, nil
}

// resolveLinks pairs links with their notices, reversed to newest first.
func (m *Manager) resolveLinks(links []*storage.ChainEntry) ([]*TimelineNotice, error) {
	notices := make([]*TimelineNotice, 0, len(links))
	for i := len(links) - 1; i >= 0; i-- {
		notice, err := m.store.GetNotice(links[i].Server, links[i].NoticeID)
		if err != nil {
			return nil, fmt.Errorf("resolving notice %d: %w", links[i].NoticeID, err)
		}
		notices = append(notices, &TimelineNotice{Link: links[i], Notice: notice})
	}
	return notices, nil
}

func (m *Manager) mergeLockFor(key string) *sync.Mutex {
	m.mergeLocksMu.Lock()
	defer m.mergeLocksMu.Unlock()
	mu, ok := m.mergeLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		m.mergeLocks[key] = mu
	}
	return mu
}
