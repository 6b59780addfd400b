package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	noticesBucket   = []byte("notices")
	usersBucket     = []byte("users")
	timelinesBucket = []byte("timelines")
	chainsBucket    = []byte("chains")
)

// ErrNotFound is returned by lookups that matched no record.
var ErrNotFound = errors.New("record not found")

type Store struct {
	db *bolt.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{noticesBucket, usersBucket, timelinesBucket, chainsBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// noticeKey orders notices within their bucket by id. Zero-padding keeps the
// lexicographic bucket order identical to numeric id order.
func noticeKey(server string, id int64) []byte {
	return []byte(fmt.Sprintf("%s|%020d", server, id))
}

func chainKey(id int64) []byte {
	return []byte(fmt.Sprintf("%020d", id))
}

func (s *Store) SaveNotice(notice *Notice) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(noticesBucket)
		data, err := json.Marshal(notice)
		if err != nil {
			return err
		}
		return b.Put(noticeKey(notice.Server, notice.StatusID), data)
	})
}

func (s *Store) GetNotice(server string, id int64) (*Notice, error) {
	var notice Notice
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(noticesBucket)
		data := b.Get(noticeKey(server, id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &notice)
	})
	if err != nil {
		return nil, err
	}
	return &notice, nil
}

func (s *Store) SaveUser(user *User) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return b.Put([]byte(user.Server+"|"+user.ProfileURI), data)
	})
}

func (s *Store) GetUser(server, profileURI string) (*User, error) {
	var user User
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		data := b.Get([]byte(server + "|" + profileURI))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) SaveTimeline(timeline *Timeline) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(timelinesBucket)
		data, err := json.Marshal(timeline)
		if err != nil {
			return err
		}
		return b.Put([]byte(timeline.Key()), data)
	})
}

func (s *Store) GetTimeline(kind TimelineKind, param string) (*Timeline, error) {
	var timeline Timeline
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(timelinesBucket)
		data := b.Get([]byte(timelineKey(kind, param)))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &timeline)
	})
	if err != nil {
		return nil, err
	}
	return &timeline, nil
}

// PutChainEntries writes a set of chain links for one timeline in a single
// transaction. The merge step relies on this being all-or-nothing.
func (s *Store) PutChainEntries(timeline *Timeline, entries []*ChainEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(chainsBucket)
		b, err := root.CreateBucketIfNotExists([]byte(timeline.Key()))
		if err != nil {
			return err
		}
		for _, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := b.Put(chainKey(entry.NoticeID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetChainEntry returns the link for one notice id in a timeline's chain.
func (s *Store) GetChainEntry(timeline *Timeline, noticeID int64) (*ChainEntry, error) {
	var entry ChainEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(chainsBucket).Bucket([]byte(timeline.Key()))
		if b == nil {
			return ErrNotFound
		}
		data := b.Get(chainKey(noticeID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ChainEntries returns all links of a timeline's chain, newest first.
func (s *Store) ChainEntries(timeline *Timeline) ([]*ChainEntry, error) {
	var entries []*ChainEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(chainsBucket).Bucket([]byte(timeline.Key()))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var entry ChainEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ChainEntriesBelow returns links with notice id strictly below max, newest
// first. Used by the load-more local walk.
func (s *Store) ChainEntriesBelow(timeline *Timeline, max int64, limit int) ([]*ChainEntry, error) {
	var entries []*ChainEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(chainsBucket).Bucket([]byte(timeline.Key()))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		k, v := c.Seek(chainKey(max))
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		for ; k != nil; k, v = c.Prev() {
			var entry ChainEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.NoticeID >= max {
				continue
			}
			entries = append(entries, &entry)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
