package storage

import (
	"fmt"
	"time"
)

// TimelineKind identifies which server timeline a Timeline record mirrors.
type TimelineKind int32

const (
	TimelineHome         TimelineKind = 1
	TimelineUser         TimelineKind = 2
	TimelinePublic       TimelineKind = 3
	TimelineKnownNetwork TimelineKind = 4
	TimelineMentions     TimelineKind = 5
	TimelineFavourites   TimelineKind = 6
	TimelineSearch       TimelineKind = 7
	TimelineTag          TimelineKind = 8
	TimelineGroup        TimelineKind = 9
)

// Notice is the persisted, deduplicated representation of one federated post.
// Identity is (Server, StatusID); a notice is written once and never mutated.
type Notice struct {
	Server    string    `json:"server"`
	StatusID  int64     `json:"status_id"`
	Tag       string    `json:"tag"`
	Content   string    `json:"content"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
	Updated   time.Time `json:"updated"`

	// Author reference, key into the users bucket.
	AuthorURI string `json:"author_uri"`

	ConversationURL    string `json:"conversation_url"`
	ConversationID     int64  `json:"conversation_id"`
	ConversationThread string `json:"conversation_thread"`
	Client             string `json:"client"`

	IsOwnPost   bool `json:"is_own_post"`
	IsReply     bool `json:"is_reply"`
	IsFavourite bool `json:"is_favourite"`
	IsRepeat    bool `json:"is_repeat"`
	IsDelete    bool `json:"is_delete"`

	InReplyToTag string `json:"in_reply_to_tag,omitempty"`
	InReplyToURL string `json:"in_reply_to_url,omitempty"`

	FavouritedStatusID int64  `json:"favourited_status_id,omitempty"`
	FavouritedLink     string `json:"favourited_link,omitempty"`

	// Key reference to the original notice when IsRepeat is set. Stored as a
	// (server, id) pair rather than an embedded record so chains stay acyclic.
	RepeatedServer   string `json:"repeated_server,omitempty"`
	RepeatedStatusID int64  `json:"repeated_status_id,omitempty"`

	// Counts are not delivered by the feed; -1 means unknown.
	FaveCount   int64 `json:"fave_count"`
	RepeatCount int64 `json:"repeat_count"`
}

// User is a federated account sighted as a notice author, keyed by
// (Server, ProfileURI). Created once; re-sightings reuse the stored record.
type User struct {
	Server     string   `json:"server"`
	ProfileURI string   `json:"profile_uri"`
	UserID     int64    `json:"user_id"`
	Name       string   `json:"name"`
	ScreenName string   `json:"screen_name"`
	Bio        string   `json:"bio"`
	Avatars    []Avatar `json:"avatars"`
}

type Avatar struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Width    int64  `json:"width"`
	Height   int64  `json:"height"`
}

// Timeline is one named, scoped view over notices. Param disambiguates
// per-user and per-search timelines and is empty otherwise.
type Timeline struct {
	Kind  TimelineKind `json:"kind"`
	Param string       `json:"param"`

	// AtBeginning means the server confirmed there is nothing older than the
	// chain's earliest link. Monotonic: once true it never reverts.
	AtBeginning bool `json:"at_beginning"`
}

// Key returns the storage key identifying this timeline.
func (t *Timeline) Key() string {
	return timelineKey(t.Kind, t.Param)
}

func timelineKey(kind TimelineKind, param string) string {
	return fmt.Sprintf("%d|%s", kind, param)
}

// ChainEntry links one notice into one timeline's backward chain. Entries for
// a timeline form a singly linked chain of strictly decreasing notice ids.
// HasPrev false is a terminal condition only when the owning timeline is
// AtBeginning; otherwise it marks a gap that needs a network fetch.
type ChainEntry struct {
	NoticeID int64  `json:"notice_id"`
	Server   string `json:"server"`
	HasPrev  bool   `json:"has_prev"`
	PrevID   int64  `json:"prev_id,omitempty"`
}
