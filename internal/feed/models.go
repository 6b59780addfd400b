package feed

import (
	"time"
)

// Entry is one parsed unit of an activity feed: a post, comment, favourite,
// repeat or delete signal. Entries are transient parser output; the ingestor
// decides what becomes a persisted notice.
type Entry struct {
	ObjectType string
	ID         string
	Title      string
	Content    string
	Link       string
	StatusID   *int64
	Verb       string
	Published  *time.Time
	Updated    *time.Time
	Author     *Author

	ConversationURL    string
	ConversationID     *int64
	ConversationThread string

	Categories []string
	Enclosures []Enclosure
	Client     string

	// Derived from Verb against the known verb table. An unrecognized verb
	// leaves all five false; downstream ingestion tolerates that.
	IsPost      bool
	IsComment   bool
	IsFavourite bool
	IsRepeat    bool
	IsDelete    bool

	IsReply      bool
	InReplyToTag string
	InReplyToURL string

	// Repeats carry the original entry embedded one level deeper.
	RepeatOfID *int64
	Object     *Entry
}

// Author is the parsed author block of an entry.
type Author struct {
	ObjectType  string
	URI         string
	Username    string
	DisplayName string
	Bio         string
	Page        string
	UserID      *int64
	Avatars     []Avatar
}

type Avatar struct {
	URL      string
	MimeType string
	Width    int64
	Height   int64
}

type Enclosure struct {
	URL      string
	MimeType string
	Length   int64
}
