package feed

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	xpp "github.com/mmcdole/goxpp"
)

// Namespaces used by the StatusNet Atom/ActivityStreams feed vocabulary.
const (
	atomNS      = "http://www.w3.org/2005/Atom"
	statusNetNS = "http://status.net/schema/api/1/"
	pocoNS      = "http://portablecontacts.net/spec/1.0"
	activityNS  = "http://activitystrea.ms/spec/1.0/"
	ostatusNS   = "http://ostatus.org/schema/1.0"
	threadNS    = "http://purl.org/syndication/thread/1.0"
)

// ParseError reports a malformed feed document. Entries are delivered
// all-or-nothing per document: a ParseError means no entries at all.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing feed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing feed: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseEntries parses one feed document into its entries in document order.
// Repeat activities carry their original entry embedded as a nested object;
// those are parsed recursively and attached to the wrapping entry.
func ParseEntries(data []byte) ([]*Entry, error) {
	p := xpp.NewXMLPullParser(bytes.NewReader(data), false, nil)

	var entries []*Entry
	for {
		tok, err := p.Next()
		if err != nil {
			return nil, &ParseError{Reason: "malformed document", Err: err}
		}
		if tok == xpp.EndDocument {
			break
		}
		if tok == xpp.StartTag && p.Space == atomNS && p.Name == "entry" {
			entry, err := parseEntry(p, "entry")
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// parseEntry consumes one entry-shaped element and everything inside it. The
// parser must be positioned on the element's start tag; on return the end tag
// has been consumed. The same function handles both <atom:entry> and the
// embedded <activity:object> of a repeat.
func parseEntry(p *xpp.XMLPullParser, name string) (*Entry, error) {
	entry := &Entry{}

	for {
		tok, err := p.NextTag()
		if err != nil {
			return nil, &ParseError{Reason: "malformed entry", Err: err}
		}

		if tok == xpp.EndTag {
			// End tags carry no namespace; match by name. Nested same-name
			// elements are consumed by the recursive calls below.
			if p.Name == name {
				classifyVerb(entry)
				return entry, nil
			}
			continue
		}
		if tok != xpp.StartTag {
			continue
		}

		switch {
		case p.Space == activityNS && p.Name == "object-type":
			if entry.ObjectType, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading object-type", Err: err}
			}
		case p.Space == atomNS && p.Name == "id":
			if entry.ID, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading id", Err: err}
			}
		case p.Space == atomNS && p.Name == "title":
			if entry.Title, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading title", Err: err}
			}
		case p.Space == atomNS && p.Name == "content":
			// Assume HTML; display conversion happens elsewhere.
			if entry.Content, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading content", Err: err}
			}
		case p.Space == activityNS && p.Name == "verb":
			if entry.Verb, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading verb", Err: err}
			}
		case p.Space == atomNS && p.Name == "published":
			text, err := p.NextText()
			if err != nil {
				return nil, &ParseError{Reason: "reading published", Err: err}
			}
			entry.Published = parseTimestamp(text)
		case p.Space == atomNS && p.Name == "updated":
			text, err := p.NextText()
			if err != nil {
				return nil, &ParseError{Reason: "reading updated", Err: err}
			}
			entry.Updated = parseTimestamp(text)
		case p.Space == statusNetNS && p.Name == "notice_id":
			text, err := p.NextText()
			if err != nil {
				return nil, &ParseError{Reason: "reading notice_id", Err: err}
			}
			if entry.StatusID == nil {
				entry.StatusID = parseInt64(text)
			}
		case p.Space == atomNS && p.Name == "link":
			rel := p.Attribute("rel")
			switch {
			case rel == "alternate" && p.Attribute("type") == "text/html":
				entry.Link = p.Attribute("href")
			case rel == "enclosure":
				enclosure := Enclosure{
					URL:      p.Attribute("href"),
					MimeType: p.Attribute("type"),
				}
				if length := parseInt64(p.Attribute("length")); length != nil {
					enclosure.Length = *length
				}
				entry.Enclosures = append(entry.Enclosures, enclosure)
			}
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping link", Err: err}
			}
		case p.Space == atomNS && p.Name == "status_net":
			// Some servers put the notice id here instead.
			if entry.StatusID == nil {
				entry.StatusID = parseInt64(p.Attribute("notice_id"))
			}
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping status_net", Err: err}
			}
		case p.Space == statusNetNS && p.Name == "notice_info":
			if entry.StatusID == nil {
				entry.StatusID = parseInt64(p.Attribute("local_id"))
			}
			entry.Client = p.Attribute("source")
			entry.RepeatOfID = parseInt64(p.Attribute("repeat_of"))
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping notice_info", Err: err}
			}
		case p.Space == ostatusNS && p.Name == "conversation":
			entry.ConversationURL = p.Attribute("href")
			entry.ConversationID = parseInt64(p.Attribute("local_id"))
			entry.ConversationThread = p.Attribute("ref")
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping conversation", Err: err}
			}
		case p.Space == threadNS && p.Name == "in-reply-to":
			entry.IsReply = true
			entry.InReplyToTag = p.Attribute("ref")
			entry.InReplyToURL = p.Attribute("href")
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping in-reply-to", Err: err}
			}
		case p.Space == atomNS && p.Name == "category":
			if term := p.Attribute("term"); term != "" {
				entry.Categories = append(entry.Categories, term)
			}
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping category", Err: err}
			}
		case p.Space == atomNS && p.Name == "author":
			author, err := parseAuthor(p)
			if err != nil {
				return nil, err
			}
			entry.Author = author
		case p.Space == activityNS && p.Name == "object":
			object, err := parseEntry(p, "object")
			if err != nil {
				return nil, err
			}
			entry.Object = object
		default:
			// atom:source and anything unrecognized, including whole subtrees.
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping element", Err: err}
			}
		}
	}
}

// parseAuthor consumes an <atom:author> element and its children.
func parseAuthor(p *xpp.XMLPullParser) (*Author, error) {
	author := &Author{}

	for {
		tok, err := p.NextTag()
		if err != nil {
			return nil, &ParseError{Reason: "malformed author", Err: err}
		}

		if tok == xpp.EndTag {
			if p.Name == "author" {
				return author, nil
			}
			continue
		}
		if tok != xpp.StartTag {
			continue
		}

		switch {
		case p.Space == activityNS && p.Name == "object-type":
			if author.ObjectType, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading author object-type", Err: err}
			}
		case p.Space == atomNS && p.Name == "uri":
			if author.URI, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading author uri", Err: err}
			}
		case p.Space == atomNS && p.Name == "name":
			if author.Username, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading author name", Err: err}
			}
		case p.Space == pocoNS && p.Name == "displayName":
			if author.DisplayName, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading author displayName", Err: err}
			}
		case p.Space == atomNS && p.Name == "summary":
			if author.Bio, err = p.NextText(); err != nil {
				return nil, &ParseError{Reason: "reading author summary", Err: err}
			}
		case p.Space == atomNS && p.Name == "link":
			rel := p.Attribute("rel")
			switch {
			case rel == "alternate" && p.Attribute("type") == "text/html":
				author.Page = p.Attribute("href")
			case rel == "avatar":
				avatar := Avatar{
					URL:      p.Attribute("href"),
					MimeType: p.Attribute("type"),
				}
				if w := parseInt64(p.Attribute("width")); w != nil {
					avatar.Width = *w
				}
				if h := parseInt64(p.Attribute("height")); h != nil {
					avatar.Height = *h
				}
				author.Avatars = append(author.Avatars, avatar)
			}
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping author link", Err: err}
			}
		case p.Space == statusNetNS && p.Name == "profile_info":
			author.UserID = parseInt64(p.Attribute("local_id"))
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping profile_info", Err: err}
			}
		default:
			if err := p.Skip(); err != nil {
				return nil, &ParseError{Reason: "skipping author element", Err: err}
			}
		}
	}
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt64(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
