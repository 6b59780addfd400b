package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/weftfeed/weft/internal/config"
	"github.com/weftfeed/weft/internal/storage"
)

// ListParams are the cursor parameters of a timeline page request. Zero
// values are omitted from the query string.
type ListParams struct {
	Page    int
	Count   int
	SinceID int64
	MaxID   int64
}

// QueryString renders the parameters in a stable order.
func (p ListParams) QueryString() string {
	var parts []string
	if p.Page > 0 {
		parts = append(parts, "page="+strconv.Itoa(p.Page))
	}
	if p.Count > 0 {
		parts = append(parts, "count="+strconv.Itoa(p.Count))
	}
	if p.SinceID > 0 {
		parts = append(parts, "since_id="+strconv.FormatInt(p.SinceID, 10))
	}
	if p.MaxID > 0 {
		parts = append(parts, "max_id="+strconv.FormatInt(p.MaxID, 10))
	}
	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}

// Fetcher is the one network primitive the sync engine consumes: fetch one
// page of one timeline endpoint and return the raw feed document.
type Fetcher interface {
	FetchTimelinePage(ctx context.Context, kind storage.TimelineKind, param string, p ListParams) ([]byte, error)
}

// Client fetches Atom timeline documents from one StatusNet-compatible server.
type Client struct {
	baseURL   string
	userAgent string
	username  string
	password  string
	client    *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:   cfg.Server.BaseURL,
		userAgent: cfg.Server.UserAgent,
		username:  cfg.Server.Username,
		password:  cfg.Server.Password,
		client: &http.Client{
			Timeout: cfg.Server.HTTPTimeout,
		},
	}
}

// Server returns the host identifying this client's server in stored records.
func (c *Client) Server() string {
	if u, err := url.Parse(c.baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return c.baseURL
}

func endpointPath(kind storage.TimelineKind, param string) (string, error) {
	switch kind {
	case storage.TimelinePublic:
		return "statuses/public_timeline.atom", nil
	case storage.TimelineHome:
		return "statuses/home_timeline.atom", nil
	case storage.TimelineUser:
		return "statuses/user_timeline.atom?screen_name=" + url.QueryEscape(param), nil
	case storage.TimelineMentions:
		return "statuses/mentions.atom", nil
	case storage.TimelineSearch:
		return "search.atom?q=" + url.QueryEscape(param), nil
	default:
		return "", fmt.Errorf("no endpoint for timeline kind %d", kind)
	}
}

func (c *Client) FetchTimelinePage(ctx context.Context, kind storage.TimelineKind, param string, p ListParams) ([]byte, error) {
	path, err := endpointPath(kind, param)
	if err != nil {
		return nil, err
	}

	query := p.QueryString()
	if strings.Contains(path, "?") && query != "" {
		query = "&" + query[1:]
	}
	requestURL := c.baseURL + "api/" + path + query

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/xml, text/xml")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: HTTP error: %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
