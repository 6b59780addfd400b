package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/weftfeed/weft/internal/storage"
)

// Result is one full-text hit over the stored notices.
type Result struct {
	Server   string
	StatusID int64
	Score    float64
	Content  string
}

// Engine maintains a bleve index over ingested notices.
type Engine struct {
	idx bleve.Index
}

// NewEngine opens the index at indexPath, creating it on first use.
func NewEngine(indexPath string) (*Engine, error) {
	if mkErr := os.MkdirAll(filepath.Dir(indexPath), 0o755); mkErr != nil {
		// Open/Create below will surface the real problem
		_ = mkErr
	}

	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating search index: %w", err)
		}
	}
	return &Engine{idx: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = true
	content.IncludeTermVectors = true

	tag := bleve.NewTextFieldMapping()
	tag.Analyzer = standard.Name
	tag.Store = true

	server := bleve.NewTextFieldMapping()
	server.Analyzer = standard.Name
	server.Store = true

	dm.AddFieldMappingsAt("content", content)
	dm.AddFieldMappingsAt("tag", tag)
	dm.AddFieldMappingsAt("server", server)

	im.DefaultMapping = dm
	return im
}

func docID(server string, statusID int64) string {
	return fmt.Sprintf("%s|%d", server, statusID)
}

// IndexNotices adds notices to the index in one batch. Favourite and delete
// markers carry no displayable content and are skipped.
func (e *Engine) IndexNotices(notices []*storage.Notice) error {
	batch := e.idx.NewBatch()
	for _, n := range notices {
		if n.IsFavourite || n.IsDelete {
			continue
		}
		if err := batch.Index(docID(n.Server, n.StatusID), map[string]any{
			"content": n.Content,
			"tag":     n.Tag,
			"server":  n.Server,
			"client":  n.Client,
		}); err != nil {
			return err
		}
	}
	return e.idx.Batch(batch)
}

// Search runs a free-text query and returns up to limit hits, best first.
func (e *Engine) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 25
	}
	q := bleve.NewMatchQuery(query)
	q.SetField("content")

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"content", "server"}

	res, err := e.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		server, id, ok := splitDocID(hit.ID)
		if !ok {
			continue
		}
		r := Result{Server: server, StatusID: id, Score: hit.Score}
		if c, ok := hit.Fields["content"].(string); ok {
			r.Content = c
		}
		results = append(results, r)
	}
	return results, nil
}

func splitDocID(id string) (string, int64, bool) {
	i := strings.LastIndex(id, "|")
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return id[:i], n, true
}

func (e *Engine) Close() error {
	return e.idx.Close()
}
