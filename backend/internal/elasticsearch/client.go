// Package elasticsearch stores bookmarked travel articles. It is the saved
// article fallback of the travel repository.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/travel-guide/backend/internal/models"
	"github.com/DeafMist/travel-guide/backend/internal/processing"
	"github.com/DeafMist/travel-guide/backend/internal/travel"
)

// maxSavedVersions bounds the language versions fetched for one article.
const maxSavedVersions = 200

// Client wraps go-elasticsearch with helpers for saved articles.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
	now   func() time.Time
}

// SearchParams narrow the saved article listing.
type SearchParams struct {
	Query string
	Lang  string
	From  int
	Size  int
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64
	Items []models.SavedArticle
}

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger, now: time.Now}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// EnsureIndex creates the saved article index with keyword identity fields
// when it does not exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":       map[string]any{"type": "keyword"},
				"kind":     map[string]any{"type": "keyword"},
				"file":     map[string]any{"type": "keyword"},
				"route_id": map[string]any{"type": "keyword"},
				"lang":     map[string]any{"type": "keyword"},
				"title":    map[string]any{"type": "text"},
				"content":  map[string]any{"type": "text"},
				"saved_at": map[string]any{"type": "date"},
				"geometry": map[string]any{"type": "object", "enabled": false},
			},
		},
	}
	payload, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}
	c.log.Info("created saved article index", "index", c.index)
	return nil
}

// DocumentID derives the saved document id of one language version.
func DocumentID(file, routeID, lang string) string {
	return processing.BuildDocumentID(file, routeID, lang)
}

// SaveArticle bookmarks a, including any geometry already attached.
func (c *Client) SaveArticle(ctx context.Context, a *travel.Article) error {
	doc := ToDocument(a, c.now())
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// SavedArticle loads one saved language version. A missing document yields nil.
func (c *Client) SavedArticle(ctx context.Context, file, routeID, lang string) (*travel.Article, error) {
	res, err := c.es.Get(c.index, DocumentID(file, routeID, lang), c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("get doc failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Found  bool                `json:"found"`
		Source models.SavedArticle `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode get response: %w", err)
	}
	if !parsed.Found {
		return nil, nil
	}
	return FromDocument(parsed.Source), nil
}

// SavedArticles loads every saved language version of an article.
func (c *Client) SavedArticles(ctx context.Context, file, routeID string) ([]*travel.Article, error) {
	body := map[string]any{
		"size": maxSavedVersions,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"term": map[string]any{"file": file}},
					{"term": map[string]any{"route_id": routeID}},
				},
			},
		},
		"sort": []map[string]any{
			{"lang": map[string]any{"order": "asc"}},
		},
	}

	docs, _, err := c.search(ctx, body)
	if err != nil {
		return nil, err
	}
	out := make([]*travel.Article, 0, len(docs))
	for _, doc := range docs {
		out = append(out, FromDocument(doc))
	}
	return out, nil
}

// SearchSaved lists saved articles, newest first.
func (c *Client) SearchSaved(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 200 {
		params.Size = 200
	}
	if params.From < 0 {
		params.From = 0
	}

	must := make([]map[string]any, 0, 1)
	filters := make([]map[string]any, 0, 1)
	if params.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  params.Query,
				"fields": []string{"title^2", "content"},
			},
		})
	}
	if params.Lang != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"lang": params.Lang},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(must) == 0 && len(filters) == 0 {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	body := map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query":            map[string]any{"bool": boolQuery},
		"sort": []map[string]any{
			{"saved_at": map[string]any{"order": "desc"}},
		},
	}

	docs, total, err := c.search(ctx, body)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Total: total, Items: docs}, nil
}

func (c *Client) search(ctx context.Context, body map[string]any) ([]models.SavedArticle, int64, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, 0, nil
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, 0, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.SavedArticle `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.SavedArticle, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}
	return items, parsed.Hits.Total.Value, nil
}

// DeleteArticle removes one saved language version. Deleting a missing
// document is not an error.
func (c *Client) DeleteArticle(ctx context.Context, file, routeID, lang string) error {
	res, err := c.es.Delete(c.index, DocumentID(file, routeID, lang),
		c.es.Delete.WithContext(ctx),
		c.es.Delete.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("delete doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("delete doc failed: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// Health pings Elasticsearch to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
