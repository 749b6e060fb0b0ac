package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-engine/internal/entity"
	"github.com/joseph-ayodele/content-engine/internal/llm"
)

// SearchOracle finds supporting sources for a query.
type SearchOracle interface {
	Search(ctx context.Context, query string, depth int) Result[[]entity.SearchResult]
}

// HTTPSearch posts {query, max_results} to a JSON search endpoint and reads back
// {results:[{url, title, snippet|content}]}.
type HTTPSearch struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	APIKey     string `json:"api_key,omitempty"`
}

type searchResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Content string `json:"content"`
	} `json:"results"`
}

func NewHTTPSearch(endpoint, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPSearch {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPSearch{endpoint: endpoint, apiKey: apiKey, http: &http.Client{Timeout: timeout}, logger: logger}
}

func (s *HTTPSearch) Search(ctx context.Context, query string, depth int) Result[[]entity.SearchResult] {
	if strings.TrimSpace(query) == "" {
		return Degraded[[]entity.SearchResult]("web search", errors.New("empty query"))
	}
	if depth <= 0 {
		depth = 5
	}
	headers := map[string]string{}
	if s.apiKey != "" {
		headers["Authorization"] = "Bearer " + s.apiKey
	}
	raw, _, err := llm.SendJSON(ctx, s.http, s.endpoint, searchRequest{Query: query, MaxResults: depth, APIKey: s.apiKey}, headers, s.logger)
	if err != nil {
		return Degraded[[]entity.SearchResult]("web search", err)
	}
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Degraded[[]entity.SearchResult]("web search", fmt.Errorf("decode response: %w", err))
	}
	out := make([]entity.SearchResult, 0, min(len(resp.Results), depth))
	seen := map[string]struct{}{}
	for _, r := range resp.Results {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, entity.SearchResult{URL: url, Title: strings.TrimSpace(r.Title), Snippet: truncate(snippet, 500)})
		if len(out) == depth {
			break
		}
	}
	return OK(out)
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit])
	}
	return s
}
