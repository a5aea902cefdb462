package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/personachat/internal/plugin"
)

const maxSearchResults = 5

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type SearchResponse struct {
	Answer  string         `json:"answer"`
	Results []SearchResult `json:"results"`
}

type Searcher interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

// TavilyClient is a minimal client for the Tavily search API.
type TavilyClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewTavilyClient(baseURL, apiKey string) *TavilyClient {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &TavilyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type tavilySearchReq struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

func (c *TavilyClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, fmt.Errorf("tavily api key not configured")
	}
	b, err := json.Marshal(tavilySearchReq{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    maxSearchResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily status %d", resp.StatusCode)
	}

	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	return &out, nil
}

// WebSearch answers /search <query> with web results.
type WebSearch struct {
	searcher Searcher
}

func NewWebSearch(s Searcher) *WebSearch { return &WebSearch{searcher: s} }

func (*WebSearch) ID() string   { return "web_search" }
func (*WebSearch) Name() string { return "Web Search (Tavily)" }
func (*WebSearch) Description() string {
	return "Adds web search capability using Tavily API via /search command."
}

func (w *WebSearch) Init(host *plugin.Host) error {
	if w.searcher != nil || host == nil || host.Config == nil {
		return nil
	}
	p := host.Config.Plugins
	w.searcher = NewTavilyClient(p.TavilyBaseURL, p.TavilyAPIKey)
	return nil
}

func (w *WebSearch) ProcessInput(ctx context.Context, text string, pc *plugin.Context) plugin.Result {
	t := strings.TrimSpace(text)
	lower := strings.ToLower(t)
	if lower != "/search" && !strings.HasPrefix(lower, "/search ") {
		return plugin.Pass()
	}
	pc.BypassAI = true

	query := strings.TrimSpace(t[len("/search"):])
	if query == "" {
		return plugin.Replace("Usage: /search <your query>")
	}
	if w.searcher == nil {
		return plugin.Replace("Web search failed.")
	}
	res, err := w.searcher.Search(ctx, query)
	if err != nil || res == nil {
		log.Printf("[plugin] web_search: query failed: %v", err)
		return plugin.Replace("Web search failed.")
	}
	return plugin.Replace(formatSearch(res))
}

func (*WebSearch) ProcessOutput(context.Context, string, *plugin.Context) plugin.Result {
	return plugin.Pass()
}

func formatSearch(res *SearchResponse) string {
	parts := make([]string, 0, maxSearchResults+2)
	if res.Answer != "" {
		parts = append(parts, "Answer: "+res.Answer+"\n")
	}
	parts = append(parts, "Search Results:")
	for i, r := range res.Results {
		if i == maxSearchResults {
			break
		}
		parts = append(parts, fmt.Sprintf("%d. %s\n   %s\n   %s",
			i+1, orDefault(r.Title, "No title"), orDefault(r.URL, "No URL"), orDefault(r.Content, "No content")))
	}
	return strings.Join(parts, "\n\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
