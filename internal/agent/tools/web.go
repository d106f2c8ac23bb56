package tools

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
)

// SearchResult is one web search hit
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher abstracts a web search backend
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)
}

// NewSearcher builds a searcher for the configured provider
func NewSearcher(cfg config.WebSearchConfig) (Searcher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	switch cfg.Provider {
	case "brave":
		return braveSearcher{apiKey: cfg.BraveAPIKey, client: client}, nil
	case "serper", "":
		return serperSearcher{apiKey: cfg.SerperAPIKey, client: client}, nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}

type braveSearcher struct {
	apiKey string
	client *http.Client
}

func (s braveSearcher) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	// https://api.search.brave.com/app/documentation/web-search
	endpoint := fmt.Sprintf("https://api.search.brave.com/res/v1/web/search?q=%s&count=%d", url.QueryEscape(query), k)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("brave search status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []SearchResult
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}

type serperSearcher struct {
	apiKey string
	client *http.Client
}

func (s serperSearcher) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	// https://serper.dev/ docs
	payload, _ := json.Marshal(map[string]interface{}{"q": query, "num": k})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://google.serper.dev/search", strings.NewReader(string(payload)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("serper search status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []SearchResult
	for i, r := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

// WebSearchTool searches the web and returns ranked hits
type WebSearchTool struct {
	searcher   Searcher
	maxResults int
}

func NewWebSearchTool(searcher Searcher, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &WebSearchTool{searcher: searcher, maxResults: maxResults}
}

func (t *WebSearchTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "web_search",
		Description: "Search the web for information on a topic. Returns a list of relevant search results with titles, URLs, and snippets.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "The search query",
				},
				"max_results": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (default: 10)",
					"default":     10,
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *WebSearchTool) Capabilities() []Capability { return []Capability{CapEvidence} }

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	query := strings.TrimSpace(stringArg(args, "query"))
	if query == "" {
		return Failure("query is required")
	}
	k := intArg(args, "max_results", t.maxResults)
	if k > t.maxResults {
		k = t.maxResults
	}
	results, err := t.searcher.Search(ctx, query, k)
	if err != nil {
		return Failure("web search failed: %v", err)
	}
	return ToolResult{
		Success:  true,
		Output:   results,
		Metadata: map[string]interface{}{"query": query, "result_count": len(results)},
	}
}

// Page is the readable content extracted from a fetched web page
type Page struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Byline   string   `json:"byline"`
	Content  string   `json:"content"`
	Links    []string `json:"links,omitempty"`
	HTMLHash string   `json:"html_hash"`
	RenderMS int      `json:"render_ms"`
}

// PageFetcher abstracts headless page fetching with content extraction
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (Page, error)
}

// ChromedpFetcher renders pages in headless Chrome and extracts the
// readable article text
type ChromedpFetcher struct {
	timeout  time.Duration
	maxChars int
}

func NewChromedpFetcher(cfg config.WebFetchConfig) *ChromedpFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 15000
	}
	return &ChromedpFetcher{timeout: timeout, maxChars: maxChars}
}

func (f *ChromedpFetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	if strings.TrimSpace(pageURL) == "" {
		return Page{}, fmt.Errorf("invalid url")
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	t0 := time.Now()

	html, err := fetchHTML(ctx, pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("rendering %s: %w", pageURL, err)
	}

	sum := sha1.Sum([]byte(html))
	page := Page{
		URL:      pageURL,
		HTMLHash: hex.EncodeToString(sum[:]),
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}

	article, err := readability.FromReader(strings.NewReader(html), parseURL(pageURL))
	if err != nil {
		return page, nil
	}
	text := article.TextContent
	if len(text) > f.maxChars {
		text = text[:f.maxChars] + "\n\n[Content truncated...]"
	}
	page.Title = strings.TrimSpace(article.Title)
	page.Byline = strings.TrimSpace(article.Byline)
	page.Content = strings.TrimSpace(text)
	page.Links = extractLinks(html, parseURL(pageURL))
	return page, nil
}

const maxExtractedLinks = 100

// extractLinks collects absolute http(s) anchor targets from the page,
// deduplicated in document order
func extractLinks(rawHTML string, base *url.URL) []string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	var links []string
	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(links) >= maxExtractedLinks {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				u, err := url.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					continue
				}
				resolved := base.ResolveReference(u)
				if resolved.Scheme != "http" && resolved.Scheme != "https" {
					continue
				}
				resolved.Fragment = ""
				link := resolved.String()
				if !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

func fetchHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("DeepResearchAgent/1.0 (+contact@example.com)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func parseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}

// WebBrowseTool reads a single page and returns its extracted content
type WebBrowseTool struct {
	fetcher PageFetcher
}

func NewWebBrowseTool(fetcher PageFetcher) *WebBrowseTool {
	return &WebBrowseTool{fetcher: fetcher}
}

func (t *WebBrowseTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "web_browse",
		Description: "Browse a web page and extract its text content. Useful for reading full articles, documentation, or any web page content.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "The URL to browse",
				},
				"extract_links": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether to extract links from the page (default: false)",
					"default":     false,
				},
			},
			"required": []string{"url"},
		},
	}
}

func (t *WebBrowseTool) Capabilities() []Capability { return []Capability{CapEvidence} }

func (t *WebBrowseTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	pageURL := strings.TrimSpace(stringArg(args, "url"))
	if pageURL == "" {
		return Failure("url is required")
	}
	page, err := t.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return Failure("web browse failed: %v", err)
	}
	if !boolArg(args, "extract_links", false) {
		page.Links = nil
	}
	return ToolResult{
		Success:  true,
		Output:   page,
		Metadata: map[string]interface{}{"url": pageURL, "content_length": len(page.Content)},
	}
}

// BatchWebSurferTool combines search and browse over several queries in
// one call
type BatchWebSurferTool struct {
	search *WebSearchTool
	browse *WebBrowseTool
}

const maxBatchQueries = 5

func NewBatchWebSurferTool(search *WebSearchTool, browse *WebBrowseTool) *BatchWebSurferTool {
	return &BatchWebSurferTool{search: search, browse: browse}
}

func (t *BatchWebSurferTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "batch_web_surfer",
		Description: "Perform batch web research: search for each query and browse the top results. More efficient than separate search and browse calls. Use this for comprehensive information gathering on a topic.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"queries": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "List of search queries to execute",
				},
				"browse_top_n": map[string]interface{}{
					"type":        "integer",
					"description": "Number of top results to browse per query (default: 3)",
					"default":     3,
				},
				"max_results_per_query": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum search results per query (default: 5)",
					"default":     5,
				},
			},
			"required": []string{"queries"},
		},
	}
}

func (t *BatchWebSurferTool) Capabilities() []Capability { return []Capability{CapEvidence} }

func (t *BatchWebSurferTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	queries := stringSliceArg(args, "queries")
	if len(queries) == 0 {
		return Failure("queries is required")
	}
	if len(queries) > maxBatchQueries {
		queries = queries[:maxBatchQueries]
	}
	browseTopN := intArg(args, "browse_top_n", 3)
	perQuery := intArg(args, "max_results_per_query", 5)

	var all []map[string]interface{}
	pagesBrowsed := 0
	for _, query := range queries {
		searchRes := t.search.Execute(ctx, map[string]interface{}{
			"query":       query,
			"max_results": perQuery,
		})
		if !searchRes.Success {
			continue
		}
		hits, _ := searchRes.Output.([]SearchResult)
		queryResult := map[string]interface{}{
			"query":          query,
			"search_results": hits,
		}
		var browsed []map[string]interface{}
		for i, hit := range hits {
			if i >= browseTopN {
				break
			}
			browseRes := t.browse.Execute(ctx, map[string]interface{}{"url": hit.URL})
			if !browseRes.Success {
				continue
			}
			page, _ := browseRes.Output.(Page)
			content := page.Content
			if len(content) > 5000 {
				content = content[:5000]
			}
			browsed = append(browsed, map[string]interface{}{
				"url":     hit.URL,
				"title":   page.Title,
				"content": content,
			})
			pagesBrowsed++
		}
		queryResult["browsed_content"] = browsed
		all = append(all, queryResult)
	}

	return ToolResult{
		Success: true,
		Output:  all,
		Metadata: map[string]interface{}{
			"queries_processed":   len(queries),
			"total_pages_browsed": pagesBrowsed,
		},
	}
}
