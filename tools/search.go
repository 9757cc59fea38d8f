package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs web searches for the web_search tool.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// DefaultDuckDuckGoURL is the HTML endpoint of DuckDuckGo, which needs no
// API key.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGoSearcher scrapes the DuckDuckGo HTML results page.
type DuckDuckGoSearcher struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
}

// NewDuckDuckGoSearcher returns a searcher for the public endpoint.
func NewDuckDuckGoSearcher() *DuckDuckGoSearcher {
	return &DuckDuckGoSearcher{
		BaseURL:   DefaultDuckDuckGoURL,
		Client:    &http.Client{Timeout: 15 * time.Second},
		UserAgent: "Mozilla/5.0 (compatible; agentforge/1.0)",
	}
}

func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	base := s.BaseURL
	if base == "" {
		base = DefaultDuckDuckGoURL
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("search url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var results []SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.HasClass("result--ad") {
			return true
		}
		link := sel.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     resolveResultURL(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})
		return maxResults <= 0 || len(results) < maxResults
	})

	log.Debug().Str("query", query).Int("results", len(results)).Msg("tools: web search")
	return results, nil
}

// resolveResultURL unwraps DuckDuckGo redirect links of the form
// //duckduckgo.com/l/?uddg=<target>.
func resolveResultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

// FormatSearchResults renders results as a numbered list.
func FormatSearchResults(results []SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}
	formatted := make([]string, len(results))
	for i, r := range results {
		formatted[i] = fmt.Sprintf("[%d] %s\n    URL: %s\n    %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.Join(formatted, "\n")
}
