// Package publisher fetches journal articles from the publisher's onesearch
// REST API.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// The API caps pageLength at 100.
const maxPageLength = 100

// Client talks to the publisher search and content endpoints. Auth is a pair
// of headers derived from an API key of the form "user|key".
type Client struct {
	httpClient *http.Client
	baseURL    string
	user       string
	key        string
	log        *slog.Logger
}

// rawArticle mirrors one entry of the search endpoint's results array. The
// "text" field carries the title.
type rawArticle struct {
	Text            string `json:"text"`
	DOI             string `json:"doi"`
	Pubdate         string `json:"pubdate"`
	DisplayAbstract string `json:"displayAbstract"`
	Publication     string `json:"publication"`
	Volume          string `json:"volume"`
	Issue           string `json:"issue"`
	Snippet         string `json:"snippet"`
}

// Article is a fetched article plus the body text assembled from every
// content source the API exposed for it.
type Article struct {
	Title   string
	DOI     string
	Year    int
	Journal string
	Volume  string
	Issue   string
	Body    string
}

// New builds a client; apiKey must have the form "user|key".
func New(baseURL, apiKey string, log *slog.Logger) (*Client, error) {
	user, key, ok := strings.Cut(apiKey, "|")
	if !ok || user == "" || key == "" {
		return nil, fmt.Errorf("api key must have the form user|key")
	}

	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		user:       user,
		key:        key,
		log:        log,
	}, nil
}

// RecentArticles pages through the search endpoint sorted by publication
// date and returns up to limit articles for the given context, newest first.
func (c *Client) RecentArticles(ctx context.Context, searchContext string, limit int) ([]Article, error) {
	pageLength := limit
	if pageLength > maxPageLength {
		pageLength = maxPageLength
	}

	articles := make([]Article, 0, limit)
	for page := 1; len(articles) < limit; page++ {
		results, err := c.searchPage(ctx, searchContext, pageLength, page)
		if err != nil {
			return articles, fmt.Errorf("page %d: %w", page, err)
		}
		if len(results) == 0 {
			break
		}

		for _, raw := range results {
			articles = append(articles, c.buildArticle(ctx, searchContext, raw))
			if len(articles) == limit {
				break
			}
		}
	}

	return articles, nil
}

func (c *Client) searchPage(ctx context.Context, searchContext string, pageLength, startPage int) ([]rawArticle, error) {
	params := url.Values{}
	params.Set("context", searchContext)
	params.Set("objectType", searchContext+"-article")
	params.Set("sortBy", "pubdate-descending")
	params.Set("pageLength", strconv.Itoa(pageLength))
	params.Set("startPage", strconv.Itoa(startPage))
	params.Set("showFacets", "N")

	var parsed struct {
		Results []rawArticle `json:"results"`
	}
	if err := c.getJSON(ctx, "/api/v1/simple", params, &parsed); err != nil {
		return nil, err
	}

	return parsed.Results, nil
}

// Content fetches the full article document for a DOI and extracts its
// readable text.
func (c *Client) Content(ctx context.Context, searchContext, doi string) (string, error) {
	params := url.Values{}
	params.Set("context", searchContext)
	params.Set("doi", doi)
	params.Set("format", "json")

	var parsed struct {
		Document json.RawMessage `json:"document"`
	}
	if err := c.getJSON(ctx, "/api/v1/content", params, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Document) == 0 {
		return "", nil
	}

	var doc any
	if err := json.Unmarshal(parsed.Document, &doc); err != nil {
		return "", fmt.Errorf("decode document: %w", err)
	}

	var parts []string
	collectText(doc, &parts)
	return strings.Join(parts, "\n"), nil
}

// buildArticle assembles the body from the search result, falling back to
// whatever is available when the content endpoint fails.
func (c *Client) buildArticle(ctx context.Context, searchContext string, raw rawArticle) Article {
	var parts []string
	if raw.Text != "" {
		parts = append(parts, "Title: "+raw.Text)
	}
	if raw.DisplayAbstract != "" {
		parts = append(parts, "Abstract: "+raw.DisplayAbstract)
	}
	if raw.Snippet != "" {
		parts = append(parts, "Snippet: "+raw.Snippet)
	}

	if raw.DOI != "" {
		full, err := c.Content(ctx, searchContext, raw.DOI)
		if err != nil {
			c.log.Warn("full content unavailable, using search result content",
				slog.String("doi", raw.DOI),
				slog.Any("err", err),
			)
		} else if strings.TrimSpace(full) != "" {
			parts = append(parts, "Full Content: "+full)
		}
	}

	return Article{
		Title:   raw.Text,
		DOI:     raw.DOI,
		Year:    yearFromPubdate(raw.Pubdate),
		Journal: raw.Publication,
		Volume:  raw.Volume,
		Issue:   raw.Issue,
		Body:    strings.Join(parts, "\n\n"),
	}
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apiuser", c.user)
	req.Header.Set("apikey", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}

// collectText walks the content document and gathers text-bearing fields
// plus any substantial free-standing strings.
func collectText(node any, parts *[]string) {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			if s, ok := value.(string); ok && isTextKey(key) {
				*parts = append(*parts, s)
				continue
			}
			collectText(value, parts)
		}
	case []any:
		for _, item := range v {
			collectText(item, parts)
		}
	case string:
		if len(v) > 20 {
			*parts = append(*parts, v)
		}
	}
}

func isTextKey(key string) bool {
	switch key {
	case "text", "content", "body", "abstract", "title":
		return true
	}
	return false
}

func yearFromPubdate(raw string) int {
	raw = strings.TrimSpace(raw)
	if len(raw) < 4 {
		return 0
	}
	year, err := strconv.Atoi(raw[:4])
	if err != nil || year < 1000 || year > 9999 {
		return 0
	}
	return year
}
