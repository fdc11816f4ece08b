package publisher_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medlit-tools/semsearch/internal/publisher"
)

func TestNewRejectsMalformedKey(t *testing.T) {
	_, err := publisher.New("https://example.org", "no-separator", nil)
	require.Error(t, err)

	_, err = publisher.New("https://example.org", "|key", nil)
	require.Error(t, err)

	_, err = publisher.New("https://example.org", "user|", nil)
	require.Error(t, err)
}

func TestRecentArticlesSendsAuthHeadersAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "alice", r.Header.Get("apiuser"))
		require.Equal(t, "s3cret", r.Header.Get("apikey"))

		switch r.URL.Path {
		case "/api/v1/simple":
			require.Equal(t, "nejm", r.URL.Query().Get("context"))
			require.Equal(t, "nejm-article", r.URL.Query().Get("objectType"))
			require.Equal(t, "pubdate-descending", r.URL.Query().Get("sortBy"))
			require.Equal(t, "N", r.URL.Query().Get("showFacets"))
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{
						"text":            "Outcomes of Early Statin Therapy",
						"doi":             "10.1056/test001",
						"pubdate":         "2026-05-14",
						"displayAbstract": "A randomized trial of statins.",
						"publication":     "NEJM",
						"volume":          "392",
						"issue":           "19",
					},
				},
			})
		case "/api/v1/content":
			require.Equal(t, "10.1056/test001", r.URL.Query().Get("doi"))
			require.Equal(t, "json", r.URL.Query().Get("format"))
			json.NewEncoder(w).Encode(map[string]any{
				"document": map[string]any{
					"body": "Full trial methods and results section.",
				},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client, err := publisher.New(server.URL, "alice|s3cret", nil)
	require.NoError(t, err)

	articles, err := client.RecentArticles(context.Background(), "nejm", 1)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	article := articles[0]
	require.Equal(t, "Outcomes of Early Statin Therapy", article.Title)
	require.Equal(t, "10.1056/test001", article.DOI)
	require.Equal(t, 2026, article.Year)
	require.Equal(t, "NEJM", article.Journal)
	require.Equal(t, "392", article.Volume)
	require.Equal(t, "19", article.Issue)
	require.Contains(t, article.Body, "Title: Outcomes of Early Statin Therapy")
	require.Contains(t, article.Body, "Abstract: A randomized trial of statins.")
	require.Contains(t, article.Body, "Full Content: Full trial methods and results section.")
}

func TestRecentArticlesPagesUntilLimit(t *testing.T) {
	var pagesServed []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/content" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		page := r.URL.Query().Get("startPage")
		pagesServed = append(pagesServed, page)
		require.Equal(t, "100", r.URL.Query().Get("pageLength"))

		results := make([]map[string]any, 0, 100)
		if page == "1" || page == "2" {
			for i := 0; i < 100; i++ {
				results = append(results, map[string]any{
					"text": fmt.Sprintf("Article %s-%d", page, i),
					"doi":  fmt.Sprintf("10.1056/p%s.%d", page, i),
				})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer server.Close()

	client, err := publisher.New(server.URL, "alice|s3cret", nil)
	require.NoError(t, err)

	articles, err := client.RecentArticles(context.Background(), "nejm", 150)
	require.NoError(t, err)
	require.Len(t, articles, 150)
	require.Equal(t, []string{"1", "2"}, pagesServed)
}

func TestRecentArticlesStopsOnEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
	}))
	defer server.Close()

	client, err := publisher.New(server.URL, "alice|s3cret", nil)
	require.NoError(t, err)

	articles, err := client.RecentArticles(context.Background(), "nejm", 10)
	require.NoError(t, err)
	require.Empty(t, articles)
}

func TestBuildArticleFallsBackWhenContentFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/simple":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{
						"text":            "GLP-1 Agonists in Heart Failure",
						"doi":             "10.1056/test002",
						"displayAbstract": "Observational cohort results.",
						"snippet":         "Among 4,210 patients with preserved ejection fraction...",
					},
				},
			})
		case "/api/v1/content":
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		}
	}))
	defer server.Close()

	client, err := publisher.New(server.URL, "alice|s3cret", nil)
	require.NoError(t, err)

	articles, err := client.RecentArticles(context.Background(), "nejm", 1)
	require.NoError(t, err)
	require.Len(t, articles, 1)

	body := articles[0].Body
	require.Contains(t, body, "Title: GLP-1 Agonists in Heart Failure")
	require.Contains(t, body, "Abstract: Observational cohort results.")
	require.Contains(t, body, "Snippet: Among 4,210 patients")
	require.NotContains(t, body, "Full Content:")
}

func TestContentCollectsNestedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"document": map[string]any{
				"sections": []any{
					map[string]any{"title": "Methods"},
					map[string]any{"text": "We enrolled 812 participants across 14 sites."},
				},
				"meta": map[string]any{"issn": "0028-4793"},
			},
		})
	}))
	defer server.Close()

	client, err := publisher.New(server.URL, "alice|s3cret", nil)
	require.NoError(t, err)

	text, err := client.Content(context.Background(), "nejm", "10.1056/test003")
	require.NoError(t, err)
	require.Contains(t, text, "Methods")
	require.Contains(t, text, "We enrolled 812 participants across 14 sites.")
	require.NotContains(t, text, "0028-4793")
}
