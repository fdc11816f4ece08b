// Package search folds raw chunk hits back to article granularity.
package search

import (
	"sort"

	"github.com/medlit-tools/semsearch/internal/models"
	"github.com/medlit-tools/semsearch/internal/vectorstore"
)

// Oversample is how many times the requested limit is fetched from the store
// before grouping, so that several chunks of the same article do not crowd
// out other articles.
const Oversample = 3

// GroupByArticle keeps the highest-scoring hit per article key, sorts the
// result by descending score, and truncates it to limit. A non-positive
// limit returns every article.
func GroupByArticle(hits []vectorstore.Hit, limit int) []models.ArticleMatch {
	best := make(map[string]models.ArticleMatch, len(hits))

	for _, hit := range hits {
		key := hit.Payload.ArticleKey()
		if key == "" {
			continue
		}

		if current, ok := best[key]; ok && current.Score >= hit.Score {
			continue
		}

		best[key] = models.ArticleMatch{
			Title:   hit.Payload.Title,
			DOI:     hit.Payload.DOI,
			Year:    hit.Payload.Year,
			Journal: hit.Payload.Journal,
			Source:  hit.Payload.Source,
			Score:   hit.Score,
			Excerpt: hit.Payload.Text,
		}
	}

	matches := make([]models.ArticleMatch, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].Title < matches[j].Title
		}
		return matches[i].Score > matches[j].Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches
}
