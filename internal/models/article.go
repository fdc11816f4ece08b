package models

import "time"

// Article is the unit of ingestion: one journal article with whatever text
// the publisher API exposed for it.
type Article struct {
	Title     string    `json:"title"`
	DOI       string    `json:"doi,omitempty"`
	Year      int       `json:"year,omitempty"`
	Journal   string    `json:"journal,omitempty"`
	Volume    string    `json:"volume,omitempty"`
	Issue     string    `json:"issue,omitempty"`
	Source    string    `json:"source"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Key returns the article identity: DOI when present, title otherwise.
func (a Article) Key() string {
	if a.DOI != "" {
		return a.DOI
	}
	return a.Title
}

// ChunkPayload is stored alongside every vector point and carries enough
// article metadata to reconstruct a search result without a second lookup.
type ChunkPayload struct {
	Text       string `json:"text"`
	Title      string `json:"title"`
	DOI        string `json:"doi,omitempty"`
	Year       int    `json:"year,omitempty"`
	Journal    string `json:"journal,omitempty"`
	Source     string `json:"source"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkCount int    `json:"chunk_count"`
	IngestedAt int64  `json:"ingested_at"`
}

// ArticleKey mirrors Article.Key for stored chunks.
func (p ChunkPayload) ArticleKey() string {
	if p.DOI != "" {
		return p.DOI
	}
	return p.Title
}

// ArticleMatch is one aggregated search result: the best-scoring chunk of an
// article, folded back to article granularity.
type ArticleMatch struct {
	Title   string  `json:"title"`
	DOI     string  `json:"doi,omitempty"`
	Year    int     `json:"year,omitempty"`
	Journal string  `json:"journal,omitempty"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
	Excerpt string  `json:"excerpt"`
}
