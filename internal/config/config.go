package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Vector store backends.
const (
	BackendQdrant  = "qdrant"
	BackendElastic = "elastic"
)

// Common contains the vector store and embedding parameters shared by every
// service.
type Common struct {
	VectorBackend string
	QdrantAddr    string
	ElasticAddr   string
	Collection    string
	OllamaAddr    string
	EmbedModel    string
	EmbedDim      int
}

// Fetcher holds configuration for the publisher -> Kafka fetcher.
type Fetcher struct {
	PublisherBaseURL   string
	PublisherAPIKey    string
	Contexts           []string
	ArticlesPerContext int
	Interval           time.Duration
	KafkaBrokers       []string
	KafkaTopic         string
}

// Worker holds configuration for the Kafka -> vector store worker.
type Worker struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	ChunkWindow    int
	ChunkOverlap   int
	DedupeCapacity int
	DedupeTTL      time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr        string
	DefaultLimit    int
	MaxLimit        int
	SearchThreshold float32
	AskThreshold    float32
	AskChunks       int
	ChatModel       string
	APIKey          string
	IPAllowlist     []string
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

func loadCommon() (Common, error) {
	c := Common{
		VectorBackend: getEnv("VECTOR_BACKEND", BackendQdrant),
		QdrantAddr:    getEnv("QDRANT_ADDR", "qdrant:6334"),
		ElasticAddr:   getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		Collection:    getEnv("VECTOR_COLLECTION", "articles"),
		OllamaAddr:    getEnv("OLLAMA_ADDR", "http://ollama:11434"),
		EmbedModel:    getEnv("EMBED_MODEL", "nomic-embed-text"),
		EmbedDim:      getInt("EMBED_DIM", 768),
	}

	if c.VectorBackend != BackendQdrant && c.VectorBackend != BackendElastic {
		return c, fmt.Errorf("VECTOR_BACKEND must be %q or %q", BackendQdrant, BackendElastic)
	}
	if c.EmbedDim <= 0 {
		return c, fmt.Errorf("EMBED_DIM must be positive")
	}
	if c.Collection == "" {
		return c, fmt.Errorf("VECTOR_COLLECTION must not be empty")
	}

	return c, nil
}

// LoadFetcher builds a Fetcher config from environment variables.
func LoadFetcher() (*Fetcher, error) {
	c := &Fetcher{
		PublisherBaseURL:   getEnv("PUBLISHER_BASE_URL", ""),
		PublisherAPIKey:    getEnv("PUBLISHER_API_KEY", ""),
		Contexts:           splitAndTrim(getEnv("PUBLISHER_CONTEXTS", "nejm")),
		ArticlesPerContext: getInt("FETCH_ARTICLES_PER_CONTEXT", 10),
		Interval:           getDuration("FETCH_INTERVAL", "1h"),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "articles_raw"),
	}

	if c.PublisherBaseURL == "" {
		return nil, fmt.Errorf("PUBLISHER_BASE_URL must be set")
	}
	if !strings.Contains(c.PublisherAPIKey, "|") {
		return nil, fmt.Errorf("PUBLISHER_API_KEY must have the form user|key")
	}
	if len(c.Contexts) == 0 {
		return nil, fmt.Errorf("PUBLISHER_CONTEXTS must contain at least one context")
	}
	if c.ArticlesPerContext <= 0 {
		return nil, fmt.Errorf("FETCH_ARTICLES_PER_CONTEXT must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("FETCH_INTERVAL must be positive")
	}
	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Worker{
		Common:         common,
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "articles_raw"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "article-worker"),
		ChunkWindow:    getInt("CHUNK_WINDOW_TOKENS", 512),
		ChunkOverlap:   getInt("CHUNK_OVERLAP_TOKENS", 128),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "720h"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.ChunkWindow <= 0 {
		return nil, fmt.Errorf("CHUNK_WINDOW_TOKENS must be positive")
	}
	if c.ChunkOverlap < 0 {
		return nil, fmt.Errorf("CHUNK_OVERLAP_TOKENS cannot be negative")
	}
	if c.ChunkOverlap >= c.ChunkWindow {
		return nil, fmt.Errorf("CHUNK_OVERLAP_TOKENS must be smaller than CHUNK_WINDOW_TOKENS")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:          common,
		BindAddr:        getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultLimit:    getInt("SEARCH_DEFAULT_LIMIT", 10),
		MaxLimit:        getInt("SEARCH_MAX_LIMIT", 50),
		SearchThreshold: getFloat("SEARCH_SCORE_THRESHOLD", 0.5),
		AskThreshold:    getFloat("ASK_SCORE_THRESHOLD", 0.4),
		AskChunks:       getInt("ASK_CONTEXT_CHUNKS", 5),
		ChatModel:       getEnv("CHAT_MODEL", "llama3.2"),
		APIKey:          getEnv("API_KEY", ""),
		IPAllowlist:     splitAndTrim(getEnv("API_IP_ALLOWLIST", "")),
	}

	if c.DefaultLimit <= 0 {
		return nil, fmt.Errorf("SEARCH_DEFAULT_LIMIT must be positive")
	}
	if c.MaxLimit <= 0 {
		return nil, fmt.Errorf("SEARCH_MAX_LIMIT must be positive")
	}
	if c.DefaultLimit > c.MaxLimit {
		return nil, fmt.Errorf("SEARCH_DEFAULT_LIMIT cannot exceed SEARCH_MAX_LIMIT")
	}
	if c.AskChunks <= 0 {
		return nil, fmt.Errorf("ASK_CONTEXT_CHUNKS must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Retention{
		Common:    common,
		Interval:  getDuration("RETENTION_INTERVAL", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "2160h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float32) float32 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(parsed)
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
