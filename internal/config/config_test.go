package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medlit-tools/semsearch/internal/config"
)

func clearCommonEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VECTOR_BACKEND", "QDRANT_ADDR", "ELASTICSEARCH_ADDR", "VECTOR_COLLECTION",
		"OLLAMA_ADDR", "EMBED_MODEL", "EMBED_DIM",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWorkerDefaults(t *testing.T) {
	clearCommonEnv(t)
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")
	t.Setenv("CHUNK_WINDOW_TOKENS", "")
	t.Setenv("CHUNK_OVERLAP_TOKENS", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, config.BackendQdrant, cfg.VectorBackend)
	require.Equal(t, "qdrant:6334", cfg.QdrantAddr)
	require.Equal(t, "articles", cfg.Collection)
	require.Equal(t, "nomic-embed-text", cfg.EmbedModel)
	require.Equal(t, 768, cfg.EmbedDim)
	require.Len(t, cfg.KafkaBrokers, 1)
	require.Equal(t, "articles_raw", cfg.KafkaTopic)
	require.Equal(t, "article-worker", cfg.KafkaConsumer)
	require.Equal(t, 512, cfg.ChunkWindow)
	require.Equal(t, 128, cfg.ChunkOverlap)
}

func TestLoadWorkerRejectsOverlapNotSmallerThanWindow(t *testing.T) {
	clearCommonEnv(t)
	t.Setenv("CHUNK_WINDOW_TOKENS", "100")
	t.Setenv("CHUNK_OVERLAP_TOKENS", "100")

	_, err := config.LoadWorker()
	require.Error(t, err)
}

func TestLoadWorkerRejectsUnknownBackend(t *testing.T) {
	clearCommonEnv(t)
	t.Setenv("VECTOR_BACKEND", "pinecone")

	_, err := config.LoadWorker()
	require.Error(t, err)
}

func TestLoadAPIDefaultsAndOverrides(t *testing.T) {
	clearCommonEnv(t)
	t.Setenv("API_BIND_ADDR", "")
	t.Setenv("SEARCH_DEFAULT_LIMIT", "")
	t.Setenv("SEARCH_MAX_LIMIT", "")
	t.Setenv("SEARCH_SCORE_THRESHOLD", "")
	t.Setenv("ASK_SCORE_THRESHOLD", "")
	t.Setenv("API_KEY", "")
	t.Setenv("API_IP_ALLOWLIST", "")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.BindAddr)
	require.Equal(t, 10, cfg.DefaultLimit)
	require.Equal(t, 50, cfg.MaxLimit)
	require.InDelta(t, 0.5, cfg.SearchThreshold, 1e-6)
	require.InDelta(t, 0.4, cfg.AskThreshold, 1e-6)
	require.Empty(t, cfg.IPAllowlist)

	t.Setenv("VECTOR_BACKEND", "elastic")
	t.Setenv("SEARCH_SCORE_THRESHOLD", "0.65")
	t.Setenv("API_IP_ALLOWLIST", "10.0.0.1, 192.168.0.0/24")

	cfg, err = config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, config.BackendElastic, cfg.VectorBackend)
	require.InDelta(t, 0.65, cfg.SearchThreshold, 1e-6)
	require.Equal(t, []string{"10.0.0.1", "192.168.0.0/24"}, cfg.IPAllowlist)
}

func TestLoadAPIRejectsDefaultLimitAboveMax(t *testing.T) {
	clearCommonEnv(t)
	t.Setenv("SEARCH_DEFAULT_LIMIT", "100")
	t.Setenv("SEARCH_MAX_LIMIT", "50")

	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadFetcherValidation(t *testing.T) {
	t.Setenv("PUBLISHER_BASE_URL", "")
	t.Setenv("PUBLISHER_API_KEY", "")

	_, err := config.LoadFetcher()
	require.Error(t, err)

	t.Setenv("PUBLISHER_BASE_URL", "https://onesearch.example.org")
	t.Setenv("PUBLISHER_API_KEY", "missing-separator")
	_, err = config.LoadFetcher()
	require.Error(t, err)

	t.Setenv("PUBLISHER_API_KEY", "user|key")
	t.Setenv("PUBLISHER_CONTEXTS", "nejm,catalyst")
	t.Setenv("FETCH_INTERVAL", "30m")
	cfg, err := config.LoadFetcher()
	require.NoError(t, err)
	require.Equal(t, []string{"nejm", "catalyst"}, cfg.Contexts)
	require.Equal(t, 30*time.Minute, cfg.Interval)
	require.Equal(t, 10, cfg.ArticlesPerContext)
}

func TestLoadRetentionDefaults(t *testing.T) {
	clearCommonEnv(t)
	t.Setenv("RETENTION_INTERVAL", "")
	t.Setenv("RETENTION_MAX_AGE", "")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.Interval)
	require.Equal(t, 2160*time.Hour, cfg.MaxAge)
}
