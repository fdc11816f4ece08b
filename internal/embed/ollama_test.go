package embed_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medlit-tools/semsearch/internal/embed"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestEmbedReturnsVector(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "nomic-embed-text", req.Model)
		require.Equal(t, "myocardial infarction outcomes", req.Prompt)

		json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float64{0.1, 0.2, 0.3, 0.4},
		})
	})

	svc, err := embed.NewOllama(server.URL, "nomic-embed-text", 4)
	require.NoError(t, err)
	require.Equal(t, 4, svc.Dimensions())

	vector, err := svc.Embed(context.Background(), "myocardial infarction outcomes")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, vector)
}

func TestEmbedServerFailureIsRemoteError(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	svc, err := embed.NewOllama(server.URL, "nomic-embed-text", 4)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "anything")
	require.Error(t, err)

	var remote *embed.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, "nomic-embed-text", remote.Model)
}

func TestEmbedEmptyVectorIsRemoteError(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{}})
	})

	svc, err := embed.NewOllama(server.URL, "nomic-embed-text", 4)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "anything")
	var remote *embed.RemoteError
	require.ErrorAs(t, err, &remote)
}

func TestEmbedDimensionMismatchIsNotRemote(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float64{0.1, 0.2},
		})
	})

	svc, err := embed.NewOllama(server.URL, "nomic-embed-text", 768)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "anything")
	require.Error(t, err)

	var remote *embed.RemoteError
	require.False(t, errors.As(err, &remote))
}
