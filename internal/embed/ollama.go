// Package embed turns text into fixed-dimension vectors by calling an
// external embedding service.
package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// RemoteError marks a failure of the embedding service itself, as opposed to
// bad input. Callers skip the failed unit and move on.
type RemoteError struct {
	Model string
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("embedding service (model %s): %v", e.Model, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Service produces one vector per input text.
type Service interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Ollama embeds text through an Ollama server.
type Ollama struct {
	client *api.Client
	model  string
	dims   int
}

// NewOllama builds a client for the given Ollama address and model.
func NewOllama(rawURL, model string, dims int) (*Ollama, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}

	return &Ollama{
		client: api.NewClient(u, httpClient),
		model:  model,
		dims:   dims,
	}, nil
}

// Embed returns the embedding vector for text.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  o.model,
		Prompt: text,
	})
	if err != nil {
		return nil, &RemoteError{Model: o.model, Err: err}
	}

	if len(resp.Embedding) == 0 {
		return nil, &RemoteError{Model: o.model, Err: fmt.Errorf("empty embedding returned")}
	}
	if o.dims > 0 && len(resp.Embedding) != o.dims {
		return nil, fmt.Errorf("embedding dimension %d does not match configured %d", len(resp.Embedding), o.dims)
	}

	vector := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vector[i] = float32(v)
	}

	return vector, nil
}

// Dimensions returns the configured vector size.
func (o *Ollama) Dimensions() int {
	return o.dims
}

// Ping verifies the Ollama server is reachable.
func (o *Ollama) Ping(ctx context.Context) error {
	if err := o.client.Heartbeat(ctx); err != nil {
		return &RemoteError{Model: o.model, Err: err}
	}
	return nil
}
