// Package answer generates grounded natural-language answers from retrieved
// article chunks.
package answer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/medlit-tools/semsearch/internal/vectorstore"
)

// Generator produces an answer to a question using chunk context and a chat
// model served by Ollama.
type Generator struct {
	client *api.Client
	model  string
}

// NewGenerator builds a generator for the given Ollama address and model.
func NewGenerator(rawURL, model string) (*Generator, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}

	httpClient := &http.Client{Timeout: 120 * time.Second}

	return &Generator{
		client: api.NewClient(u, httpClient),
		model:  model,
	}, nil
}

// Answer asks the chat model the question, grounded on the given hits.
func (g *Generator) Answer(ctx context.Context, question string, hits []vectorstore.Hit) (string, error) {
	prompt := BuildPrompt(question, hits)

	stream := false
	var sb strings.Builder
	err := g.client.Generate(ctx, &api.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: &stream,
	}, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}

	return answer, nil
}

// BuildPrompt renders the retrieval context into the research-assistant
// prompt. Sources are numbered so the model can cite them.
func BuildPrompt(question string, hits []vectorstore.Hit) string {
	var sb strings.Builder

	sb.WriteString("You are a medical research assistant. Based on the following ")
	sb.WriteString("research articles, provide a clear and accurate answer to the question.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nResearch sources:\n")

	for i, hit := range hits {
		fmt.Fprintf(&sb, "\nSource %d (relevance %.0f%%):\nFrom: %s\nContent: %s\n",
			i+1, hit.Score*100, hit.Payload.Title, hit.Payload.Text)
	}

	sb.WriteString("\nAnswer based only on the sources above. ")
	sb.WriteString("Cite sources by number, and say so explicitly when the sources do not answer the question.")

	return sb.String()
}
