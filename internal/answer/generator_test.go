package answer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medlit-tools/semsearch/internal/answer"
	"github.com/medlit-tools/semsearch/internal/models"
	"github.com/medlit-tools/semsearch/internal/vectorstore"
)

func TestBuildPromptNumbersSourcesInOrder(t *testing.T) {
	hits := []vectorstore.Hit{
		{
			Score: 0.91,
			Payload: models.ChunkPayload{
				Title: "Apixaban in Atrial Fibrillation",
				Text:  "Apixaban reduced stroke risk compared with warfarin.",
			},
		},
		{
			Score: 0.72,
			Payload: models.ChunkPayload{
				Title: "Anticoagulation After TAVR",
				Text:  "No benefit was observed for routine anticoagulation.",
			},
		},
	}

	prompt := answer.BuildPrompt("Does apixaban reduce stroke risk?", hits)

	require.Contains(t, prompt, "Question: Does apixaban reduce stroke risk?")
	require.Contains(t, prompt, "Source 1 (relevance 91%):")
	require.Contains(t, prompt, "From: Apixaban in Atrial Fibrillation")
	require.Contains(t, prompt, "Apixaban reduced stroke risk compared with warfarin.")
	require.Contains(t, prompt, "Source 2 (relevance 72%):")
	require.Less(t,
		strings.Index(prompt, "Source 1"),
		strings.Index(prompt, "Source 2"),
	)
}

func TestBuildPromptInstructsGrounding(t *testing.T) {
	prompt := answer.BuildPrompt("anything", nil)

	require.Contains(t, prompt, "Answer based only on the sources above.")
	require.Contains(t, prompt, "Cite sources by number")
}
