package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/agent/capability"
	"workflow-agent-be/pkg/connector"
	"workflow-agent-be/pkg/llm"
	"workflow-agent-be/pkg/llm/ollama"
	"workflow-agent-be/pkg/store"
	"workflow-agent-be/pkg/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaProvider(t *testing.T) llm.LLMProvider {
	t.Helper()
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		t.Skip("Skipping integration test: OLLAMA_BASE_URL not set")
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = "llama3"
	}
	return ollama.NewOllamaProvider(baseURL, model, 2*time.Minute)
}

func TestOllamaClassifiesIntents(t *testing.T) {
	provider := ollamaProvider(t)
	classifier := capability.NewLLMClassifier(provider, logger.NopLogger{})

	tests := []struct {
		prompt string
		want   store.Intent
	}{
		{"Create a workflow that opens a Jira ticket when a GitHub issue is created", store.IntentNewWorkflow},
		{"start new workflow", store.IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			got, err := classifier.Classify(ctx, agent.ClassificationRequest{Prompt: tt.prompt})
			require.NoError(t, err)
			t.Logf("classified %q as %s", tt.prompt, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOllamaGeneratesParseableWorkflow(t *testing.T) {
	provider := ollamaProvider(t)
	registry, err := connector.NewDefaultRegistry(logger.NopLogger{})
	require.NoError(t, err)
	snippets, err := capability.NewCatalogRetriever(registry, 3).
		Retrieve(context.Background(), "When a GitHub issue is created, create a Jira ticket")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	raw, err := capability.NewLLMGenerator(provider, logger.NopLogger{}).Generate(ctx, agent.GenerationRequest{
		Prompt:  "When a GitHub issue is created, create a Jira ticket",
		Context: snippets,
	})
	require.NoError(t, err)
	t.Logf("raw payload: %s", raw)

	// Models drift, so only parseability is asserted. Validation failures are
	// what the repair round in the orchestrator exists for.
	nodes, _, err := workflow.ParseArtifact(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, nodes)
}
