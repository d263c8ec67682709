package capability

import (
	"context"
	"errors"
	"testing"

	"workflow-agent-be/internal/entity"
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/internal/repository/contract"
	"workflow-agent-be/internal/repository/specification"
	"workflow-agent-be/internal/repository/unitofwork"
	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/apperror"
	"workflow-agent-be/pkg/connector"
	"workflow-agent-be/pkg/llm"
	"workflow-agent-be/pkg/store"
	"workflow-agent-be/pkg/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLLMProvider struct {
	mock.Mock
}

func (m *MockLLMProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	args := m.Called(ctx, history)
	return args.String(0), args.Error(1)
}

func (m *MockLLMProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockConnectorEmbeddingRepository struct {
	mock.Mock
}

func (m *MockConnectorEmbeddingRepository) Upsert(ctx context.Context, e *entity.ConnectorEmbedding) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockConnectorEmbeddingRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConnectorEmbedding, error) {
	args := m.Called(ctx, specs)
	return args.Get(0).([]*entity.ConnectorEmbedding), args.Error(1)
}

func (m *MockConnectorEmbeddingRepository) SearchSimilarWithScore(ctx context.Context, vec []float32, limit int, threshold float64) ([]*contract.ScoredConnectorEmbedding, error) {
	args := m.Called(ctx, vec, limit, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*contract.ScoredConnectorEmbedding), args.Error(1)
}

type stubUnitOfWork struct {
	unitofwork.UnitOfWork
	embeddings contract.ConnectorEmbeddingRepository
}

func (u stubUnitOfWork) ConnectorEmbeddingRepository() contract.ConnectorEmbeddingRepository {
	return u.embeddings
}

type stubFactory struct{ uow unitofwork.UnitOfWork }

func (f stubFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

type fixedEmbedder struct {
	vec []float32
	err error
}

func (e fixedEmbedder) Embed(context.Context, string) ([]float32, error) { return e.vec, e.err }
func (e fixedEmbedder) Dimensions() int                                  { return len(e.vec) }

func TestClassifierNormalizesModelOutput(t *testing.T) {
	tests := []struct {
		raw  string
		want store.Intent
	}{
		{"new_workflow", store.IntentNewWorkflow},
		{"'modify_workflow'\n", store.IntentModifyWorkflow},
		{"\"General\".", store.IntentGeneral},
		{"I think this is new_workflow", store.IntentUnclear},
		{"", store.IntentUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			provider := new(MockLLMProvider)
			provider.On("Generate", mock.Anything, mock.AnythingOfType("string")).Return(tt.raw, nil)

			got, err := NewLLMClassifier(provider, logger.NopLogger{}).Classify(context.Background(), agent.ClassificationRequest{
				Prompt:  "create a workflow",
				Context: []string{"Name: Jira, Type: ticketing, ID: ticket-jira"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifierPassesContextIntoPrompt(t *testing.T) {
	provider := new(MockLLMProvider)
	provider.On("Generate", mock.Anything, mock.AnythingOfType("string")).Return("general", nil)

	_, err := NewLLMClassifier(provider, logger.NopLogger{}).Classify(context.Background(), agent.ClassificationRequest{
		Prompt:  "what is jira?",
		Context: []string{"Name: Jira, Type: ticketing, ID: ticket-jira"},
	})
	require.NoError(t, err)

	prompt := provider.Calls[0].Arguments.String(1)
	assert.Contains(t, prompt, "what is jira?")
	assert.Contains(t, prompt, "Name: Jira, Type: ticketing, ID: ticket-jira")
	assert.Contains(t, prompt, "<history>\nNo previous conversation\n</history>")
	assert.Contains(t, prompt, "<current_workflow>\nNo workflow has been built yet\n</current_workflow>")
}

func TestClassifierRendersHistoryAndCurrentWorkflow(t *testing.T) {
	provider := new(MockLLMProvider)
	provider.On("Generate", mock.Anything, mock.AnythingOfType("string")).Return("modify_workflow", nil)

	existing := &workflow.Artifact{
		Structure: []workflow.Node{
			{ID: "node-1", Name: "github-issue-created", Type: workflow.NodeTypeNormal},
			{ID: "node-2", Name: "jira-create-ticket", Type: workflow.NodeTypeNormal},
		},
	}
	got, err := NewLLMClassifier(provider, logger.NopLogger{}).Classify(context.Background(), agent.ClassificationRequest{
		Prompt: "also notify on Slack",
		History: []store.Interaction{{
			Prompt:   "create a workflow where a GitHub issue triggers a Jira ticket",
			Response: "Here is your workflow.",
		}},
		Existing: existing,
	})
	require.NoError(t, err)
	assert.Equal(t, store.IntentModifyWorkflow, got)

	prompt := provider.Calls[0].Arguments.String(1)
	assert.Contains(t, prompt, "user: create a workflow where a GitHub issue triggers a Jira ticket\nassistant: Here is your workflow.")
	assert.Contains(t, prompt, "node-1 (github-issue-created)\nnode-2 (jira-create-ticket)")
	assert.NotContains(t, prompt, "No previous conversation")
}

func TestGeneratorStripsFencesAndAppendsRepair(t *testing.T) {
	provider := new(MockLLMProvider)
	provider.On("Generate", mock.Anything, mock.AnythingOfType("string")).
		Return("Here you go:\n```json\n{\"structure\": []}\n```", nil)

	gen := NewLLMGenerator(provider, logger.NopLogger{})
	out, err := gen.Generate(context.Background(), agent.GenerationRequest{
		Prompt: "github to jira",
		Repair: "node-2 has no data entry",
		History: []store.Interaction{
			{Prompt: "hi", Response: "Hello!"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"structure": []}`, out)

	prompt := provider.Calls[0].Arguments.String(1)
	assert.Contains(t, prompt, "github to jira")
	assert.Contains(t, prompt, "user: hi\nassistant: Hello!")
	assert.Contains(t, prompt, "<correction>\nnode-2 has no data entry\n</correction>")
}

func TestModifierSendsExistingWorkflow(t *testing.T) {
	provider := new(MockLLMProvider)
	provider.On("Generate", mock.Anything, mock.AnythingOfType("string")).Return(`{"structure": [{"id": "node-2"}]}`, nil)

	existing := &workflow.Artifact{
		Structure: []workflow.Node{{ID: "node-1", Name: "github-issue-created", Type: workflow.NodeTypeNormal}},
		Data:      map[string]workflow.NodeMetadata{"node-1": {Type: workflow.DataTypeSCMAction}},
	}
	gen := NewLLMGenerator(provider, logger.NopLogger{})
	_, err := gen.Modify(context.Background(), agent.GenerationRequest{Prompt: "also notify slack", Existing: existing})
	require.NoError(t, err)
	assert.Contains(t, provider.Calls[0].Arguments.String(1), `"github-issue-created"`)

	_, err = gen.Modify(context.Background(), agent.GenerationRequest{Prompt: "also notify slack"})
	assert.Error(t, err)
	provider.AssertNumberOfCalls(t, "Generate", 1)
}

func TestResponderBuildsChatHistory(t *testing.T) {
	provider := new(MockLLMProvider)
	provider.On("Chat", mock.Anything, mock.Anything).Return("  Which systems should I connect?  ", nil)

	out, err := NewLLMResponder(provider, logger.NopLogger{}).Respond(context.Background(), agent.ResponseRequest{
		Prompt:  "start new workflow",
		History: []store.Interaction{{Prompt: "hi", Response: "Hello!"}},
		Clarify: true,
		Problem: "the request could not be turned into a valid workflow",
	})
	require.NoError(t, err)
	assert.Equal(t, "Which systems should I connect?", out)

	msgs := provider.Calls[0].Arguments.Get(1).([]llm.Message)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "could not be turned into a valid workflow")
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "start new workflow", msgs[3].Content)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(errors.New("connection reset")))
	assert.True(t, Retryable(apperror.Generation("op", &llm.StatusError{Provider: "ollama", StatusCode: 503})))
	assert.False(t, Retryable(apperror.Generation("op", &llm.StatusError{Provider: "ollama", StatusCode: 404})))
	assert.False(t, Retryable(context.Canceled))
}

func TestVectorRetrieverRendersSnippets(t *testing.T) {
	repo := new(MockConnectorEmbeddingRepository)
	repo.On("SearchSimilarWithScore", mock.Anything, []float32{0.6, 0.8}, 2, 0.5).Return([]*contract.ScoredConnectorEmbedding{
		{Embedding: &entity.ConnectorEmbedding{ConnectorId: "ticket-jira", Name: "Jira", Kind: "ticketing"}, Similarity: 0.9},
		{Embedding: &entity.ConnectorEmbedding{ConnectorId: "5c3f2a4e-8d0b-4b0e-9a63-1f6c2d9e7a10", Name: "GitHub", Kind: "scm"}, Similarity: 0.7},
	}, nil)

	r := NewVectorRetriever(fixedEmbedder{vec: []float32{3, 4}}, stubFactory{uow: stubUnitOfWork{embeddings: repo}}, 2, 0.5, logger.NopLogger{})
	got, err := r.Retrieve(context.Background(), "jira from github")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Name: Jira, Type: ticketing, ID: ticket-jira",
		"Name: GitHub, Type: scm, ID: 5c3f2a4e-8d0b-4b0e-9a63-1f6c2d9e7a10",
	}, got)
	repo.AssertExpectations(t)
}

func TestVectorRetrieverSurfacesFailures(t *testing.T) {
	repo := new(MockConnectorEmbeddingRepository)
	repo.On("SearchSimilarWithScore", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("relation does not exist"))
	factory := stubFactory{uow: stubUnitOfWork{embeddings: repo}}

	_, err := NewVectorRetriever(fixedEmbedder{err: errors.New("embedder down")}, factory, 0, 0, logger.NopLogger{}).
		Retrieve(context.Background(), "jira")
	assert.ErrorContains(t, err, "embedder down")

	_, err = NewVectorRetriever(fixedEmbedder{vec: []float32{1, 0}}, factory, 0, 0, logger.NopLogger{}).
		Retrieve(context.Background(), "jira")
	assert.ErrorContains(t, err, "relation does not exist")
}

func TestCatalogRetrieverMatchesWholeWords(t *testing.T) {
	registry, err := connector.NewDefaultRegistry(logger.NopLogger{})
	require.NoError(t, err)
	r := NewCatalogRetriever(registry, 3)

	got, err := r.Retrieve(context.Background(), "When a GitHub issue opens, create a Jira ticket and ping Slack.")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Name: GitHub, Type: scm, ID: 5c3f2a4e-8d0b-4b0e-9a63-1f6c2d9e7a10",
		"Name: Jira, Type: ticketing, ID: ticket-jira",
		"Name: Slack, Type: messaging, ID: msg-slack",
	}, got)

	got, err = r.Retrieve(context.Background(), "a high priority thing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
