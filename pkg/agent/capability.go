package agent

import (
	"context"
	"time"

	"workflow-agent-be/pkg/store"
	"workflow-agent-be/pkg/workflow"
)

// ClassificationRequest carries what the classifier sees of the session.
// Existing is nil when nothing has been built yet.
type ClassificationRequest struct {
	Prompt   string
	Context  []string
	History  []store.Interaction
	Existing *workflow.Artifact
}

// Classifier maps a prompt onto an intent.
type Classifier interface {
	Classify(ctx context.Context, req ClassificationRequest) (store.Intent, error)
}

// Retriever returns context snippets relevant to the prompt, best first.
type Retriever interface {
	Retrieve(ctx context.Context, prompt string) ([]string, error)
}

// GenerationRequest is the input of Generate and Modify. Repair is empty on
// the first round and carries the rejection of the previous payload after.
type GenerationRequest struct {
	Prompt   string
	Context  []string
	History  []store.Interaction
	Existing *workflow.Artifact
	Repair   string
}

// Generator produces a raw workflow payload, or conversational text when the
// model declines to produce one.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Modifier produces a raw patch for req.Existing.
type Modifier interface {
	Modify(ctx context.Context, req GenerationRequest) (string, error)
}

type ResponseRequest struct {
	Prompt  string
	Context []string
	History []store.Interaction
	Clarify bool
	Problem string
}

// Responder writes conversational replies for the fallback states.
type Responder interface {
	Respond(ctx context.Context, req ResponseRequest) (string, error)
}

// HistoryStore is the part of the history service a run uses.
type HistoryStore interface {
	Load(ctx context.Context, sessionID string) ([]store.Interaction, error)
	Append(ctx context.Context, interaction store.Interaction) error
	Degraded() bool
	Window() int
}

// ResponseCache is the part of the cache layer a run uses. Reads report
// misses on any failure.
type ResponseCache interface {
	GetResponse(ctx context.Context, sessionID, prompt string) (*store.Interaction, bool)
	PutResponse(ctx context.Context, sessionID, prompt string, it store.Interaction, ttl time.Duration) error
	GetState(ctx context.Context, sessionID string) (*store.SessionSnapshot, bool)
	PutState(ctx context.Context, sessionID string, snap store.SessionSnapshot, ttl time.Duration) error
	TTL() time.Duration
}
