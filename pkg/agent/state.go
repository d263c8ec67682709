package agent

import (
	"workflow-agent-be/pkg/store"
	"workflow-agent-be/pkg/workflow"
)

// State names one step of an orchestration run.
type State string

const (
	StateClassify        State = "classify"
	StateGenerate        State = "generate"
	StateModify          State = "modify"
	StateFallbackGeneral State = "fallback_general"
	StateFallbackUnclear State = "fallback_unclear"
	StateFinalize        State = "finalize"
	StateDone            State = "done"
)

// AgentState is the working value threaded through one run. It is never
// persisted; the Interaction built in Finalize is its stored projection.
type AgentState struct {
	SessionID string
	Prompt    string
	History   []store.Interaction // oldest first

	// Workflow starts as the session's latest artifact and is replaced when
	// Generate or Modify succeeds.
	Workflow *workflow.Artifact
	Produced bool

	Intent  store.Intent
	Context []string

	Response     string
	NextQuestion string

	ClassificationFailed bool
	Repairs              int
	RepairExhausted      bool
	Rerouted             bool

	Trace    []State
	Recorded *store.Interaction
}

// HasWorkflow reports whether the session already holds an artifact.
func (s *AgentState) HasWorkflow() bool {
	return !s.Workflow.IsEmpty()
}

// Route picks the handler state for an intent. It has no side effects.
func Route(intent store.Intent, hasWorkflow bool) State {
	switch intent {
	case store.IntentNewWorkflow:
		return StateGenerate
	case store.IntentModifyWorkflow:
		if !hasWorkflow {
			return StateGenerate
		}
		return StateModify
	case store.IntentGeneral:
		return StateFallbackGeneral
	default:
		return StateFallbackUnclear
	}
}
