package store

import (
	"strings"
	"time"

	"workflow-agent-be/pkg/workflow"
)

// Intent is the classified purpose of a prompt. Exactly one per run.
type Intent string

const (
	IntentNewWorkflow    Intent = "new_workflow"
	IntentModifyWorkflow Intent = "modify_workflow"
	IntentGeneral        Intent = "general"
	IntentUnclear        Intent = "unclear"
)

// ParseIntent maps classifier output onto the closed set. Anything it does
// not recognise is unclear.
func ParseIntent(raw string) Intent {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, "\"'`.")
	switch Intent(s) {
	case IntentNewWorkflow, IntentModifyWorkflow, IntentGeneral, IntentUnclear:
		return Intent(s)
	}
	return IntentUnclear
}

// Interaction is one recorded request/response cycle. Immutable once stored.
type Interaction struct {
	ID           string             `json:"id"`
	SessionID    string             `json:"session_id"`
	Prompt       string             `json:"prompt"`
	Response     string             `json:"response"`
	Workflow     *workflow.Artifact `json:"workflow,omitempty"`
	Intent       Intent             `json:"intent"`
	NextQuestion string             `json:"next_question,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// SessionSnapshot is the state-cache value for a session.
type SessionSnapshot struct {
	SessionID  string             `json:"session_id"`
	History    []Interaction      `json:"history"`
	Workflow   *workflow.Artifact `json:"workflow,omitempty"`
	LastIntent Intent             `json:"last_intent,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// LatestWorkflow returns the most recent workflow recorded in history.
func LatestWorkflow(history []Interaction) *workflow.Artifact {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].Workflow.IsEmpty() {
			return history[i].Workflow
		}
	}
	return nil
}
