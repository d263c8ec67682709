package dto

import (
	"encoding/json"
	"time"

	"workflow-agent-be/pkg/workflow"
)

type HandlePromptRequest struct {
	Prompt    string `json:"prompt" validate:"max=8000"`
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
}

type SimulateRequest struct {
	Workflow json.RawMessage `json:"workflow" validate:"required"`
}

type InteractionResponse struct {
	Id           string             `json:"id"`
	Prompt       string             `json:"prompt"`
	Response     string             `json:"response"`
	Intent       string             `json:"intent"`
	NextQuestion string             `json:"next_question,omitempty"`
	Workflow     *workflow.Artifact `json:"workflow,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

type ConnectorResponse struct {
	Id      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Aliases []string `json:"aliases,omitempty"`
	Actions []string `json:"actions"`
}

type StageHealthResponse struct {
	Attempts  int64   `json:"attempts"`
	Failures  int64   `json:"failures"`
	Retries   int64   `json:"retries"`
	AvgMs     float64 `json:"avg_ms"`
	MaxMs     float64 `json:"max_ms"`
	LastError string  `json:"last_error,omitempty"`
}

type HealthResponse struct {
	Status          string                         `json:"status"`
	HistoryDegraded bool                           `json:"history_degraded"`
	Stages          map[string]StageHealthResponse `json:"stages"`
}
