package service

import (
	"context"

	"workflow-agent-be/internal/dto"
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/connector"
	"workflow-agent-be/pkg/observe"
	"workflow-agent-be/pkg/store"
	"workflow-agent-be/pkg/workflow"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

type IWorkflowAgentService interface {
	Handle(ctx context.Context, req *dto.HandlePromptRequest) (*agent.Response, error)
	Simulate(ctx context.Context, req *dto.SimulateRequest) (*workflow.SimulationReport, error)
	GetHistory(ctx context.Context, sessionID string) ([]*dto.InteractionResponse, error)
	GetConnectors(ctx context.Context) []*dto.ConnectorResponse
	Health(ctx context.Context) *dto.HealthResponse
}

type SessionHistory interface {
	Load(ctx context.Context, sessionID string) ([]store.Interaction, error)
	Degraded() bool
}

type workflowAgentService struct {
	orchestrator *agent.Orchestrator
	history      SessionHistory
	registry     *connector.Registry
	engine       *workflow.Engine
	stats        *observe.StatsConsumer
	logger       logger.ILogger
}

func NewWorkflowAgentService(
	orchestrator *agent.Orchestrator,
	history SessionHistory,
	registry *connector.Registry,
	engine *workflow.Engine,
	stats *observe.StatsConsumer,
	log logger.ILogger,
) IWorkflowAgentService {
	return &workflowAgentService{
		orchestrator: orchestrator,
		history:      history,
		registry:     registry,
		engine:       engine,
		stats:        stats,
		logger:       log,
	}
}

func (s *workflowAgentService) Handle(ctx context.Context, req *dto.HandlePromptRequest) (*agent.Response, error) {
	res, err := s.orchestrator.Handle(ctx, req.Prompt, req.SessionID)
	if err != nil {
		s.logger.Error("SERVICE", "Prompt handling failed", map[string]interface{}{
			"session_id": req.SessionID,
			"error":      err.Error(),
		})
		return nil, err
	}
	return res, nil
}

// Simulate dry-runs a client supplied workflow. Structural problems show up
// as failed steps rather than as a rejection.
func (s *workflowAgentService) Simulate(ctx context.Context, req *dto.SimulateRequest) (*workflow.SimulationReport, error) {
	nodes, data, err := workflow.ParseArtifact(string(req.Workflow))
	if err != nil {
		return nil, err
	}
	report := s.engine.Simulate(&workflow.Artifact{Structure: nodes, Data: data})
	s.logger.Debug("SERVICE", "Simulated workflow", map[string]interface{}{
		"nodes":  len(nodes),
		"status": report.Status,
	})
	return &report, nil
}

func (s *workflowAgentService) GetHistory(ctx context.Context, sessionID string) ([]*dto.InteractionResponse, error) {
	history, err := s.history.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.InteractionResponse, 0, len(history))
	for _, it := range history {
		result = append(result, &dto.InteractionResponse{
			Id:           it.ID,
			Prompt:       it.Prompt,
			Response:     it.Response,
			Intent:       string(it.Intent),
			NextQuestion: it.NextQuestion,
			Workflow:     it.Workflow,
			CreatedAt:    it.CreatedAt,
		})
	}
	return result, nil
}

func (s *workflowAgentService) GetConnectors(ctx context.Context) []*dto.ConnectorResponse {
	descriptors := s.registry.List()
	result := make([]*dto.ConnectorResponse, 0, len(descriptors))
	for _, d := range descriptors {
		result = append(result, &dto.ConnectorResponse{
			Id:      d.ID,
			Name:    d.Name,
			Kind:    string(d.Kind),
			Aliases: d.Aliases,
			Actions: d.ActionNames(),
		})
	}
	return result
}

func (s *workflowAgentService) Health(ctx context.Context) *dto.HealthResponse {
	res := &dto.HealthResponse{
		Status:          healthOK,
		HistoryDegraded: s.history.Degraded(),
		Stages:          map[string]dto.StageHealthResponse{},
	}
	if res.HistoryDegraded {
		res.Status = healthDegraded
	}
	if s.stats != nil {
		for stage, st := range s.stats.Snapshot() {
			res.Stages[stage] = dto.StageHealthResponse{
				Attempts:  st.Attempts,
				Failures:  st.Failures,
				Retries:   st.Retries,
				AvgMs:     st.AvgMs(),
				MaxMs:     st.MaxMs,
				LastError: st.LastError,
			}
		}
	}
	return res
}
