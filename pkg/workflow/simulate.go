package workflow

import "strings"

const (
	StepTriggered = "triggered"
	StepValidated = "validated"
	StepBranched  = "branched"
	StepFailed    = "failed"

	RunCompleted = "completed"
	RunFailed    = "failed"
)

type StepResult struct {
	NodeID string `json:"node_id"`
	Node   string `json:"node"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type SimulationReport struct {
	Status string       `json:"status"`
	Steps  []StepResult `json:"steps"`
}

// Simulate walks the structure in order without calling any provider.
// Triggers fire, connector actions are checked against the registry and
// branch nodes always take their first branch. A node without data stops
// the walk.
func (e *Engine) Simulate(a *Artifact) SimulationReport {
	report := SimulationReport{Status: RunCompleted, Steps: []StepResult{}}
	if a.IsEmpty() {
		report.Status = RunFailed
		return report
	}

	for _, n := range a.Structure {
		step := StepResult{NodeID: n.ID, Node: n.Name, Type: strings.ToUpper(n.Type)}
		meta, ok := a.Data[n.ID]
		if !ok {
			step.Status = StepFailed
			step.Detail = "no matching data"
			report.Steps = append(report.Steps, step)
			report.Status = RunFailed
			return report
		}

		switch {
		case strings.EqualFold(n.Type, NodeTypeBranch):
			step.Status = StepBranched
			step.Detail = "branched to true"
		case meta.Type == DataTypeExternalSource:
			step.Status = StepTriggered
		case meta.Type == DataTypeSCMAction:
			step.Status = StepValidated
			if err := e.checkConnector(n.ID, meta); err != nil {
				step.Status = StepFailed
				step.Detail = err.Error()
				report.Status = RunFailed
			}
		default:
			step.Status = StepFailed
			step.Detail = "invalid node type"
			report.Status = RunFailed
		}
		report.Steps = append(report.Steps, step)
	}

	e.logger.Info("WORKFLOW", "Simulated workflow", map[string]interface{}{
		"status": report.Status,
		"steps":  len(report.Steps),
	})
	return report
}
