// Package workflow validates, assembles and merges workflow artifacts.
package workflow

import (
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/apperror"
)

// ActionValidator is the slice of the connector registry the engine needs.
type ActionValidator interface {
	ValidateAction(provider, action string, properties map[string]interface{}) error
}

type Engine struct {
	connectors ActionValidator
	logger     logger.ILogger
}

func NewEngine(connectors ActionValidator, log logger.ILogger) *Engine {
	return &Engine{connectors: connectors, logger: log}
}

// Assemble builds a canonical artifact from nodes and their metadata.
// It rejects empty input, dangling or duplicate ids, and connector actions
// the registry does not accept.
func (e *Engine) Assemble(nodes []Node, data map[string]NodeMetadata) (*Artifact, error) {
	if len(nodes) == 0 {
		return nil, apperror.Validation("non_empty", "", "workflow has no nodes")
	}

	art := &Artifact{
		Structure: make([]Node, 0, len(nodes)),
		Data:      make(map[string]NodeMetadata, len(nodes)),
	}

	seen := make(map[string]struct{}, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			return nil, apperror.Validation("node_id_present", n.Name, "node at index %d has no id", i)
		}
		if _, dup := seen[n.ID]; dup {
			return nil, apperror.Validation("structure_unique_ids", n.ID, "node id appears more than once in structure")
		}
		seen[n.ID] = struct{}{}

		meta, ok := data[n.ID]
		if !ok {
			return nil, apperror.Validation("data_for_every_node", n.ID, "node has no data entry")
		}

		n = cloneNode(n)
		if n.Type == "" {
			n.Type = NodeTypeNormal
		}
		if n.Name == "" {
			n.Name = n.ID
		}
		if n.Content == nil {
			n.Content = map[string]interface{}{}
		}
		if n.Position == (Position{}) {
			n.Position = Position{X: float64(layoutOriginX + layoutStepX*i), Y: layoutOriginY}
		}

		meta = cloneMetadata(meta)
		if meta.Version == "" {
			meta.Version = DefaultVersion
		}
		if meta.Properties == nil {
			meta.Properties = map[string]interface{}{}
		}
		if err := e.checkConnector(n.ID, meta); err != nil {
			return nil, err
		}

		art.Structure = append(art.Structure, n)
		art.Data[n.ID] = meta
	}

	for _, id := range sortedKeys(data) {
		if _, ok := seen[id]; !ok {
			return nil, apperror.Validation("structure_for_every_data", id, "data entry has no structure node")
		}
	}

	e.logger.Debug("WORKFLOW", "Assembled workflow", map[string]interface{}{
		"nodes":      len(art.Structure),
		"connectors": art.Connectors(),
	})
	return art, nil
}

func (e *Engine) checkConnector(nodeID string, meta NodeMetadata) error {
	if meta.Connector == nil {
		return nil
	}
	if meta.Connector.Name == "" && meta.Connector.ID == "" {
		return apperror.Validation("connector_named", nodeID, "connector reference has neither name nor id")
	}
	action := meta.Action()
	if action == "" {
		return apperror.Validation("action_present", nodeID, "connector node declares no action")
	}
	provider := meta.Connector.Name
	if provider == "" {
		provider = meta.Connector.ID
	}
	if e.connectors == nil {
		return nil
	}
	if err := e.connectors.ValidateAction(provider, action, meta.Properties); err != nil {
		return err
	}
	return nil
}

// Merge applies patch to existing node by node. Patched ids replace the
// existing node, unseen ids are appended, everything else is kept as is.
// The result is re-validated with Assemble.
func (e *Engine) Merge(existing *Artifact, patch Patch) (*Artifact, error) {
	if existing.IsEmpty() {
		return e.Assemble(patch.Structure, patch.Data)
	}
	if len(patch.Structure) == 0 && len(patch.Data) == 0 {
		return nil, apperror.Validation("patch_non_empty", "", "patch changes nothing")
	}

	nodes := make([]Node, len(existing.Structure))
	copy(nodes, existing.Structure)
	data := make(map[string]NodeMetadata, len(existing.Data)+len(patch.Data))
	for id, m := range existing.Data {
		data[id] = m
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	patched := make(map[string]struct{}, len(patch.Structure))
	var appended, replaced int
	for _, n := range patch.Structure {
		if n.ID == "" {
			return nil, apperror.Validation("node_id_present", n.Name, "patch node has no id")
		}
		if _, dup := patched[n.ID]; dup {
			return nil, apperror.Validation("structure_unique_ids", n.ID, "patch lists node more than once")
		}
		patched[n.ID] = struct{}{}

		if i, ok := index[n.ID]; ok {
			if n.Position == (Position{}) {
				n.Position = nodes[i].Position
			}
			nodes[i] = n
			replaced++
		} else {
			index[n.ID] = len(nodes)
			nodes = append(nodes, n)
			appended++
		}
	}

	for id, m := range patch.Data {
		if _, ok := index[id]; !ok {
			return nil, apperror.Validation("structure_for_every_data", id, "patch data entry has no structure node")
		}
		data[id] = m
	}

	e.logger.Debug("WORKFLOW", "Merging patch", map[string]interface{}{
		"existing": len(existing.Structure),
		"replaced": replaced,
		"appended": appended,
	})
	return e.Assemble(nodes, data)
}
