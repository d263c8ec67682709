package workflow

import (
	"bytes"
	"encoding/json"
	"strings"

	"workflow-agent-be/pkg/apperror"
)

// rawMetadata accepts both the canonical shape and the looser shape models
// tend to emit (connector nested under metadata, scm_id / ticketing_id).
type rawMetadata struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Version    json.RawMessage        `json:"version"`
	Properties map[string]interface{} `json:"properties"`
	Metadata   struct {
		Title     string        `json:"title"`
		Connector *ConnectorRef `json:"connector"`
	} `json:"metadata"`
	Connector   *ConnectorRef `json:"connector"`
	ExternalID  string        `json:"external_id"`
	SCMID       string        `json:"scm_id"`
	TicketingID string        `json:"ticketing_id"`
}

type rawArtifact struct {
	Structure []Node          `json:"structure"`
	Data      json.RawMessage `json:"data"`
}

// ExtractJSON strips markdown fences and surrounding prose from model output.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)
	if i := strings.Index(response, "```json"); i >= 0 {
		response = response[i+len("```json"):]
	} else if i := strings.Index(response, "```"); i >= 0 {
		response = response[i+3:]
	}
	if i := strings.LastIndex(response, "```"); i >= 0 {
		response = response[:i]
	}
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		response = response[start : end+1]
	}
	return response
}

// ParseArtifact decodes a generation payload into nodes and metadata.
func ParseArtifact(raw string) ([]Node, map[string]NodeMetadata, error) {
	var ra rawArtifact
	payload := ExtractJSON(raw)
	if err := json.Unmarshal([]byte(payload), &ra); err != nil {
		return nil, nil, apperror.Validation("payload_parseable", "", "response is not a workflow JSON object: %v", err)
	}
	if len(ra.Structure) == 0 {
		return nil, nil, apperror.Validation("non_empty", "structure", "payload has no structure nodes")
	}
	data, err := decodeData(ra.Data, ra.Structure)
	if err != nil {
		return nil, nil, err
	}
	return ra.Structure, data, nil
}

// ParsePatch decodes a modification payload. Both keys may be partial.
func ParsePatch(raw string) (Patch, error) {
	var ra rawArtifact
	payload := ExtractJSON(raw)
	if err := json.Unmarshal([]byte(payload), &ra); err != nil {
		return Patch{}, apperror.Validation("payload_parseable", "", "response is not a workflow JSON object: %v", err)
	}
	data, err := decodeData(ra.Data, ra.Structure)
	if err != nil {
		return Patch{}, err
	}
	return Patch{Structure: ra.Structure, Data: data}, nil
}

func decodeData(raw json.RawMessage, structure []Node) (map[string]NodeMetadata, error) {
	out := map[string]NodeMetadata{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}

	switch trimmed[0] {
	case '[':
		var list []rawMetadata
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, apperror.Validation("payload_parseable", "data", "data list is malformed: %v", err)
		}
		byName := make(map[string]string, len(structure))
		for _, n := range structure {
			byName[n.Name] = n.ID
		}
		for i, rm := range list {
			id := rm.ID
			if id == "" {
				id = byName[rm.Name]
			}
			if id == "" {
				return nil, apperror.Validation("node_id_present", rm.Name, "data entry %d cannot be matched to a node", i)
			}
			if _, dup := out[id]; dup {
				return nil, apperror.Validation("data_unique_ids", id, "data lists node more than once")
			}
			out[id] = rm.normalize()
		}
	case '{':
		var byID map[string]rawMetadata
		if err := json.Unmarshal(trimmed, &byID); err != nil {
			return nil, apperror.Validation("payload_parseable", "data", "data object is malformed: %v", err)
		}
		for id, rm := range byID {
			out[id] = rm.normalize()
		}
	default:
		return nil, apperror.Validation("payload_parseable", "data", "data must be a list or an object")
	}
	return out, nil
}

func (rm rawMetadata) normalize() NodeMetadata {
	m := NodeMetadata{
		Type:       rm.Type,
		Version:    strings.Trim(string(bytes.TrimSpace(rm.Version)), `"`),
		Properties: rm.Properties,
		Display:    Display{Title: rm.Metadata.Title},
		Connector:  rm.Connector,
		ExternalID: rm.ExternalID,
	}
	if m.Connector == nil {
		m.Connector = rm.Metadata.Connector
	}
	if m.ExternalID == "" {
		m.ExternalID = rm.SCMID
	}
	if m.ExternalID == "" {
		m.ExternalID = rm.TicketingID
	}
	if m.Version == "null" {
		m.Version = ""
	}
	return m
}
