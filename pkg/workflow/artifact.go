package workflow

import "sort"

// Node kinds in the structure list.
const (
	NodeTypeNormal = "normal"
	NodeTypeBranch = "branch"
)

// Metadata type tags.
const (
	DataTypeSCMAction      = "SCM_ACTION"
	DataTypeExternalSource = "EXTERNAL_SOURCE"
)

const (
	DefaultVersion = "1.0"

	layoutOriginX = 58
	layoutOriginY = 261
	layoutStepX   = 100
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one vertex in the workflow structure.
type Node struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Type     string                 `json:"type"`
	Content  map[string]interface{} `json:"content"`
	Position Position               `json:"position"`
}

type ConnectorRef struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

type Display struct {
	Title string `json:"title,omitempty"`
}

// NodeMetadata carries the typed payload of a node.
type NodeMetadata struct {
	Type       string                 `json:"type"`
	Version    string                 `json:"version"`
	Properties map[string]interface{} `json:"properties"`
	Display    Display                `json:"metadata"`
	Connector  *ConnectorRef          `json:"connector,omitempty"`
	ExternalID string                 `json:"external_id,omitempty"`
}

// Action returns the "action" property, if any.
func (m NodeMetadata) Action() string {
	if m.Properties == nil {
		return ""
	}
	s, _ := m.Properties["action"].(string)
	return s
}

// Artifact is the canonical workflow: an ordered structure plus per-node
// metadata keyed by node id. The two id sets are always a bijection.
type Artifact struct {
	Structure []Node                  `json:"structure"`
	Data      map[string]NodeMetadata `json:"data"`
}

// Patch is a partial artifact applied by Merge.
type Patch struct {
	Structure []Node                  `json:"structure"`
	Data      map[string]NodeMetadata `json:"data"`
}

// IsEmpty reports whether the artifact holds no nodes.
func (a *Artifact) IsEmpty() bool {
	return a == nil || len(a.Structure) == 0
}

// NodeIDs returns structure ids in order.
func (a *Artifact) NodeIDs() []string {
	if a == nil {
		return nil
	}
	ids := make([]string, len(a.Structure))
	for i, n := range a.Structure {
		ids[i] = n.ID
	}
	return ids
}

// Node returns the structure node and its metadata.
func (a *Artifact) Node(id string) (Node, NodeMetadata, bool) {
	if a == nil {
		return Node{}, NodeMetadata{}, false
	}
	for _, n := range a.Structure {
		if n.ID == id {
			return n, a.Data[id], true
		}
	}
	return Node{}, NodeMetadata{}, false
}

// Connectors lists the connector names referenced by the artifact in structure order.
func (a *Artifact) Connectors() []string {
	if a == nil {
		return nil
	}
	var out []string
	for _, n := range a.Structure {
		if m, ok := a.Data[n.ID]; ok && m.Connector != nil {
			out = append(out, m.Connector.Name)
		}
	}
	return out
}

// Clone returns a deep copy; property bags are copied one level down.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	out := &Artifact{
		Structure: make([]Node, len(a.Structure)),
		Data:      make(map[string]NodeMetadata, len(a.Data)),
	}
	for i, n := range a.Structure {
		out.Structure[i] = cloneNode(n)
	}
	for id, m := range a.Data {
		out.Data[id] = cloneMetadata(m)
	}
	return out
}

func cloneNode(n Node) Node {
	n.Content = cloneMap(n.Content)
	return n
}

func cloneMetadata(m NodeMetadata) NodeMetadata {
	m.Properties = cloneMap(m.Properties)
	if m.Connector != nil {
		c := *m.Connector
		m.Connector = &c
	}
	return m
}

func cloneMap(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]NodeMetadata) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
