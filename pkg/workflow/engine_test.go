package workflow

import (
	"encoding/json"
	"testing"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/apperror"
	"workflow-agent-be/pkg/connector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleWorkflowJSON = `{
  "structure": [
    {"id": "node-1", "name": "github-issue-created", "type": "normal", "content": {}, "position": {"x": 58, "y": 261}},
    {"id": "node-2", "name": "jira-create-ticket", "type": "normal", "content": {}, "position": {"x": 158, "y": 261}}
  ],
  "data": [
    {"id": "node-1", "name": "github-issue-created", "type": "SCM_ACTION", "version": "1.0",
     "properties": {"action": "issue_created"},
     "metadata": {"title": "GitHub Issue Created", "connector": {"name": "GitHub"}},
     "scm_id": "5c3f2a4e-8d0b-4b0e-9a63-1f6c2d9e7a10"},
    {"id": "node-2", "name": "jira-create-ticket", "type": "EXTERNAL_SOURCE", "version": 1.0,
     "properties": {"action": "create_ticket"},
     "metadata": {"title": "Jira Create Ticket", "connector": {"name": "Jira"}},
     "ticketing_id": "ticket-jira-placeholder"}
  ]
}`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	registry, err := connector.NewDefaultRegistry(logger.NopLogger{})
	require.NoError(t, err)
	return NewEngine(registry, logger.NopLogger{})
}

func assembleSample(t *testing.T, e *Engine) *Artifact {
	t.Helper()
	nodes, data, err := ParseArtifact(sampleWorkflowJSON)
	require.NoError(t, err)
	art, err := e.Assemble(nodes, data)
	require.NoError(t, err)
	return art
}

func requireInvariant(t *testing.T, err error, invariant string) {
	t.Helper()
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, invariant, verr.Invariant)
}

func assertBijection(t *testing.T, a *Artifact) {
	t.Helper()
	ids := map[string]int{}
	for _, n := range a.Structure {
		ids[n.ID]++
	}
	assert.Len(t, a.Data, len(ids))
	for id, count := range ids {
		assert.Equal(t, 1, count, "structure id %s", id)
		_, ok := a.Data[id]
		assert.True(t, ok, "data missing %s", id)
	}
}

func TestAssembleSample(t *testing.T) {
	art := assembleSample(t, newTestEngine(t))

	assert.Equal(t, []string{"node-1", "node-2"}, art.NodeIDs())
	assert.Equal(t, []string{"GitHub", "Jira"}, art.Connectors())
	assert.Equal(t, "1.0", art.Data["node-2"].Version)
	assert.Equal(t, "ticket-jira-placeholder", art.Data["node-2"].ExternalID)
	assertBijection(t, art)
}

func TestAssembleRejectsBrokenBijection(t *testing.T) {
	e := newTestEngine(t)
	meta := NodeMetadata{Type: DataTypeExternalSource}

	tests := []struct {
		name      string
		nodes     []Node
		data      map[string]NodeMetadata
		invariant string
	}{
		{"empty", nil, nil, "non_empty"},
		{"missing id", []Node{{Name: "x"}}, map[string]NodeMetadata{}, "node_id_present"},
		{"duplicate structure id", []Node{{ID: "a"}, {ID: "a"}}, map[string]NodeMetadata{"a": meta}, "structure_unique_ids"},
		{"dangling structure id", []Node{{ID: "a"}, {ID: "b"}}, map[string]NodeMetadata{"a": meta}, "data_for_every_node"},
		{"dangling data id", []Node{{ID: "a"}}, map[string]NodeMetadata{"a": meta, "z": meta}, "structure_for_every_data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Assemble(tt.nodes, tt.data)
			requireInvariant(t, err, tt.invariant)
		})
	}
}

func TestAssembleChecksConnectors(t *testing.T) {
	e := newTestEngine(t)
	nodes := []Node{{ID: "n1"}}

	_, err := e.Assemble(nodes, map[string]NodeMetadata{"n1": {Connector: &ConnectorRef{Name: "GitHub"}}})
	requireInvariant(t, err, "action_present")

	_, err = e.Assemble(nodes, map[string]NodeMetadata{"n1": {
		Connector:  &ConnectorRef{Name: "Teams"},
		Properties: map[string]interface{}{"action": "send"},
	}})
	requireInvariant(t, err, "connector_resolves")

	_, err = e.Assemble(nodes, map[string]NodeMetadata{"n1": {
		Connector:  &ConnectorRef{Name: "Slack"},
		Properties: map[string]interface{}{"action": "notify_channel"},
	}})
	requireInvariant(t, err, "property_present")
}

func TestAssembleFillsDefaults(t *testing.T) {
	art, err := newTestEngine(t).Assemble(
		[]Node{{ID: "a"}, {ID: "b"}},
		map[string]NodeMetadata{"a": {}, "b": {}},
	)
	require.NoError(t, err)

	assert.Equal(t, NodeTypeNormal, art.Structure[0].Type)
	assert.Equal(t, "a", art.Structure[0].Name)
	assert.Equal(t, Position{X: 58, Y: 261}, art.Structure[0].Position)
	assert.Equal(t, Position{X: 158, Y: 261}, art.Structure[1].Position)
	assert.Equal(t, DefaultVersion, art.Data["b"].Version)
	assert.NotNil(t, art.Data["b"].Properties)
}

func TestMergeKeepsUnpatchedNodes(t *testing.T) {
	e := newTestEngine(t)
	existing := assembleSample(t, e)
	before := existing.Clone()

	patch := Patch{
		Structure: []Node{{ID: "node-3", Name: "slack-notify"}},
		Data: map[string]NodeMetadata{"node-3": {
			Type:       DataTypeExternalSource,
			Connector:  &ConnectorRef{Name: "Slack"},
			Properties: map[string]interface{}{"action": "send_message", "channel": "#alerts"},
		}},
	}

	merged, err := e.Merge(existing, patch)
	require.NoError(t, err)

	assert.Equal(t, []string{"node-1", "node-2", "node-3"}, merged.NodeIDs())
	for _, id := range before.NodeIDs() {
		wantNode, wantMeta, _ := before.Node(id)
		gotNode, gotMeta, ok := merged.Node(id)
		require.True(t, ok)
		assert.Equal(t, wantNode, gotNode)
		assert.Equal(t, wantMeta, gotMeta)
	}
	assert.Equal(t, Position{X: 258, Y: 261}, merged.Structure[2].Position)
	assertBijection(t, merged)
	assert.Equal(t, before, existing, "merge must not mutate its input")
}

func TestMergeReplacesPatchedNodeWholesale(t *testing.T) {
	e := newTestEngine(t)
	existing := assembleSample(t, e)

	merged, err := e.Merge(existing, Patch{
		Structure: []Node{{ID: "node-2", Name: "jira-update-ticket"}},
		Data: map[string]NodeMetadata{"node-2": {
			Type:       DataTypeExternalSource,
			Connector:  &ConnectorRef{Name: "Jira"},
			Properties: map[string]interface{}{"action": "update_ticket", "ticket": "OPS-1"},
		}},
	})
	require.NoError(t, err)

	node, meta, ok := merged.Node("node-2")
	require.True(t, ok)
	assert.Equal(t, "jira-update-ticket", node.Name)
	assert.Equal(t, Position{X: 158, Y: 261}, node.Position, "position carried over when patch omits it")
	assert.Equal(t, "update_ticket", meta.Action())
	assert.Len(t, merged.Structure, 2)
}

func TestMergeStructureOnlyKeepsExistingData(t *testing.T) {
	e := newTestEngine(t)
	existing := assembleSample(t, e)

	merged, err := e.Merge(existing, Patch{Structure: []Node{{ID: "node-1", Name: "renamed"}}})
	require.NoError(t, err)

	_, meta, _ := merged.Node("node-1")
	assert.Equal(t, existing.Data["node-1"], meta)
}

func TestMergeRejectsInvalidPatch(t *testing.T) {
	e := newTestEngine(t)
	existing := assembleSample(t, e)

	_, err := e.Merge(existing, Patch{})
	requireInvariant(t, err, "patch_non_empty")

	_, err = e.Merge(existing, Patch{Data: map[string]NodeMetadata{"ghost": {}}})
	requireInvariant(t, err, "structure_for_every_data")

	_, err = e.Merge(existing, Patch{Structure: []Node{{ID: "node-9"}}})
	requireInvariant(t, err, "data_for_every_node")
}

func TestMergeOntoEmptyAssembles(t *testing.T) {
	e := newTestEngine(t)
	nodes, data, err := ParseArtifact(sampleWorkflowJSON)
	require.NoError(t, err)

	merged, err := e.Merge(nil, Patch{Structure: nodes, Data: data})
	require.NoError(t, err)
	assert.Len(t, merged.Structure, 2)
}

func TestParseArtifactShapes(t *testing.T) {
	fenced := "Here you go:\n```json\n" + sampleWorkflowJSON + "\n```"
	nodes, data, err := ParseArtifact(fenced)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Equal(t, "GitHub", data["node-1"].Connector.Name)

	byName := `{"structure":[{"id":"n1","name":"first"}],"data":[{"name":"first","type":"EXTERNAL_SOURCE"}]}`
	_, data, err = ParseArtifact(byName)
	require.NoError(t, err)
	assert.Equal(t, DataTypeExternalSource, data["n1"].Type)

	object := `{"structure":[{"id":"n1"}],"data":{"n1":{"type":"SCM_ACTION","connector":{"name":"GitLab"}}}}`
	_, data, err = ParseArtifact(object)
	require.NoError(t, err)
	assert.Equal(t, "GitLab", data["n1"].Connector.Name)

	_, _, err = ParseArtifact("I need more details, what should happen?")
	requireInvariant(t, err, "payload_parseable")

	_, _, err = ParseArtifact(`{"structure":[],"data":[]}`)
	requireInvariant(t, err, "non_empty")

	_, _, err = ParseArtifact(`{"structure":[{"id":"n1"}],"data":[{"name":"unknown"}]}`)
	requireInvariant(t, err, "node_id_present")
}

func TestArtifactJSONIsStable(t *testing.T) {
	art := assembleSample(t, newTestEngine(t))
	a, err := json.Marshal(art)
	require.NoError(t, err)
	b, err := json.Marshal(art.Clone())
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	var back Artifact
	require.NoError(t, json.Unmarshal(a, &back))
	assert.Equal(t, art.NodeIDs(), back.NodeIDs())
}

func TestSimulate(t *testing.T) {
	e := newTestEngine(t)
	art := assembleSample(t, e)

	report := e.Simulate(art)
	assert.Equal(t, RunCompleted, report.Status)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, StepValidated, report.Steps[0].Status)
	assert.Equal(t, StepTriggered, report.Steps[1].Status)

	broken := art.Clone()
	delete(broken.Data, "node-2")
	report = e.Simulate(broken)
	assert.Equal(t, RunFailed, report.Status)
	assert.Equal(t, "no matching data", report.Steps[1].Detail)

	branch := &Artifact{
		Structure: []Node{{ID: "b", Type: NodeTypeBranch}, {ID: "x", Type: NodeTypeNormal}},
		Data:      map[string]NodeMetadata{"b": {}, "x": {Type: "UNKNOWN"}},
	}
	report = e.Simulate(branch)
	assert.Equal(t, StepBranched, report.Steps[0].Status)
	assert.Equal(t, StepFailed, report.Steps[1].Status)
	assert.Equal(t, RunFailed, report.Status)

	assert.Equal(t, RunFailed, e.Simulate(nil).Status)
}
