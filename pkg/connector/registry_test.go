package connector

import (
	"testing"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	r, err := NewDefaultRegistry(logger.NopLogger{})
	require.NoError(t, err)

	tests := []struct {
		query string
		want  string
		found bool
	}{
		{"GitHub", "GitHub", true},
		{"github", "GitHub", true},
		{"GitHub Enterprise", "GitHub", true},
		{"adf1f67b-e369-4701-af47-d9733ef27326", "GitLab", true},
		{" jira ", "Jira", true},
		{"Atlassian-Jira", "Jira", true},
		{"slack", "Slack", true},
		{"teams", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			d, ok := r.Resolve(tt.query)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, d.Name)
			}
		})
	}
}

func TestValidateAction(t *testing.T) {
	r, err := NewDefaultRegistry(logger.NopLogger{})
	require.NoError(t, err)

	tests := []struct {
		name      string
		provider  string
		action    string
		props     map[string]interface{}
		invariant string
		subject   string
	}{
		{name: "trigger without properties", provider: "GitHub", action: "issue_created"},
		{name: "scm base action", provider: "Bitbucket", action: "push", props: map[string]interface{}{"branch": "main"}},
		{name: "optional property omitted", provider: "Jira", action: "create_ticket"},
		{name: "unknown provider", provider: "Teams", action: "send", invariant: "connector_resolves", subject: "Teams"},
		{name: "unsupported action", provider: "Slack", action: "create_ticket", invariant: "action_supported", subject: "Slack.create_ticket"},
		{name: "missing required property", provider: "GitHub", action: "create_issue", invariant: "property_present", subject: "title"},
		{name: "wrong type", provider: "Jira", action: "create_ticket", props: map[string]interface{}{"summary": 12.0}, invariant: "property_well_formed", subject: "summary"},
		{name: "rule violated", provider: "Slack", action: "notify_channel", props: map[string]interface{}{"channel": "alerts"}, invariant: "property_well_formed", subject: "channel"},
		{name: "enum violated", provider: "Jira", action: "create_ticket", props: map[string]interface{}{"priority": "Urgent"}, invariant: "property_well_formed", subject: "priority"},
		{name: "number in range", provider: "ServiceNow", action: "create_incident", props: map[string]interface{}{"urgency": 2.0}},
		{name: "number out of range", provider: "ServiceNow", action: "create_incident", props: map[string]interface{}{"urgency": 7.0}, invariant: "property_well_formed", subject: "urgency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateAction(tt.provider, tt.action, tt.props)
			if tt.invariant == "" {
				assert.NoError(t, err)
				return
			}
			var verr *apperror.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.invariant, verr.Invariant)
			assert.Equal(t, tt.subject, verr.Subject)
		})
	}
}

func TestNewRegistryRejectsKeyClash(t *testing.T) {
	_, err := NewRegistry(logger.NopLogger{},
		Descriptor{ID: "a", Name: "One", Aliases: []string{"shared"}},
		Descriptor{ID: "b", Name: "Two", Aliases: []string{"Shared"}},
	)
	assert.Error(t, err)
}

func TestListKeepsRegistrationOrder(t *testing.T) {
	r, err := NewDefaultRegistry(logger.NopLogger{})
	require.NoError(t, err)
	list := r.List()
	require.NotEmpty(t, list)
	assert.Equal(t, "GitHub", list[0].Name)
	assert.True(t, list[0].Supports("issue_created"))
}
