package connector

var scmBase = map[string]ActionSchema{
	"commit": {Properties: map[string]PropertySpec{
		"branch":  {Type: TypeString, Rule: "max=255"},
		"message": {Type: TypeString, Rule: "max=1024"},
	}},
	"push": {Properties: map[string]PropertySpec{
		"branch": {Type: TypeString, Rule: "max=255"},
	}},
	"pull_request": {Properties: map[string]PropertySpec{
		"base": {Type: TypeString, Rule: "max=255"},
		"head": {Type: TypeString, Rule: "max=255"},
	}},
}

func withSCMBase(extra map[string]ActionSchema) map[string]ActionSchema {
	out := make(map[string]ActionSchema, len(scmBase)+len(extra))
	for k, v := range scmBase {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// DefaultCatalog is the provider table shipped with the service.
func DefaultCatalog() []Descriptor {
	return []Descriptor{
		{
			ID:      "5c3f2a4e-8d0b-4b0e-9a63-1f6c2d9e7a10",
			Name:    "GitHub",
			Kind:    KindSCM,
			Aliases: []string{"github enterprise", "gh"},
			Actions: withSCMBase(map[string]ActionSchema{
				"issue_created":       {Trigger: true},
				"pull_request_opened": {Trigger: true},
				"push_received":       {Trigger: true},
				"create_issue": {Properties: map[string]PropertySpec{
					"title":      {Type: TypeString, Required: true, Rule: "min=1,max=256"},
					"repository": {Type: TypeString, Rule: "max=255"},
				}},
				"comment_issue": {Properties: map[string]PropertySpec{
					"body": {Type: TypeString, Required: true, Rule: "min=1"},
				}},
			}),
		},
		{
			ID:      "adf1f67b-e369-4701-af47-d9733ef27326",
			Name:    "GitLab",
			Kind:    KindSCM,
			Aliases: []string{"gitlab ce", "gitlab ee"},
			Actions: withSCMBase(map[string]ActionSchema{
				"merge_request_opened": {Trigger: true},
				"issue_created":        {Trigger: true},
			}),
		},
		{
			ID:      "9e1d7c52-43a8-4f6b-8c0e-2b5a6f3d1c84",
			Name:    "Bitbucket",
			Kind:    KindSCM,
			Aliases: []string{"bitbucket cloud"},
			Actions: withSCMBase(map[string]ActionSchema{
				"pull_request_opened": {Trigger: true},
				"push_received":       {Trigger: true},
			}),
		},
		{
			ID:      "ticket-jira",
			Name:    "Jira",
			Kind:    KindTicketing,
			Aliases: []string{"atlassian jira", "jira cloud"},
			Actions: map[string]ActionSchema{
				"issue_created": {Trigger: true},
				"create_ticket": {Properties: map[string]PropertySpec{
					"project":  {Type: TypeString, Rule: "max=32"},
					"summary":  {Type: TypeString, Rule: "max=255"},
					"priority": {Type: TypeString, Rule: "omitempty,oneof=Highest High Medium Low Lowest"},
				}},
				"update_ticket": {Properties: map[string]PropertySpec{
					"ticket": {Type: TypeString, Required: true, Rule: "min=1"},
				}},
				"transition_ticket": {Properties: map[string]PropertySpec{
					"status": {Type: TypeString, Required: true, Rule: "min=1"},
				}},
			},
		},
		{
			ID:      "ticket-servicenow",
			Name:    "ServiceNow",
			Kind:    KindTicketing,
			Aliases: []string{"snow"},
			Actions: map[string]ActionSchema{
				"create_incident": {Properties: map[string]PropertySpec{
					"urgency": {Type: TypeNumber, Rule: "min=1,max=3"},
				}},
			},
		},
		{
			ID:      "msg-slack",
			Name:    "Slack",
			Kind:    KindMessaging,
			Actions: map[string]ActionSchema{
				"send_message": {Properties: map[string]PropertySpec{
					"channel": {Type: TypeString, Rule: "omitempty,startswith=#"},
					"text":    {Type: TypeString, Rule: "max=4000"},
				}},
				"notify_channel": {Properties: map[string]PropertySpec{
					"channel": {Type: TypeString, Required: true, Rule: "startswith=#"},
				}},
			},
		},
	}
}
