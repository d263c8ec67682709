package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// ClassifyIntentPromptV1 placeholders: prompt, history, current workflow, context.
	ClassifyIntentPromptV1 = `Classify the user's intent from the prompt, the conversation history and the connector context.

Options:
- new_workflow: the user wants a specific new workflow (e.g. "create a workflow for Jira").
- modify_workflow: the user wants to change the workflow built earlier in this conversation (e.g. "add a step", "also notify on Slack").
- general: the user asks a question, wants information, or wants to start over without specifics (e.g. "start new workflow", "what providers are there").
- unclear: the intent cannot be determined.

Rules:
- "create" implies new_workflow. "start" without "create" implies general.
- A prompt that mentions a workflow without a creation or change request is general.
- A follow-up that adds to or changes the current workflow ("also ...", "add ...", "instead ...") is modify_workflow.
- Answer with exactly one of: new_workflow, modify_workflow, general, unclear. No other text.

<prompt>
%s
</prompt>

<history>
%s
</history>

<current_workflow>
%s
</current_workflow>

<context>
%s
</context>`

	// GenerateWorkflowPromptV1 placeholders: prompt, history, context.
	GenerateWorkflowPromptV1 = `Generate a workflow JSON object for the user's request.

Rules:
- Identify the SCM providers (GitHub, GitLab, Bitbucket), ticketing systems (Jira, ServiceNow) and messaging tools (Slack) in the request.
- "structure" is a list of nodes: id ("node-1", "node-2", ...), name (lowercase, hyphenated), type ("normal", or "branch" for conditional logic), content ({}), position (x starts at 58 and grows by 100, y is 261).
- "data" is a list with one entry per node: id (same as the node), type ("SCM_ACTION" for SCM providers, "EXTERNAL_SOURCE" otherwise), version "1.0", properties (must contain "action"), metadata (title and connector {"name": <provider>}).
- Use the provider ids from the context as "scm_id" for SCM providers and "ticketing_id" for ticketing systems.
- Return only the JSON object with "structure" and "data" keys, without markdown.

<prompt>
%s
</prompt>

<history>
%s
</history>

<context>
%s
</context>`

	// ModifyWorkflowPromptV1 placeholders: prompt, existing workflow, history, context.
	ModifyWorkflowPromptV1 = `Change the existing workflow according to the user's request.

Rules:
- Return only the nodes that are new or changed, as a JSON object with "structure" and "data" keys.
- A changed node keeps its id and is returned complete. New nodes get the next free id ("node-N").
- Nodes you do not return are kept as they are; never return an empty object.
- Every returned "data" entry needs a "structure" node with the same id.
- Return only the JSON object, without markdown.

<prompt>
%s
</prompt>

<existing_workflow>
%s
</existing_workflow>

<history>
%s
</history>

<context>
%s
</context>`

	// RepairSuffixV1 placeholder: the rejection.
	RepairSuffixV1 = `

<correction>
%s
</correction>`

	RespondSystemPromptV1 = `You are a workflow automation assistant. You help users design workflows that connect SCM providers, ticketing systems and messaging tools.
- If the user wants to start a workflow without specifics, ask for the systems and the trigger.
- If the user asks about providers, answer from the context.
- Keep answers short, friendly and conversational. Plain text only.`

	ClarifySystemPromptV1 = `You are a workflow automation assistant. The user's last message could not be understood as a workflow request.
Ask one short question that would let you build the workflow, such as which systems to connect or what should trigger it. Plain text only.`

	// ResponseContextV1 placeholder: context.
	ResponseContextV1 = `Connector context:
%s`

	// ResponseProblemV1 placeholder: what went wrong.
	ResponseProblemV1 = `Note: %s. Apologise briefly and ask for the missing details.`
)
