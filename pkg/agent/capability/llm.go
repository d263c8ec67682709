// Package capability implements the orchestrator's model-facing
// collaborators on top of an llm.LLMProvider and the connector index.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"workflow-agent-be/internal/constant"
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/agent"
	"workflow-agent-be/pkg/llm"
	"workflow-agent-be/pkg/retry"
	"workflow-agent-be/pkg/store"
	"workflow-agent-be/pkg/workflow"
)

const (
	noHistory  = "No previous conversation"
	noContext  = "No connector context"
	noWorkflow = "No workflow has been built yet"

	// historyTurns bounds how many prior turns are rendered into a prompt.
	historyTurns = 5
)

// Retryable is the retry predicate for model calls: provider rejections such
// as a bad request or an unknown model are final.
func Retryable(err error) bool {
	return retry.DefaultRetryable(err) && !llm.IsPermanent(err)
}

var (
	_ agent.Classifier = (*LLMClassifier)(nil)
	_ agent.Generator  = (*LLMGenerator)(nil)
	_ agent.Modifier   = (*LLMGenerator)(nil)
	_ agent.Responder  = (*LLMResponder)(nil)
)

// LLMClassifier asks the model for one of the four intents.
type LLMClassifier struct {
	llm    llm.LLMProvider
	logger logger.ILogger
}

func NewLLMClassifier(provider llm.LLMProvider, log logger.ILogger) *LLMClassifier {
	return &LLMClassifier{llm: provider, logger: log}
}

func (c *LLMClassifier) Classify(ctx context.Context, req agent.ClassificationRequest) (store.Intent, error) {
	text := fmt.Sprintf(constant.ClassifyIntentPromptV1, req.Prompt, renderHistory(req.History), renderWorkflow(req.Existing), renderContext(req.Context))
	out, err := c.llm.Generate(ctx, text, llm.WithTemperature(0), llm.WithMaxTokens(16))
	if err != nil {
		return "", err
	}
	intent := store.ParseIntent(firstLine(out))
	c.logger.Debug("CAPABILITY", "Classified prompt", map[string]interface{}{
		"raw":    truncate(out, 40),
		"intent": string(intent),
	})
	return intent, nil
}

// LLMGenerator builds new workflows and patches for existing ones.
type LLMGenerator struct {
	llm    llm.LLMProvider
	logger logger.ILogger
}

func NewLLMGenerator(provider llm.LLMProvider, log logger.ILogger) *LLMGenerator {
	return &LLMGenerator{llm: provider, logger: log}
}

func (g *LLMGenerator) Generate(ctx context.Context, req agent.GenerationRequest) (string, error) {
	text := fmt.Sprintf(constant.GenerateWorkflowPromptV1, req.Prompt, renderHistory(req.History), renderContext(req.Context))
	return g.call(ctx, text, req.Repair)
}

func (g *LLMGenerator) Modify(ctx context.Context, req agent.GenerationRequest) (string, error) {
	if req.Existing.IsEmpty() {
		return "", errors.New("modify called without an existing workflow")
	}
	existing, err := json.MarshalIndent(req.Existing, "", "  ")
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf(constant.ModifyWorkflowPromptV1, req.Prompt, existing, renderHistory(req.History), renderContext(req.Context))
	return g.call(ctx, text, req.Repair)
}

func (g *LLMGenerator) call(ctx context.Context, text, repair string) (string, error) {
	if repair != "" {
		text += fmt.Sprintf(constant.RepairSuffixV1, repair)
	}
	out, err := g.llm.Generate(ctx, text, llm.WithTemperature(0.2), llm.WithJSON())
	if err != nil {
		return "", err
	}
	return workflow.ExtractJSON(out), nil
}

// LLMResponder writes the conversational replies of the fallback states.
type LLMResponder struct {
	llm    llm.LLMProvider
	logger logger.ILogger
}

func NewLLMResponder(provider llm.LLMProvider, log logger.ILogger) *LLMResponder {
	return &LLMResponder{llm: provider, logger: log}
}

func (r *LLMResponder) Respond(ctx context.Context, req agent.ResponseRequest) (string, error) {
	system := constant.RespondSystemPromptV1
	if req.Clarify {
		system = constant.ClarifySystemPromptV1
	}
	if len(req.Context) > 0 {
		system += "\n\n" + fmt.Sprintf(constant.ResponseContextV1, renderContext(req.Context))
	}
	if req.Problem != "" {
		system += "\n\n" + fmt.Sprintf(constant.ResponseProblemV1, req.Problem)
	}

	messages := []llm.Message{{Role: constant.ChatMessageRoleSystem, Content: system}}
	for _, it := range tail(req.History, historyTurns) {
		messages = append(messages,
			llm.Message{Role: constant.ChatMessageRoleUser, Content: it.Prompt},
			llm.Message{Role: constant.ChatMessageRoleAssistant, Content: it.Response},
		)
	}
	messages = append(messages, llm.Message{Role: constant.ChatMessageRoleUser, Content: req.Prompt})

	out, err := r.llm.Chat(ctx, messages, llm.WithTemperature(0.7))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func renderHistory(history []store.Interaction) string {
	turns := tail(history, historyTurns)
	if len(turns) == 0 {
		return noHistory
	}
	var b strings.Builder
	for _, it := range turns {
		fmt.Fprintf(&b, "user: %s\nassistant: %s\n", it.Prompt, it.Response)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderWorkflow lists the node names of the current workflow, which is
// enough for the classifier to tell a follow-up from a new request.
func renderWorkflow(art *workflow.Artifact) string {
	if art.IsEmpty() {
		return noWorkflow
	}
	names := make([]string, 0, len(art.Structure))
	for _, n := range art.Structure {
		names = append(names, fmt.Sprintf("%s (%s)", n.ID, n.Name))
	}
	return strings.Join(names, "\n")
}

func renderContext(snippets []string) string {
	if len(snippets) == 0 {
		return noContext
	}
	return strings.Join(snippets, "\n")
}

func tail(history []store.Interaction, n int) []store.Interaction {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
