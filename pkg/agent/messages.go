package agent

import (
	"fmt"
	"regexp"
	"strings"

	"workflow-agent-be/pkg/apperror"
)

const (
	msgGenerated     = "Let's build it! I've created a workflow based on your request."
	msgModified      = "Got it. I've updated the workflow for you."
	msgUnclear       = "I'm not sure what you mean. Can you clarify?"
	msgRepairApology = "Sorry, I couldn't turn that into a valid workflow."

	QuestionAnythingElse = "Anything else to add?"
	QuestionSpecifics    = "What specific actions or conditions do you want?"
	QuestionClarify      = "Can you clarify?"
	QuestionAssist       = "How can I assist you further?"
	QuestionNext         = "What do you want to do next?"
	QuestionGreeting     = "How can I assist you today?"
)

var greetingPattern = regexp.MustCompile(`(?i)my name is (\w+)`)

// greeting answers "my name is X" without a model call.
func greeting(prompt string) (string, bool) {
	m := greetingPattern.FindStringSubmatch(prompt)
	if m == nil {
		return "", false
	}
	name := strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:])
	return fmt.Sprintf("Hi %s! %s", name, QuestionGreeting), true
}

func generalQuestion(prompt string) string {
	if strings.Contains(strings.ToLower(prompt), "start new workflow") {
		return QuestionNext
	}
	return QuestionAssist
}

// RepairInstruction tells the model which rule its previous payload broke.
func RepairInstruction(verr *apperror.ValidationError) string {
	return fmt.Sprintf(
		"Your previous answer was rejected: %s. Return one corrected JSON object with 'structure' and 'data' keys, without markdown.",
		verr.Error(),
	)
}
