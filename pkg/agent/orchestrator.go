// Package agent runs the intent state machine: classify the prompt, route it
// to generation, modification or a conversational fallback, then record the
// turn. One run handles one request and never loops back into Classify.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/apperror"
	"workflow-agent-be/pkg/retry"
	"workflow-agent-be/pkg/store"
	"workflow-agent-be/pkg/workflow"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRepairs is how many times a rejected payload is sent back to the model.
const MaxRepairs = 1

// Policies holds the retry budget of each capability stage.
type Policies struct {
	Classification retry.Policy
	Generation     retry.Policy
	Retrieval      retry.Policy
}

// Dependencies wires an Orchestrator. Retriever and Cache are optional.
type Dependencies struct {
	Classifier Classifier
	Retriever  Retriever
	Generator  Generator
	Modifier   Modifier
	Responder  Responder
	Engine     *workflow.Engine
	History    HistoryStore
	Cache      ResponseCache
	Policies   Policies
	Tracer     trace.Tracer
	Logger     logger.ILogger
	Now        func() time.Time
	NewID      func() string
}

// Response is the envelope returned to callers.
type Response struct {
	Conversation  string             `json:"conversation"`
	SessionID     string             `json:"session_id"`
	Workflow      *workflow.Artifact `json:"workflow,omitempty"`
	NextQuestion  string             `json:"next_question,omitempty"`
	InteractionID string             `json:"interaction_id"`
	Intent        store.Intent       `json:"intent"`

	Cached   bool `json:"-"`
	Degraded bool `json:"-"`
}

// Envelope projects a recorded interaction onto the response envelope. Fresh
// and cached answers both go through it so they serialize identically.
func Envelope(it store.Interaction) *Response {
	return &Response{
		Conversation:  it.Response,
		SessionID:     it.SessionID,
		Workflow:      it.Workflow,
		NextQuestion:  it.NextQuestion,
		InteractionID: it.ID,
		Intent:        it.Intent,
	}
}

type step func(ctx context.Context, st *AgentState) (State, error)

type Orchestrator struct {
	classifier Classifier
	retriever  Retriever
	generator  Generator
	modifier   Modifier
	responder  Responder
	engine     *workflow.Engine
	history    HistoryStore
	cache      ResponseCache
	policies   Policies
	tracer     trace.Tracer
	logger     logger.ILogger
	now        func() time.Time
	newID      func() string

	steps map[State]step
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		classifier: deps.Classifier,
		retriever:  deps.Retriever,
		generator:  deps.Generator,
		modifier:   deps.Modifier,
		responder:  deps.Responder,
		engine:     deps.Engine,
		history:    deps.History,
		cache:      deps.Cache,
		policies:   deps.Policies,
		tracer:     deps.Tracer,
		logger:     deps.Logger,
		now:        deps.Now,
		newID:      deps.NewID,
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("workflow-agent-be/agent")
	}
	if o.logger == nil {
		o.logger = logger.NopLogger{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	o.policies.Classification = withStage(o.policies.Classification, "classification")
	o.policies.Generation = withStage(o.policies.Generation, "generation")
	o.policies.Retrieval = withStage(o.policies.Retrieval, "retrieval")

	o.steps = map[State]step{
		StateClassify:        o.classify,
		StateGenerate:        o.generate,
		StateModify:          o.modify,
		StateFallbackGeneral: o.fallbackGeneral,
		StateFallbackUnclear: o.fallbackUnclear,
		StateFinalize:        o.finalize,
	}
	return o
}

func withStage(p retry.Policy, stage string) retry.Policy {
	if p.Stage == "" {
		p = p.WithStage(stage)
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}
	return p
}

// Handle answers one prompt. A repeated prompt on the same session is served
// from the response cache without running the state machine. An empty
// sessionID starts a new session.
func (o *Orchestrator) Handle(ctx context.Context, prompt, sessionID string) (*Response, error) {
	if sessionID == "" {
		sessionID = o.newID()
	} else if o.cache != nil {
		if it, ok := o.cache.GetResponse(ctx, sessionID, prompt); ok {
			o.logger.Debug("AGENT", "Response cache hit", map[string]interface{}{
				"session_id":     sessionID,
				"interaction_id": it.ID,
			})
			resp := Envelope(*it)
			resp.Cached = true
			resp.Degraded = o.history.Degraded()
			return resp, nil
		}
	}

	st, err := o.loadState(ctx, sessionID, prompt)
	if err != nil {
		return nil, err
	}
	it, err := o.Run(ctx, st)
	if err != nil {
		return nil, err
	}

	resp := Envelope(*it)
	resp.Degraded = o.history.Degraded()
	return resp, nil
}

func (o *Orchestrator) loadState(ctx context.Context, sessionID, prompt string) (*AgentState, error) {
	st := &AgentState{SessionID: sessionID, Prompt: prompt}

	if o.cache != nil {
		if snap, ok := o.cache.GetState(ctx, sessionID); ok {
			st.History = snap.History
			st.Workflow = snap.Workflow
			if st.Workflow.IsEmpty() {
				st.Workflow = store.LatestWorkflow(st.History)
			}
			return st, nil
		}
	}

	history, err := o.history.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st.History = history
	st.Workflow = store.LatestWorkflow(history)
	return st, nil
}

// Run drives st from Classify to Done and returns the recorded interaction.
// Cancellation stops the run before Finalize, so nothing is recorded.
func (o *Orchestrator) Run(ctx context.Context, st *AgentState) (*store.Interaction, error) {
	state := StateClassify
	for state != StateDone {
		if err := ctx.Err(); err != nil {
			o.logger.Info("AGENT", "Run cancelled", map[string]interface{}{
				"session_id": st.SessionID,
				"state":      string(state),
			})
			return nil, err
		}
		st.Trace = append(st.Trace, state)

		next, err := o.step(ctx, state, st)
		if err != nil {
			o.logger.Error("AGENT", "Run failed", map[string]interface{}{
				"session_id": st.SessionID,
				"state":      string(state),
				"kind":       string(apperror.KindOf(err)),
				"error":      err.Error(),
			})
			return nil, err
		}
		state = next
	}
	return st.Recorded, nil
}

func (o *Orchestrator) step(ctx context.Context, state State, st *AgentState) (State, error) {
	fn, ok := o.steps[state]
	if !ok {
		return "", fmt.Errorf("agent: no handler for state %q", state)
	}

	ctx, span := o.tracer.Start(ctx, "agent."+string(state), trace.WithAttributes(
		attribute.String("session.id", st.SessionID),
	))
	defer span.End()

	start := time.Now()
	next, err := fn(ctx, st)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(
		attribute.String("agent.intent", string(st.Intent)),
		attribute.String("agent.next", string(next)),
	)
	o.logger.Debug("AGENT", "State finished", map[string]interface{}{
		"session_id": st.SessionID,
		"state":      string(state),
		"next":       string(next),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return next, nil
}

func (o *Orchestrator) classify(ctx context.Context, st *AgentState) (State, error) {
	if strings.TrimSpace(st.Prompt) == "" {
		st.Intent = store.IntentUnclear
		return Route(st.Intent, st.HasWorkflow()), nil
	}

	st.Context = o.retrieve(ctx, st.Prompt)

	req := ClassificationRequest{Prompt: st.Prompt, Context: st.Context, History: st.History}
	if st.HasWorkflow() {
		req.Existing = st.Workflow
	}
	intent, err := retry.Do(ctx, o.policies.Classification, func(ctx context.Context) (store.Intent, error) {
		intent, err := o.classifier.Classify(ctx, req)
		if err != nil {
			return "", apperror.Classification("agent.classify", err)
		}
		return intent, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		o.logger.Warn("AGENT", "Classification failed, treating prompt as unclear", map[string]interface{}{
			"session_id": st.SessionID,
			"attempts":   retry.AttemptsOf(err),
			"error":      err.Error(),
		})
		st.ClassificationFailed = true
		intent = store.IntentUnclear
	}

	st.Intent = store.ParseIntent(string(intent))
	next := Route(st.Intent, st.HasWorkflow())
	if st.Intent == store.IntentModifyWorkflow && next == StateGenerate {
		st.Rerouted = true
		o.logger.Info("AGENT", "Nothing to modify yet, generating instead", map[string]interface{}{
			"session_id": st.SessionID,
		})
	}
	return next, nil
}

// retrieve never fails the run; an unreachable index means no context.
func (o *Orchestrator) retrieve(ctx context.Context, prompt string) []string {
	if o.retriever == nil {
		return nil
	}
	snippets, err := retry.Do(ctx, o.policies.Retrieval, func(ctx context.Context) ([]string, error) {
		s, err := o.retriever.Retrieve(ctx, prompt)
		if err != nil {
			return nil, apperror.Retrieval("agent.retrieve", err)
		}
		return s, nil
	})
	if err != nil {
		o.logger.Warn("AGENT", "Retrieval failed, continuing without context", map[string]interface{}{
			"attempts": retry.AttemptsOf(err),
			"error":    err.Error(),
		})
		return nil
	}
	return snippets
}

func (o *Orchestrator) generate(ctx context.Context, st *AgentState) (State, error) {
	req := GenerationRequest{Prompt: st.Prompt, Context: st.Context, History: st.History}
	return o.produce(ctx, st, "agent.generate", req, o.generator.Generate, func(raw string) (*workflow.Artifact, error) {
		nodes, data, err := workflow.ParseArtifact(raw)
		if err != nil {
			return nil, err
		}
		return o.engine.Assemble(nodes, data)
	}, msgGenerated)
}

func (o *Orchestrator) modify(ctx context.Context, st *AgentState) (State, error) {
	existing := st.Workflow
	req := GenerationRequest{Prompt: st.Prompt, Context: st.Context, History: st.History, Existing: existing.Clone()}
	return o.produce(ctx, st, "agent.modify", req, o.modifier.Modify, func(raw string) (*workflow.Artifact, error) {
		patch, err := workflow.ParsePatch(raw)
		if err != nil {
			return nil, err
		}
		return o.engine.Merge(existing, patch)
	}, msgModified)
}

// produce calls the model, builds an artifact from its answer and, when the
// answer is rejected, asks once more with the rejection attached.
func (o *Orchestrator) produce(
	ctx context.Context,
	st *AgentState,
	op string,
	req GenerationRequest,
	call func(context.Context, GenerationRequest) (string, error),
	build func(raw string) (*workflow.Artifact, error),
	reply string,
) (State, error) {
	for round := 0; ; round++ {
		raw, err := retry.Do(ctx, o.policies.Generation, func(ctx context.Context) (string, error) {
			out, err := call(ctx, req)
			if err != nil {
				return "", apperror.Generation(op, err)
			}
			return out, nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}

		art, err := build(raw)
		if err == nil {
			st.Workflow = art
			st.Produced = true
			st.Response = reply
			st.NextQuestion = QuestionAnythingElse
			return StateFinalize, nil
		}

		var verr *apperror.ValidationError
		if !errors.As(err, &verr) {
			return "", err
		}
		o.logger.Warn("AGENT", "Model payload rejected", map[string]interface{}{
			"session_id": st.SessionID,
			"op":         op,
			"round":      round + 1,
			"invariant":  verr.Invariant,
			"subject":    verr.Subject,
		})
		if round >= MaxRepairs {
			break
		}
		st.Repairs++
		req.Repair = RepairInstruction(verr)
	}

	st.RepairExhausted = true
	return StateFallbackUnclear, nil
}

func (o *Orchestrator) fallbackGeneral(ctx context.Context, st *AgentState) (State, error) {
	if reply, ok := greeting(st.Prompt); ok {
		st.Response = reply
		st.NextQuestion = QuestionGreeting
		return StateFinalize, nil
	}

	reply, err := o.respond(ctx, ResponseRequest{Prompt: st.Prompt, Context: st.Context, History: st.History})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	st.Response = reply
	st.NextQuestion = generalQuestion(st.Prompt)
	return StateFinalize, nil
}

func (o *Orchestrator) fallbackUnclear(ctx context.Context, st *AgentState) (State, error) {
	st.Response = msgUnclear
	st.NextQuestion = QuestionClarify
	if st.RepairExhausted {
		st.NextQuestion = QuestionSpecifics
	}

	// A blank prompt or a classifier that just exhausted its budget gets the
	// static reply.
	if strings.TrimSpace(st.Prompt) != "" && !st.ClassificationFailed && o.responder != nil {
		req := ResponseRequest{Prompt: st.Prompt, Context: st.Context, History: st.History, Clarify: true}
		if st.RepairExhausted {
			req.Problem = "the request could not be turned into a valid workflow"
		}
		reply, err := o.respond(ctx, req)
		switch {
		case err == nil && reply != "":
			st.Response = reply
		case err != nil && ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			o.logger.Warn("AGENT", "Clarification reply failed, using static text", map[string]interface{}{
				"session_id": st.SessionID,
				"error":      err.Error(),
			})
		}
	}

	if st.RepairExhausted {
		st.Response = msgRepairApology + " " + st.Response
	}
	return StateFinalize, nil
}

func (o *Orchestrator) respond(ctx context.Context, req ResponseRequest) (string, error) {
	reply, err := retry.Do(ctx, o.policies.Generation, func(ctx context.Context) (string, error) {
		out, err := o.responder.Respond(ctx, req)
		if err != nil {
			return "", apperror.Generation("agent.respond", err)
		}
		return out, nil
	})
	return strings.TrimSpace(reply), err
}

// finalize appends the interaction to history, then refreshes both caches.
// Once history accepted the turn it is committed, so cache writes are
// detached from caller cancellation and their failures are only logged.
func (o *Orchestrator) finalize(ctx context.Context, st *AgentState) (State, error) {
	it := store.Interaction{
		ID:           o.newID(),
		SessionID:    st.SessionID,
		Prompt:       st.Prompt,
		Response:     st.Response,
		Intent:       st.Intent,
		NextQuestion: st.NextQuestion,
		CreatedAt:    o.now().UTC(),
	}
	if st.Produced {
		it.Workflow = st.Workflow
	}

	if err := o.history.Append(ctx, it); err != nil {
		return "", err
	}
	st.Recorded = &it

	if o.cache != nil {
		cctx := context.WithoutCancel(ctx)
		ttl := o.cache.TTL()
		if err := o.cache.PutResponse(cctx, st.SessionID, st.Prompt, it, ttl); err != nil {
			o.logger.Warn("AGENT", "Response cache write failed", map[string]interface{}{
				"session_id": st.SessionID,
				"error":      err.Error(),
			})
		}
		if err := o.cache.PutState(cctx, st.SessionID, o.snapshot(st, it), ttl); err != nil {
			o.logger.Warn("AGENT", "State cache write failed", map[string]interface{}{
				"session_id": st.SessionID,
				"error":      err.Error(),
			})
		}
	}

	o.logger.Info("AGENT", "Interaction recorded", map[string]interface{}{
		"session_id":     st.SessionID,
		"interaction_id": it.ID,
		"intent":         string(st.Intent),
		"trace":          st.Trace,
		"repairs":        st.Repairs,
		"nodes":          it.Workflow.NodeIDs(),
	})
	return StateDone, nil
}

func (o *Orchestrator) snapshot(st *AgentState, it store.Interaction) store.SessionSnapshot {
	history := make([]store.Interaction, 0, len(st.History)+1)
	history = append(history, st.History...)
	history = append(history, it)
	if w := o.history.Window(); w > 0 && len(history) > w {
		history = history[len(history)-w:]
	}
	return store.SessionSnapshot{
		SessionID:  st.SessionID,
		History:    history,
		Workflow:   st.Workflow,
		LastIntent: st.Intent,
		UpdatedAt:  it.CreatedAt,
	}
}
