// Package history loads and appends session interactions. Writes go to the
// durable backend and are mirrored to a process-local ephemeral backend.
// When the durable backend fails the service keeps serving from the
// ephemeral copy and reports itself degraded until a durable call succeeds.
package history

import (
	"context"
	"sync/atomic"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/apperror"
	"workflow-agent-be/pkg/events"
	"workflow-agent-be/pkg/retry"
	"workflow-agent-be/pkg/store"
)

const DefaultWindow = 10

type Service struct {
	durable   StorageBackend
	local     *EphemeralBackend
	window    int
	policy    retry.Policy
	publisher events.Publisher
	logger    logger.ILogger

	degraded atomic.Bool
}

// NewService wires the backends. A nil durable backend starts the service in
// degraded mode.
func NewService(durable StorageBackend, local *EphemeralBackend, window int, policy retry.Policy, publisher events.Publisher, log logger.ILogger) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	if policy.Stage == "" {
		policy.Stage = "store"
	}
	if policy.Retryable == nil {
		policy.Retryable = RetryableStoreError
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &Service{
		durable:   durable,
		local:     local,
		window:    window,
		policy:    policy,
		publisher: publisher,
		logger:    log,
	}
	if durable == nil {
		s.degraded.Store(true)
		log.Warn("HISTORY", "No durable store configured, history is process local", nil)
	}
	return s
}

// ReportUnavailable marks the durable backend as down before any call has
// been made, e.g. when it could not be reached at startup. The next
// successful durable call clears it.
func (s *Service) ReportUnavailable(ctx context.Context, err error) {
	if s.durable == nil {
		return
	}
	s.markDegraded(ctx, "connect", "", err)
}

// Degraded reports whether history is currently served from the ephemeral backend.
func (s *Service) Degraded() bool {
	return s.degraded.Load()
}

func (s *Service) Window() int {
	return s.window
}

// Load returns the most recent interactions of the session, oldest first.
// Unknown sessions yield an empty slice.
func (s *Service) Load(ctx context.Context, sessionID string) ([]store.Interaction, error) {
	local, err := s.local.Load(ctx, sessionID, s.window)
	if err != nil {
		return nil, err
	}
	if s.durable == nil {
		return local, nil
	}

	rows, err := retry.Do(ctx, s.policy, func(ctx context.Context) ([]store.Interaction, error) {
		rows, err := s.durable.Load(ctx, sessionID, s.window)
		if err != nil {
			return nil, apperror.Store("history.load", err)
		}
		return rows, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.markDegraded(ctx, "load", sessionID, err)
		return local, nil
	}

	s.markRecovered(ctx)
	return mergeWindow(rows, local, s.window), nil
}

// Append records the interaction. A durable failure is absorbed: the
// interaction stays available from the ephemeral backend and the service
// turns degraded. Cancellation during the durable write records nothing.
func (s *Service) Append(ctx context.Context, interaction store.Interaction) error {
	if interaction.ID == "" || interaction.SessionID == "" {
		return apperror.Validation("interaction_identified", interaction.ID, "interaction needs an id and a session id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	durable := false
	if s.durable != nil {
		err := retry.Run(ctx, s.policy, func(ctx context.Context) error {
			if err := s.durable.Append(ctx, interaction); err != nil {
				return apperror.Store("history.append", err)
			}
			return nil
		})
		switch {
		case err == nil:
			durable = true
			s.markRecovered(ctx)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			s.markDegraded(ctx, "append", interaction.SessionID, err)
		}
	}

	// The outcome is settled here, so the mirror write must not be cut short.
	if err := s.local.Append(context.WithoutCancel(ctx), interaction); err != nil {
		return err
	}

	s.publish(ctx, events.New(events.TypeInteractionRecorded, map[string]interface{}{
		"session_id":     interaction.SessionID,
		"interaction_id": interaction.ID,
		"intent":         string(interaction.Intent),
		"has_workflow":   !interaction.Workflow.IsEmpty(),
		"durable":        durable,
	}))
	return nil
}

func (s *Service) markDegraded(ctx context.Context, op, sessionID string, err error) {
	details := map[string]interface{}{
		"op":         op,
		"session_id": sessionID,
		"backend":    s.durable.Name(),
		"attempts":   retry.AttemptsOf(err),
		"error":      err.Error(),
	}
	if !s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("HISTORY", "Durable store still unavailable", details)
		return
	}
	s.logger.Error("HISTORY", "Durable store unavailable, switching to degraded mode", details)
	s.publish(ctx, events.New(events.TypeHistoryDegraded, map[string]interface{}{
		"op":      op,
		"backend": s.durable.Name(),
		"error":   err.Error(),
	}))
}

func (s *Service) markRecovered(ctx context.Context) {
	if !s.degraded.CompareAndSwap(true, false) {
		return
	}
	s.logger.Info("HISTORY", "Durable store reachable again, leaving degraded mode", map[string]interface{}{
		"backend": s.durable.Name(),
	})
	s.publish(ctx, events.New(events.TypeHistoryRecovered, map[string]interface{}{
		"backend": s.durable.Name(),
	}))
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("HISTORY", "Failed to publish event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}
