package observe

import (
	"context"
	"encoding/json"
	"sync"

	"workflow-agent-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
)

// StageStats aggregates the attempts seen for one stage.
type StageStats struct {
	Attempts  int64   `json:"attempts"`
	Failures  int64   `json:"failures"`
	Retries   int64   `json:"retries"`
	TotalMs   float64 `json:"total_ms"`
	MaxMs     float64 `json:"max_ms"`
	LastError string  `json:"last_error,omitempty"`
}

func (s StageStats) AvgMs() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return s.TotalMs / float64(s.Attempts)
}

type StatsConsumer struct {
	subscriber message.Subscriber
	logger     logger.ILogger

	mu     sync.RWMutex
	stages map[string]*StageStats
}

func NewStatsConsumer(subscriber message.Subscriber, log logger.ILogger) *StatsConsumer {
	return &StatsConsumer{
		subscriber: subscriber,
		logger:     log,
		stages:     make(map[string]*StageStats),
	}
}

// Consume subscribes and aggregates in the background until ctx is done.
func (c *StatsConsumer) Consume(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, TopicStageAttempts)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			c.process(msg)
		}
	}()
	return nil
}

func (c *StatsConsumer) process(msg *message.Message) {
	// Malformed messages are acked so they are not redelivered.
	defer msg.Ack()

	var a AttemptMessage
	if err := json.Unmarshal(msg.Payload, &a); err != nil {
		c.logger.Warn("RETRY", "Dropping malformed attempt message", map[string]interface{}{"error": err.Error()})
		return
	}
	c.Record(a)
}

// Record folds one attempt into the aggregates.
func (c *StatsConsumer) Record(a AttemptMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stages[a.Stage]
	if !ok {
		s = &StageStats{}
		c.stages[a.Stage] = s
	}
	s.Attempts++
	if a.Attempt > 1 {
		s.Retries++
	}
	if a.Failed {
		s.Failures++
		s.LastError = a.Error
	}
	s.TotalMs += a.ElapsedMs
	if a.ElapsedMs > s.MaxMs {
		s.MaxMs = a.ElapsedMs
	}
}

// Snapshot returns a copy of the per-stage aggregates.
func (c *StatsConsumer) Snapshot() map[string]StageStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]StageStats, len(c.stages))
	for k, v := range c.stages {
		out[k] = *v
	}
	return out
}
