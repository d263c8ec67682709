// Package observe carries per-stage retry attempts over an in-process bus and
// aggregates them so each stage's time budget stays visible.
package observe

import (
	"encoding/json"
	"time"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/retry"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const TopicStageAttempts = "stage.attempts"

// AttemptMessage is the bus payload for one retry attempt.
type AttemptMessage struct {
	Stage     string    `json:"stage"`
	Attempt   int       `json:"attempt"`
	Failed    bool      `json:"failed"`
	Error     string    `json:"error,omitempty"`
	ElapsedMs float64   `json:"elapsed_ms"`
	At        time.Time `json:"at"`
}

// NewPubSub returns the in-process bus. Publishing never blocks on slow
// subscribers; messages beyond the buffer wait in the publisher goroutine.
func NewPubSub() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 1024,
	}, watermill.NopLogger{})
}

type Recorder struct {
	publisher message.Publisher
	logger    logger.ILogger
}

func NewRecorder(publisher message.Publisher, log logger.ILogger) *Recorder {
	return &Recorder{publisher: publisher, logger: log}
}

// Hook returns a retry hook that forwards every attempt to the bus.
func (r *Recorder) Hook() retry.Hook {
	return func(a retry.Attempt) {
		msg := AttemptMessage{
			Stage:     a.Stage,
			Attempt:   a.Number,
			Failed:    a.Err != nil,
			ElapsedMs: float64(a.Elapsed.Microseconds()) / 1000,
			At:        time.Now().UTC(),
		}
		if a.Err != nil {
			msg.Error = a.Err.Error()
			r.logger.Debug("RETRY", "Attempt failed", map[string]interface{}{
				"stage":   a.Stage,
				"attempt": a.Number,
				"error":   msg.Error,
			})
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return
		}
		if err := r.publisher.Publish(TopicStageAttempts, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
			r.logger.Warn("RETRY", "Failed to publish attempt", map[string]interface{}{"error": err.Error()})
		}
	}
}
