package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"workflow-agent-be/internal/config"
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/events"

	pktNats "workflow-agent-be/pkg/nats"

	"github.com/fatih/color"
)

// event_tail prints every domain event published on the bus. Useful to watch
// history degrade and recover while a durable store is taken down.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if cfg.App.NatsURL == "" {
		color.Red("NATS_URL is not set")
		os.Exit(1)
	}

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL, logger.NopLogger{})
	if err != nil {
		color.Red("Failed to connect: %v", err)
		os.Exit(1)
	}
	defer sub.Close()

	err = sub.Subscribe(ctx, "*", "event-tail", func(_ context.Context, e events.Event) error {
		payload, _ := json.Marshal(e.Payload())
		line := e.Timestamp().Format("15:04:05.000") + " " + e.EventType() + " " + string(payload)
		switch e.EventType() {
		case events.TypeHistoryDegraded:
			color.Red("%s", line)
		case events.TypeHistoryRecovered:
			color.Green("%s", line)
		default:
			color.White("%s", line)
		}
		return nil
	})
	if err != nil {
		color.Red("Failed to subscribe: %v", err)
		os.Exit(1)
	}

	color.Cyan("Tailing events on %s, Ctrl+C to stop", cfg.App.NatsURL)
	<-ctx.Done()
}
