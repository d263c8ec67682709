package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workflow-agent-be/internal/bootstrap"
	"workflow-agent-be/internal/config"
	"workflow-agent-be/internal/server"
	"workflow-agent-be/internal/tracer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to bootstrap: %v", err)
	}
	defer container.Close()

	// 3. Tracer
	shutdownTracer := tracer.InitTracer(ctx, cfg.App, container.Logger)
	defer func() { _ = shutdownTracer(context.Background()) }()

	// 4. Start Background Consumers
	if err := container.StatsConsumer.Consume(ctx); err != nil {
		container.Logger.Error("BOOTSTRAP", "Failed to start stats consumer", map[string]interface{}{"error": err.Error()})
	}

	// 5. Initialize & Run Server
	srv := server.New(cfg, container)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			container.Logger.Error("HTTP", "Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	if err := srv.Run(); err != nil {
		container.Logger.Error("HTTP", "Server stopped", map[string]interface{}{"error": err.Error()})
	}
}
