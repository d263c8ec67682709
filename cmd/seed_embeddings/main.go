package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"workflow-agent-be/internal/bootstrap"
	"workflow-agent-be/internal/config"
	"workflow-agent-be/internal/entity"
	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/internal/repository/unitofwork"
	"workflow-agent-be/pkg/connector"
	"workflow-agent-be/pkg/database"
	"workflow-agent-be/pkg/embedding"
)

// document is the text embedded for a connector. Names and aliases come
// first so that short prompts mentioning a provider land close to it.
func document(d *connector.Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", d.Name, d.Kind)
	if len(d.Aliases) > 0 {
		fmt.Fprintf(&b, ", also known as %s", strings.Join(d.Aliases, ", "))
	}
	fmt.Fprintf(&b, ". Actions: %s.", strings.Join(d.ActionNames(), ", "))
	return b.String()
}

func main() {
	ctx := context.Background()
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDB(ctx, database.GormConfig{
		DSN:      cfg.Database.Connection,
		LogLevel: cfg.Database.LogLevel,
	})
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	defer database.Close(db)

	registry, err := connector.NewDefaultRegistry(logger.NopLogger{})
	if err != nil {
		log.Fatal("Error: ", err)
	}
	embedder := bootstrap.NewEmbeddingProvider(cfg.Ai)
	// Embed everything first so a provider failure leaves the table untouched.
	rows := make([]*entity.ConnectorEmbedding, 0, len(registry.List()))
	for _, d := range registry.List() {
		doc := document(d)
		vec, err := embedder.Embed(ctx, doc)
		if err != nil {
			log.Fatalf("Error: Failed to embed %s: %v", d.Name, err)
		}
		if err := embedding.CheckDimensions(embedder, vec); err != nil {
			log.Fatalf("Error: %s: %v", d.Name, err)
		}
		rows = append(rows, &entity.ConnectorEmbedding{
			ConnectorId:    d.ID,
			Name:           d.Name,
			Kind:           string(d.Kind),
			Document:       doc,
			EmbeddingValue: embedding.Normalize(vec),
		})
	}

	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		log.Fatal("Error: Failed to begin transaction:", err)
	}
	for _, row := range rows {
		if err := uow.ConnectorEmbeddingRepository().Upsert(ctx, row); err != nil {
			_ = uow.Rollback()
			log.Fatalf("Error: Failed to upsert %s: %v", row.Name, err)
		}
		log.Printf("Seeded %s (%s)", row.Name, row.ConnectorId)
	}
	if err := uow.Commit(); err != nil {
		log.Fatal("Error: Failed to commit:", err)
	}

	log.Printf("✅ Seeded %d connector embeddings", len(rows))
}
