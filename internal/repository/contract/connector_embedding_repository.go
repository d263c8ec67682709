package contract

import (
	"context"

	"workflow-agent-be/internal/entity"
	"workflow-agent-be/internal/repository/specification"
)

// ScoredConnectorEmbedding wraps ConnectorEmbedding with its similarity score
type ScoredConnectorEmbedding struct {
	Embedding  *entity.ConnectorEmbedding
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type ConnectorEmbeddingRepository interface {
	Upsert(ctx context.Context, embedding *entity.ConnectorEmbedding) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConnectorEmbedding, error)
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*ScoredConnectorEmbedding, error)
}
