package implementation

import (
	"context"

	"workflow-agent-be/internal/entity"
	"workflow-agent-be/internal/mapper"
	"workflow-agent-be/internal/model"
	"workflow-agent-be/internal/repository/contract"
	"workflow-agent-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConnectorEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConnectorEmbeddingMapper
}

func NewConnectorEmbeddingRepository(db *gorm.DB) contract.ConnectorEmbeddingRepository {
	return &ConnectorEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewConnectorEmbeddingMapper(),
	}
}

// Upsert keys on connector_id so reseeding replaces the previous vector.
func (r *ConnectorEmbeddingRepositoryImpl) Upsert(ctx context.Context, embedding *entity.ConnectorEmbedding) error {
	m := r.mapper.ToModel(embedding)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "connector_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "kind", "document", "embedding_value", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*embedding = *r.mapper.ToEntity(m)
	return nil
}

func (r *ConnectorEmbeddingRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConnectorEmbedding, error) {
	var models []*model.ConnectorEmbedding
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ConnectorEmbedding, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

// SearchSimilarWithScore returns the closest connectors by cosine similarity.
func (r *ConnectorEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*contract.ScoredConnectorEmbedding, error) {
	if limit <= 0 {
		limit = 3
	}

	// pgvector's <=> is cosine distance, similarity is 1 - distance
	type result struct {
		model.ConnectorEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("connector_embeddings").
		Select("connector_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredConnectorEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredConnectorEmbedding{
			Embedding:  r.mapper.ToEntity(&res.ConnectorEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
