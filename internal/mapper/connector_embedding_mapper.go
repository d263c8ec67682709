package mapper

import (
	"time"

	"workflow-agent-be/internal/entity"
	"workflow-agent-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type ConnectorEmbeddingMapper struct{}

func NewConnectorEmbeddingMapper() *ConnectorEmbeddingMapper {
	return &ConnectorEmbeddingMapper{}
}

func (m *ConnectorEmbeddingMapper) ToEntity(e *model.ConnectorEmbedding) *entity.ConnectorEmbedding {
	if e == nil {
		return nil
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.ConnectorEmbedding{
		Id:             e.Id,
		ConnectorId:    e.ConnectorId,
		Name:           e.Name,
		Kind:           e.Kind,
		Document:       e.Document,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *ConnectorEmbeddingMapper) ToModel(e *entity.ConnectorEmbedding) *model.ConnectorEmbedding {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.ConnectorEmbedding{
		Id:             e.Id,
		ConnectorId:    e.ConnectorId,
		Name:           e.Name,
		Kind:           e.Kind,
		Document:       e.Document,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}
