package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConnectorEmbedding struct {
	Id             uuid.UUID
	ConnectorId    string
	Name           string
	Kind           string
	Document       string
	EmbeddingValue []float32
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}
