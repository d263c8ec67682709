package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type ConnectorEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConnectorId    string          `gorm:"type:varchar(128);not null;uniqueIndex"`
	Name           string          `gorm:"type:varchar(128);not null"`
	Kind           string          `gorm:"type:varchar(32);not null"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text dimensions
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (ConnectorEmbedding) TableName() string {
	return "connector_embeddings"
}
