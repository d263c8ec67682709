package unitofwork

import (
	"context"

	"workflow-agent-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	InteractionRepository() contract.InteractionRepository
	ConnectorEmbeddingRepository() contract.ConnectorEmbeddingRepository
}
