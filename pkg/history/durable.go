package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"workflow-agent-be/internal/entity"
	"workflow-agent-be/internal/repository/specification"
	"workflow-agent-be/internal/repository/unitofwork"
	"workflow-agent-be/pkg/apperror"
	"workflow-agent-be/pkg/retry"
	"workflow-agent-be/pkg/store"
	"workflow-agent-be/pkg/workflow"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// DurableBackend stores interactions in postgres through the unit of work.
type DurableBackend struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewDurableBackend(uowFactory unitofwork.RepositoryFactory) *DurableBackend {
	return &DurableBackend{uowFactory: uowFactory}
}

func (b *DurableBackend) Name() string { return "postgres" }

func (b *DurableBackend) Load(ctx context.Context, sessionID string, limit int) ([]store.Interaction, error) {
	uow := b.uowFactory.NewUnitOfWork(ctx)

	rows, err := uow.InteractionRepository().FindAll(ctx, specification.LatestInteractions(sessionID, limit)...)
	if err != nil {
		return nil, err
	}

	// rows are newest first
	out := make([]store.Interaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, toInteraction(rows[i]))
	}
	return out, nil
}

func (b *DurableBackend) Append(ctx context.Context, interaction store.Interaction) error {
	row, err := toEntity(interaction)
	if err != nil {
		return err
	}
	uow := b.uowFactory.NewUnitOfWork(ctx)
	return uow.InteractionRepository().Create(ctx, row)
}

func toInteraction(e *entity.Interaction) store.Interaction {
	it := store.Interaction{
		ID:           e.Id.String(),
		SessionID:    e.SessionId,
		Prompt:       e.Prompt,
		Response:     e.Response,
		Intent:       store.Intent(e.Intent),
		NextQuestion: e.NextQuestion,
		CreatedAt:    e.CreatedAt,
	}
	if len(e.Workflow) > 0 {
		var art workflow.Artifact
		// An unreadable artifact column is dropped rather than failing the whole load.
		if err := json.Unmarshal(e.Workflow, &art); err == nil {
			it.Workflow = &art
		}
	}
	return it
}

func toEntity(it store.Interaction) (*entity.Interaction, error) {
	id, err := uuid.Parse(it.ID)
	if err != nil {
		return nil, apperror.Validation("interaction_id_uuid", it.ID, "interaction id is not a uuid: %v", err)
	}
	var raw []byte
	if !it.Workflow.IsEmpty() {
		if raw, err = json.Marshal(it.Workflow); err != nil {
			return nil, fmt.Errorf("encode workflow: %w", err)
		}
	}
	return &entity.Interaction{
		Id:           id,
		SessionId:    it.SessionID,
		Prompt:       it.Prompt,
		Response:     it.Response,
		Intent:       string(it.Intent),
		NextQuestion: it.NextQuestion,
		Workflow:     raw,
		CreatedAt:    it.CreatedAt,
	}, nil
}

// RetryableStoreError retries connection level failures and the transient
// postgres error classes. Statement errors reported by the server are final.
func RetryableStoreError(err error) bool {
	if !retry.DefaultRetryable(err) {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "53300", "57P01", "57P03":
			return true
		}
		return false
	}
	return true
}
