package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"workflow-agent-be/internal/entity"
	"workflow-agent-be/internal/repository/contract"
	"workflow-agent-be/internal/repository/specification"
	"workflow-agent-be/internal/repository/unitofwork"
	"workflow-agent-be/pkg/apperror"
	"workflow-agent-be/pkg/store"
	"workflow-agent-be/pkg/workflow"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockInteractionRepository struct {
	mock.Mock
}

func (m *MockInteractionRepository) Create(ctx context.Context, interaction *entity.Interaction) error {
	args := m.Called(ctx, interaction)
	return args.Error(0)
}

func (m *MockInteractionRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Interaction, error) {
	args := m.Called(ctx, specs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Interaction), args.Error(1)
}

func (m *MockInteractionRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	args := m.Called(ctx, specs)
	return args.Get(0).(int64), args.Error(1)
}

type stubUnitOfWork struct {
	unitofwork.UnitOfWork
	interactions contract.InteractionRepository
}

func (u stubUnitOfWork) InteractionRepository() contract.InteractionRepository {
	return u.interactions
}

type stubFactory struct {
	uow unitofwork.UnitOfWork
}

func (f stubFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork {
	return f.uow
}

func newDurable(repo *MockInteractionRepository) *DurableBackend {
	return NewDurableBackend(stubFactory{uow: stubUnitOfWork{interactions: repo}})
}

func TestDurableLoadReversesNewestFirstRows(t *testing.T) {
	repo := new(MockInteractionRepository)
	base := time.Now().UTC()
	newer := &entity.Interaction{Id: uuid.New(), SessionId: "s1", Prompt: "second", Intent: "modify_workflow", CreatedAt: base.Add(time.Second),
		Workflow: []byte(`{"structure":[{"id":"node-1","name":"n","type":"normal","content":{},"position":{"x":58,"y":261}}],"data":{"node-1":{"type":"SCM_ACTION","version":"1.0","properties":{},"metadata":{}}}}`)}
	older := &entity.Interaction{Id: uuid.New(), SessionId: "s1", Prompt: "first", Intent: "new_workflow", CreatedAt: base}
	repo.On("FindAll", mock.Anything, mock.Anything).Return([]*entity.Interaction{newer, older}, nil)

	got, err := newDurable(repo).Load(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Prompt)
	assert.Equal(t, store.IntentModifyWorkflow, got[1].Intent)
	require.NotNil(t, got[1].Workflow)
	assert.Equal(t, []string{"node-1"}, got[1].Workflow.NodeIDs())
	assert.Nil(t, got[0].Workflow)

	specs := repo.Calls[0].Arguments.Get(1).([]specification.Specification)
	assert.Contains(t, specs, specification.BySessionID{SessionID: "s1"})
	assert.Contains(t, specs, specification.Pagination{Limit: 10})
}

func TestDurableAppendMapsInteraction(t *testing.T) {
	repo := new(MockInteractionRepository)
	id := uuid.New()
	art := &workflow.Artifact{
		Structure: []workflow.Node{{ID: "node-1"}},
		Data:      map[string]workflow.NodeMetadata{"node-1": {Type: workflow.DataTypeSCMAction}},
	}
	repo.On("Create", mock.Anything, mock.MatchedBy(func(e *entity.Interaction) bool {
		return e.Id == id && e.SessionId == "s1" && e.Intent == "new_workflow" && len(e.Workflow) > 0
	})).Return(nil).Once()

	err := newDurable(repo).Append(context.Background(), store.Interaction{
		ID: id.String(), SessionID: "s1", Intent: store.IntentNewWorkflow, Workflow: art, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestDurableAppendRejectsNonUUID(t *testing.T) {
	repo := new(MockInteractionRepository)
	err := newDurable(repo).Append(context.Background(), store.Interaction{ID: "not-a-uuid", SessionID: "s1"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRetryableStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"wrapped store error", apperror.Store("history.load", errors.New("broken pipe")), true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"undefined table", apperror.Store("history.load", &pgconn.PgError{Code: "42P01"}), false},
		{"record not found", gorm.ErrRecordNotFound, false},
		{"cancelled", context.Canceled, false},
		{"validation", apperror.Validation("interaction_id_uuid", "x", "bad"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryableStoreError(tt.err))
		})
	}
}
