package mapper

import (
	"workflow-agent-be/internal/entity"
	"workflow-agent-be/internal/model"

	"gorm.io/datatypes"
)

type InteractionMapper struct{}

func NewInteractionMapper() *InteractionMapper {
	return &InteractionMapper{}
}

func (m *InteractionMapper) ToEntity(i *model.Interaction) *entity.Interaction {
	if i == nil {
		return nil
	}

	var workflow []byte
	if len(i.Workflow) > 0 && string(i.Workflow) != "null" {
		workflow = []byte(i.Workflow)
	}

	return &entity.Interaction{
		Id:           i.Id,
		SessionId:    i.SessionId,
		Prompt:       i.Prompt,
		Response:     i.Response,
		Intent:       i.Intent,
		NextQuestion: i.NextQuestion,
		Workflow:     workflow,
		CreatedAt:    i.CreatedAt,
	}
}

func (m *InteractionMapper) ToModel(i *entity.Interaction) *model.Interaction {
	if i == nil {
		return nil
	}

	var workflow datatypes.JSON
	if len(i.Workflow) > 0 {
		workflow = datatypes.JSON(i.Workflow)
	}

	return &model.Interaction{
		Id:           i.Id,
		SessionId:    i.SessionId,
		Prompt:       i.Prompt,
		Response:     i.Response,
		Intent:       i.Intent,
		NextQuestion: i.NextQuestion,
		Workflow:     workflow,
		CreatedAt:    i.CreatedAt,
	}
}

func (m *InteractionMapper) ToEntities(interactions []*model.Interaction) []*entity.Interaction {
	entities := make([]*entity.Interaction, len(interactions))
	for i, it := range interactions {
		entities[i] = m.ToEntity(it)
	}
	return entities
}
