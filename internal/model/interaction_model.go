package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Interaction struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SessionId    string         `gorm:"type:varchar(128);not null;index:idx_interactions_session_created,priority:1"`
	Prompt       string         `gorm:"type:text;not null"`
	Response     string         `gorm:"type:text;not null"`
	Intent       string         `gorm:"type:varchar(32);not null"`
	NextQuestion string         `gorm:"type:text"`
	Workflow     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"not null;index:idx_interactions_session_created,priority:2"`
}

func (Interaction) TableName() string {
	return "interactions"
}
