package entity

import (
	"time"

	"github.com/google/uuid"
)

type Interaction struct {
	Id           uuid.UUID
	SessionId    string
	Prompt       string
	Response     string
	Intent       string
	NextQuestion string
	Workflow     []byte // JSON encoded artifact, nil when the turn produced none
	CreatedAt    time.Time
}
