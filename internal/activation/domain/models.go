package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// ActivationToken is the second-stage credential minted after approval.
// Rows are retained after consumption for audit.
type ActivationToken struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	InviteID         uuid.UUID     `gorm:"type:uuid;not null;index" json:"invite_id"`
	TokenHash        string        `gorm:"type:text;not null" json:"-"`
	TokenSalt        string        `gorm:"type:text;not null" json:"-"`
	ExpiresAt        time.Time     `gorm:"not null" json:"expires_at"`
	ConsumedAt       *time.Time    `json:"consumed_at,omitempty"`
	CreatedByActorID *snowflake.ID `json:"created_by_actor_id,omitempty"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
}

func (ActivationToken) TableName() string { return "activation_tokens" }
