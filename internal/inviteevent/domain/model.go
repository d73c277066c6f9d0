package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventInviteCreated          = "invite.created"
	EventInviteRevoked          = "invite.revoked"
	EventInviteDeclined         = "invite.declined"
	EventInviteExpired          = "invite.expired"
	EventInviteTokenRotated     = "invite.token_rotated"
	EventInviteCompleted        = "invite.completed"
	EventProfileSaved           = "verification.profile_saved"
	EventMediaSaved             = "verification.media_saved"
	EventVerificationApproved   = "verification.approved"
	EventVerificationRejected   = "verification.rejected"
	EventActivationTokenCreated = "invite.activation_token_created"
	EventUserLinked             = "invite.user_linked"
	EventActivationCompleted    = "invite.activation_completed"
)

// InviteEvent is an insert-only ledger row.
type InviteEvent struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	InviteID       uuid.UUID         `gorm:"type:uuid;not null;index:idx_invite_events_invite_occurred,priority:1" json:"invite_id"`
	EventType      string            `gorm:"type:text;not null" json:"event_type"`
	ActorAccountID *snowflake.ID     `json:"actor_account_id,omitempty"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	OccurredAt     time.Time         `gorm:"not null;index:idx_invite_events_invite_occurred,priority:2" json:"occurred_at"`
}

func (InviteEvent) TableName() string { return "invite_events" }
