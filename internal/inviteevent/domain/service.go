package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *InviteEvent) error
	ListByInvite(ctx context.Context, db *gorm.DB, inviteID uuid.UUID) ([]InviteEvent, error)
}

// Service appends to and reads the invite ledger. Record takes the caller's
// transaction so the event commits or rolls back with the state change it describes.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, inviteID uuid.UUID, eventType string, actorID *snowflake.ID, metadata map[string]any) error
	List(ctx context.Context, inviteID uuid.UUID) ([]InviteEvent, error)
}

var (
	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrInvalidInvite    = errors.New("invalid_invite")
)
