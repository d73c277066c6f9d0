package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	"gorm.io/gorm"
)

// Linker materializes the invitee as a durable account. Both operations run
// inside the caller's transaction.
type Linker interface {
	LinkInviteeAccount(ctx context.Context, tx *gorm.DB, invite *invitedomain.Invite, passwordHash string) (snowflake.ID, error)
	HydrateProfileFromSubmission(ctx context.Context, tx *gorm.DB, inviteID uuid.UUID, accountID snowflake.ID) error
}

var (
	ErrAccountNotFound   = errors.New("account_not_found")
	ErrEmailInUse        = errors.New("email_in_use")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrUsernameExhausted = errors.New("username_exhausted")
)
