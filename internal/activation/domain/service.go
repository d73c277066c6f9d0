package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	"github.com/smallbiznis/tandem/internal/token"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, t *ActivationToken) error
	ListByInvite(ctx context.Context, db *gorm.DB, inviteID uuid.UUID) ([]ActivationToken, error)
	ConsumeOutstanding(ctx context.Context, db *gorm.DB, inviteID uuid.UUID, now time.Time) (int64, error)
	// Consume stamps consumed_at only if it is still unset.
	Consume(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
}

type IssuedActivation struct {
	Token     string    `json:"-"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Check struct {
	Outcome token.Outcome        `json:"outcome"`
	Invite  *invitedomain.Invite `json:"invite,omitempty"`
}

type CompleteRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type CompleteResponse struct {
	AccountID snowflake.ID        `json:"account_id"`
	Invite    invitedomain.Invite `json:"invite"`
}

// Issuer mints activation tokens inside the caller's transaction.
type Issuer interface {
	Issue(ctx context.Context, tx *gorm.DB, invite *invitedomain.Invite, actorID *snowflake.ID) (*IssuedActivation, error)
}

type Service interface {
	Issuer
	Verify(ctx context.Context, combined string) (Check, error)
	Complete(ctx context.Context, req CompleteRequest) (*CompleteResponse, error)
	Reissue(ctx context.Context, inviteID uuid.UUID, actorID snowflake.ID) (*IssuedActivation, error)
}

var (
	ErrWeakPassword = errors.New("weak_password")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidActor = errors.New("invalid_actor")
)
