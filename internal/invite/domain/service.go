package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	inviteeventdomain "github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/token"
	"github.com/smallbiznis/tandem/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invite *Invite) error
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Invite, error)
	ListByInviter(ctx context.Context, db *gorm.DB, inviterID snowflake.ID) ([]Invite, error)
	ListByStatuses(ctx context.Context, db *gorm.DB, filter ModerationFilter) ([]Invite, error)
	CountActiveByInviter(ctx context.Context, db *gorm.DB, inviterID snowflake.ID) (int64, error)
	ListLapsed(ctx context.Context, db *gorm.DB, status Status, now time.Time, limit int) ([]Invite, error)

	// Transition applies from -> to only if the row is still in from.
	Transition(ctx context.Context, db *gorm.DB, id uuid.UUID, from, to Status, consumedAt *time.Time, now time.Time) (bool, error)
	SetLinkedAccount(ctx context.Context, db *gorm.DB, id uuid.UUID, accountID snowflake.ID, now time.Time) error
	RotateToken(ctx context.Context, db *gorm.DB, id uuid.UUID, hash, salt string, expiresAt, now time.Time) (bool, error)
}

type ModerationFilter struct {
	Statuses []Status
	Cursor   *ModerationCursor
	Limit    int
}

type ModerationCursor struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

type CreateInviteRequest struct {
	InviterAccountID snowflake.ID
	InviteeEmail     string        `json:"invitee_email"`
	Role             string        `json:"role"`
	TTL              time.Duration `json:"-"`
}

// IssuedInvite is returned when an invite token is minted. Token and Link are
// only ever available at issuance.
type IssuedInvite struct {
	Invite Invite `json:"invite"`
	Token  string `json:"token"`
	Link   string `json:"link"`
}

// TokenCheck is the outcome of presenting an invite token. Invite is set only
// for the valid outcome.
type TokenCheck struct {
	Outcome token.Outcome `json:"outcome"`
	Invite  *Invite       `json:"invite,omitempty"`
}

type ModerationListRequest struct {
	pagination.Pagination
	ActorID  snowflake.ID
	Statuses []Status
}

// SessionSummary is the moderation view of an invite's verification session.
type SessionSummary struct {
	ID               snowflake.ID   `json:"id"`
	Status           string         `json:"status"`
	SubmittedProfile datatypes.JSON `json:"submitted_profile,omitempty"`
	SubmittedMedia   datatypes.JSON `json:"submitted_media,omitempty"`
	ModerationNotes  *string        `json:"moderation_notes,omitempty"`
	RejectionReason  *string        `json:"rejection_reason,omitempty"`
	DecisionAt       *time.Time     `json:"decision_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ModerationItem pairs an invite with its verification session, if any.
type ModerationItem struct {
	Invite  Invite          `json:"invite"`
	Session *SessionSummary `json:"verification_session,omitempty"`
}

type ModerationListResponse struct {
	pagination.PageInfo
	Items []ModerationItem `json:"items"`
}

// Service is the invite registry: eligibility, creation, listing, and the
// status transitions owned by the inviter or the invitee.
type Service interface {
	Create(ctx context.Context, req CreateInviteRequest) (*IssuedInvite, error)
	Get(ctx context.Context, id uuid.UUID) (*Invite, error)
	ListMine(ctx context.Context, inviterID snowflake.ID) ([]Invite, error)
	ListForModeration(ctx context.Context, req ModerationListRequest) (*ModerationListResponse, error)
	Revoke(ctx context.Context, id uuid.UUID, actorID snowflake.ID) (*Invite, error)
	VerifyToken(ctx context.Context, combined string) (TokenCheck, error)
	Decline(ctx context.Context, combined string, reason *string) (*Invite, error)
	ConfirmCouple(ctx context.Context, id uuid.UUID, actorID snowflake.ID) (*Invite, error)
	Resend(ctx context.Context, id uuid.UUID, actorID snowflake.ID) (*IssuedInvite, error)
	ExpireLapsed(ctx context.Context, now time.Time, limit int) (int, error)
	History(ctx context.Context, id uuid.UUID) ([]inviteeventdomain.InviteEvent, error)

	// Advance moves invite to status inside tx with a conditional update and
	// refreshes invite in place. stampConsumed sets consumedAt if unset.
	Advance(ctx context.Context, tx *gorm.DB, invite *Invite, to Status, stampConsumed bool) error
}
