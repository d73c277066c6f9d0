package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	"github.com/smallbiznis/tandem/internal/profile"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	FindByInvite(ctx context.Context, db *gorm.DB, inviteID uuid.UUID) (*Session, error)
	ListByInvites(ctx context.Context, db *gorm.DB, inviteIDs []uuid.UUID) ([]Session, error)
	UpsertProfile(ctx context.Context, db *gorm.DB, session *Session) error
	UpdateMedia(ctx context.Context, db *gorm.DB, inviteID uuid.UUID, media datatypes.JSON, now time.Time) (bool, error)
	Decide(ctx context.Context, db *gorm.DB, update DecisionUpdate) (bool, error)
}

// DecisionUpdate moves a session from under review (or awaiting uploads) to a
// decided status.
type DecisionUpdate struct {
	InviteID        uuid.UUID
	Status          Status
	ActorID         snowflake.ID
	RejectionReason *string
	ModerationNotes *string
	DecidedAt       time.Time
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type SubmitProfileRequest struct {
	Token               string             `json:"token"`
	ConsentAcknowledged bool               `json:"consentAcknowledged"`
	Profile             profile.Submission `json:"profile"`
}

type SubmitMediaRequest struct {
	Token string      `json:"token"`
	Media []MediaItem `json:"media"`
}

type DecideRequest struct {
	InviteID uuid.UUID
	ActorID  snowflake.ID
	Decision Decision
	Reason   *string
	Notes    *string
}

type DecideResponse struct {
	Invite         invitedomain.Invite `json:"invite"`
	Session        Session             `json:"session"`
	ActivationLink string              `json:"activation_link,omitempty"`
}

// Service is the profile/media intake and moderator decision workflow.
type Service interface {
	SubmitProfile(ctx context.Context, req SubmitProfileRequest) (*Session, error)
	SubmitMedia(ctx context.Context, req SubmitMediaRequest) (*Session, error)
	Decide(ctx context.Context, req DecideRequest) (*DecideResponse, error)
	GetSession(ctx context.Context, inviteID uuid.UUID) (*Session, error)
}

var (
	ErrConsentRequired = errors.New("consent_required")
	ErrInvalidMedia    = errors.New("invalid_media")
	ErrInvalidDecision = errors.New("invalid_decision")
	ErrInvalidActor    = errors.New("invalid_actor")
	ErrForbidden       = errors.New("forbidden")
	ErrSessionNotFound = errors.New("verification_session_not_found")
	ErrProfileRequired = errors.New("profile_required")
	ErrSessionDecided  = errors.New("verification_session_decided")
)
