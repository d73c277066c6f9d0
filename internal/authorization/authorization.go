package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidActor = errors.New("invalid_actor")
	ErrForbidden    = errors.New("forbidden")
)

const (
	ObjectInvite       = "invite"
	ObjectVerification = "verification_session"
	ObjectActivation   = "activation"
)

const (
	ActionModerationList     = "moderation.list"
	ActionVerificationDecide = "verification.decide"
	ActionActivationReissue  = "activation.reissue"
)

// Service decides whether a staff account may act on an object.
type Service interface {
	Authorize(ctx context.Context, actorID snowflake.ID, object, action string) error
}
