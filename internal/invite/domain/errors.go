package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInviter         = errors.New("invalid_inviter")
	ErrInvalidEmail           = errors.New("invalid_invitee_email")
	ErrInvalidRole            = errors.New("invalid_role")
	ErrInvalidTTL             = errors.New("invalid_ttl")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidActor           = errors.New("invalid_actor")
	ErrSelfInvite             = errors.New("self_invite")
	ErrInviterNotFound        = errors.New("inviter_not_found")
	ErrInviteNotFound         = errors.New("invite_not_found")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidTransition      = errors.New("invalid_transition")
	ErrActiveInviteCapReached = errors.New("active_invite_cap_reached")
	ErrInviterIneligible      = errors.New("inviter_ineligible")
	ErrInviteNotPending       = errors.New("invite_not_pending")
	ErrConcurrentUpdate       = errors.New("concurrent_update")
)

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// CapExceededError reports the inviter's current active invite count.
type CapExceededError struct {
	Active int64
	Limit  int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("active_invite_cap_reached: %d of %d active", e.Active, e.Limit)
}

func (e *CapExceededError) Unwrap() error {
	return ErrActiveInviteCapReached
}

type EligibilityReason string

const (
	ReasonAccountKind        EligibilityReason = "account_kind"
	ReasonEmailsUnverified   EligibilityReason = "emails_unverified"
	ReasonMembershipInactive EligibilityReason = "membership_inactive"
)

// EligibilityError explains why an account may not invite.
type EligibilityError struct {
	Reason EligibilityReason
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("inviter_ineligible: %s", e.Reason)
}

func (e *EligibilityError) Unwrap() error {
	return ErrInviterIneligible
}
