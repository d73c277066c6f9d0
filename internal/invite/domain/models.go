package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

type Role string

const (
	RoleSingleMale   Role = "single_male"
	RoleSingleFemale Role = "single_female"
)

// ParseRole normalizes a requested role.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleSingleMale:
		return RoleSingleMale, true
	case RoleSingleFemale:
		return RoleSingleFemale, true
	default:
		return "", false
	}
}

// Label is the human wording used in emails.
func (r Role) Label() string {
	switch r {
	case RoleSingleMale:
		return "single man"
	case RoleSingleFemale:
		return "single woman"
	default:
		return string(r)
	}
}

// Invite is the aggregate root of the single-member onboarding workflow.
type Invite struct {
	ID               uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	InviterAccountID snowflake.ID  `gorm:"not null;index" json:"inviter_account_id"`
	InviteeEmail     string        `gorm:"type:text;not null;index" json:"invitee_email"`
	RequestedRole    Role          `gorm:"type:text;not null" json:"requested_role"`
	Status           Status        `gorm:"type:text;not null;index" json:"status"`
	TokenHash        string        `gorm:"type:text;not null" json:"-"`
	TokenSalt        string        `gorm:"type:text;not null" json:"-"`
	TTLSeconds       int64         `gorm:"not null" json:"-"`
	ExpiresAt        time.Time     `gorm:"not null;index" json:"expires_at"`
	ConsumedAt       *time.Time    `json:"consumed_at,omitempty"`
	LinkedAccountID  *snowflake.ID `json:"linked_account_id,omitempty"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null" json:"updated_at"`
}

func (Invite) TableName() string { return "invites" }

// TTL returns the lifetime the invite was created with.
func (i Invite) TTL() time.Duration {
	return time.Duration(i.TTLSeconds) * time.Second
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
