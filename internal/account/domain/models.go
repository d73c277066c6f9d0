package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

type Kind string

const (
	KindPaired Kind = "paired"
	KindSingle Kind = "single"
)

type StaffRole string

const (
	StaffNone      StaffRole = ""
	StaffModerator StaffRole = "moderator"
	StaffAdmin     StaffRole = "admin"
)

const TierFree = "free"

type Account struct {
	ID                   snowflake.ID  `gorm:"primaryKey" json:"id"`
	Kind                 Kind          `gorm:"type:text;not null" json:"kind"`
	Username             string        `gorm:"type:text;not null;uniqueIndex" json:"username"`
	Email                string        `gorm:"type:text;not null;uniqueIndex" json:"email"`
	PartnerEmail         *string       `gorm:"type:text" json:"partner_email,omitempty"`
	EmailVerified        bool          `gorm:"not null;default:false" json:"email_verified"`
	PartnerEmailVerified bool          `gorm:"not null;default:false" json:"partner_email_verified"`
	PasswordHash         *string       `gorm:"type:text" json:"-"`
	DisplayName          string        `gorm:"type:text;not null;default:''" json:"display_name"`
	MembershipTier       string        `gorm:"type:text;not null;default:'free'" json:"membership_tier"`
	MembershipExpiresAt  *time.Time    `json:"membership_expires_at,omitempty"`
	StaffRole            StaffRole     `gorm:"type:text;not null;default:''" json:"staff_role,omitempty"`
	SingleRole           *string       `gorm:"type:text" json:"single_role,omitempty"`
	InvitedByAccountID   *snowflake.ID `json:"invited_by_account_id,omitempty"`
	SourceInviteID       *uuid.UUID    `gorm:"type:uuid" json:"source_invite_id,omitempty"`
	CreatedAt            time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time     `gorm:"not null" json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// IsModerator reports whether the account may decide on verification sessions.
func (a Account) IsModerator() bool {
	return a.StaffRole == StaffModerator || a.StaffRole == StaffAdmin
}

// HasActiveMembership reports a paid tier that has not lapsed at now.
func (a Account) HasActiveMembership(now time.Time) bool {
	if a.MembershipTier == "" || a.MembershipTier == TierFree {
		return false
	}
	return a.MembershipExpiresAt != nil && a.MembershipExpiresAt.After(now)
}

// Name is the best display label for emails.
func (a Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

type Profile struct {
	AccountID    snowflake.ID `gorm:"primaryKey" json:"account_id"`
	Nickname     *string      `gorm:"type:text" json:"nickname,omitempty"`
	ContactEmail *string      `gorm:"type:text" json:"contact_email,omitempty"`
	Country      *string      `gorm:"type:text" json:"country,omitempty"`
	City         *string      `gorm:"type:text" json:"city,omitempty"`
	Region       *string      `gorm:"type:text" json:"region,omitempty"`
	Bio          *string      `gorm:"type:text" json:"bio,omitempty"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }
