package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/profile"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusAwaitingProfile Status = "awaiting_profile"
	StatusAwaitingUploads Status = "awaiting_uploads"
	StatusUnderReview     Status = "under_review"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

// Decided reports whether a moderator has ruled on the session.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

type MediaKind string

const (
	MediaPhoto        MediaKind = "photo"
	MediaVerification MediaKind = "verification"
)

type MediaItem struct {
	StorageKey  string    `json:"storageKey"`
	Kind        MediaKind `json:"kind"`
	ContentType string    `json:"contentType"`
	Caption     *string   `json:"caption,omitempty"`
}

// Session is the invitee's onboarding material, one per invite.
type Session struct {
	ID                    snowflake.ID   `gorm:"primaryKey" json:"id"`
	InviteID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"invite_id"`
	InviteeEmail          string         `gorm:"type:text;not null" json:"invitee_email"`
	Status                Status         `gorm:"type:text;not null" json:"status"`
	SubmittedProfile      datatypes.JSON `gorm:"type:jsonb" json:"submitted_profile,omitempty"`
	SubmittedMedia        datatypes.JSON `gorm:"type:jsonb" json:"submitted_media,omitempty"`
	ConsentAcknowledgedAt *time.Time     `json:"consent_acknowledged_at,omitempty"`
	ModerationNotes       *string        `gorm:"type:text" json:"moderation_notes,omitempty"`
	DecisionActorID       *snowflake.ID  `json:"decision_actor_id,omitempty"`
	DecisionAt            *time.Time     `json:"decision_at,omitempty"`
	RejectionReason       *string        `gorm:"type:text" json:"rejection_reason,omitempty"`
	CreatedAt             time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null" json:"updated_at"`
}

func (Session) TableName() string { return "verification_sessions" }

// Profile decodes the stored profile document. A missing document yields an
// empty submission.
func (s Session) Profile() (profile.Submission, error) {
	var out profile.Submission
	if len(s.SubmittedProfile) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(s.SubmittedProfile, &out); err != nil {
		return profile.Submission{}, err
	}
	return out, nil
}

// Media decodes the stored media document.
func (s Session) Media() ([]MediaItem, error) {
	if len(s.SubmittedMedia) == 0 {
		return nil, nil
	}
	var out []MediaItem
	if err := json.Unmarshal(s.SubmittedMedia, &out); err != nil {
		return nil, err
	}
	return out, nil
}
