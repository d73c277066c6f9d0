// Package profile holds the onboarding profile document submitted by an
// invitee and the rules that canonicalize it before it is stored or copied
// onto an account.
package profile

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

var ErrInvalidProfile = errors.New("invalid_profile")

// Submission is the loosely shaped profile payload. Absent fields are nil.
type Submission struct {
	Nickname     *string `json:"nickname,omitempty"`
	ContactEmail *string `json:"contactEmail,omitempty"`
	Country      *string `json:"country,omitempty"`
	City         *string `json:"city,omitempty"`
	Region       *string `json:"region,omitempty"`
	Bio          *string `json:"bio,omitempty"`
}

// FieldError names the first field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid_profile: %s %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidProfile
}

const (
	MaxNickname     = 64
	MaxContactEmail = 254
	MaxCountry      = 64
	MaxCity         = 128
	MaxRegion       = 128
	MaxBio          = 2000
)

// Sanitize trims every field, drops empty strings, and caps lengths in runes.
func Sanitize(in Submission) Submission {
	return Submission{
		Nickname:     clean(in.Nickname, MaxNickname),
		ContactEmail: lowerPtr(clean(in.ContactEmail, MaxContactEmail)),
		Country:      clean(in.Country, MaxCountry),
		City:         clean(in.City, MaxCity),
		Region:       clean(in.Region, MaxRegion),
		Bio:          clean(in.Bio, MaxBio),
	}
}

// Validate checks the fields required to submit a profile. Call it on a
// sanitized submission.
func Validate(in Submission) error {
	if in.Nickname == nil {
		return &FieldError{Field: "nickname", Reason: "required"}
	}
	if in.ContactEmail == nil {
		return &FieldError{Field: "contactEmail", Reason: "required"}
	}
	addr, err := mail.ParseAddress(*in.ContactEmail)
	if err != nil || addr.Address != *in.ContactEmail {
		return &FieldError{Field: "contactEmail", Reason: "malformed"}
	}
	if in.Country == nil {
		return &FieldError{Field: "country", Reason: "required"}
	}
	if in.City == nil {
		return &FieldError{Field: "city", Reason: "required"}
	}
	return nil
}

// Empty reports whether no field is set.
func (s Submission) Empty() bool {
	return s.Nickname == nil && s.ContactEmail == nil && s.Country == nil &&
		s.City == nil && s.Region == nil && s.Bio == nil
}

func clean(value *string, limit int) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	if utf8.RuneCountInString(trimmed) > limit {
		trimmed = strings.TrimSpace(string([]rune(trimmed)[:limit]))
	}
	return &trimmed
}

func lowerPtr(value *string) *string {
	if value == nil {
		return nil
	}
	lowered := strings.ToLower(*value)
	return &lowered
}
