package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/verification/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByInvite(ctx context.Context, db *gorm.DB, inviteID uuid.UUID) (*domain.Session, error) {
	var session domain.Session
	res := db.WithContext(ctx).Where("invite_id = ?", inviteID).Limit(1).Find(&session)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &session, nil
}

func (r *repo) ListByInvites(ctx context.Context, db *gorm.DB, inviteIDs []uuid.UUID) ([]domain.Session, error) {
	if len(inviteIDs) == 0 {
		return nil, nil
	}
	var sessions []domain.Session
	err := db.WithContext(ctx).
		Where("invite_id IN ?", inviteIDs).
		Order("updated_at desc").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpsertProfile inserts the session or, when one already exists for the
// invite, replaces its profile document and consent stamp.
func (r *repo) UpsertProfile(ctx context.Context, db *gorm.DB, session *domain.Session) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "invite_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"invitee_email",
			"status",
			"submitted_profile",
			"consent_acknowledged_at",
			"updated_at",
		}),
	}).Create(session).Error
}

func (r *repo) UpdateMedia(ctx context.Context, db *gorm.DB, inviteID uuid.UUID, media datatypes.JSON, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Session{}).
		Where("invite_id = ? AND status IN ?", inviteID, []domain.Status{domain.StatusAwaitingUploads, domain.StatusUnderReview}).
		Updates(map[string]any{
			"submitted_media": media,
			"status":          domain.StatusUnderReview,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Decide(ctx context.Context, db *gorm.DB, update domain.DecisionUpdate) (bool, error) {
	updates := map[string]any{
		"status":            update.Status,
		"decision_actor_id": update.ActorID,
		"decision_at":       update.DecidedAt,
		"rejection_reason":  update.RejectionReason,
		"updated_at":        update.DecidedAt,
	}
	if update.ModerationNotes != nil {
		updates["moderation_notes"] = update.ModerationNotes
	}
	res := db.WithContext(ctx).Model(&domain.Session{}).
		Where("invite_id = ? AND status IN ?", update.InviteID, []domain.Status{
			domain.StatusAwaitingProfile,
			domain.StatusAwaitingUploads,
			domain.StatusUnderReview,
		}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
