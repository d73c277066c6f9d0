package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.InviteEvent) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListByInvite(ctx context.Context, db *gorm.DB, inviteID uuid.UUID) ([]domain.InviteEvent, error) {
	var events []domain.InviteEvent
	err := db.WithContext(ctx).
		Where("invite_id = ?", inviteID).
		Order("occurred_at asc, id asc").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
