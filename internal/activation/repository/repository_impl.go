package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/activation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, t *domain.ActivationToken) error {
	return db.WithContext(ctx).Create(t).Error
}

func (r *repo) ListByInvite(ctx context.Context, db *gorm.DB, inviteID uuid.UUID) ([]domain.ActivationToken, error) {
	var tokens []domain.ActivationToken
	err := db.WithContext(ctx).
		Where("invite_id = ?", inviteID).
		Order("created_at desc, id desc").
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *repo) ConsumeOutstanding(ctx context.Context, db *gorm.DB, inviteID uuid.UUID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.ActivationToken{}).
		Where("invite_id = ? AND consumed_at IS NULL", inviteID).
		Update("consumed_at", now)
	return res.RowsAffected, res.Error
}

func (r *repo) Consume(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.ActivationToken{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
