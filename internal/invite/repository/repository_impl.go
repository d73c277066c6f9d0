package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/invite/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invite *domain.Invite) error {
	return db.WithContext(ctx).Create(invite).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Invite, error) {
	var invite domain.Invite
	res := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&invite)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &invite, nil
}

func (r *repo) ListByInviter(ctx context.Context, db *gorm.DB, inviterID snowflake.ID) ([]domain.Invite, error) {
	var invites []domain.Invite
	err := db.WithContext(ctx).
		Where("inviter_account_id = ?", inviterID).
		Order("created_at desc, id desc").
		Find(&invites).Error
	if err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *repo) ListByStatuses(ctx context.Context, db *gorm.DB, filter domain.ModerationFilter) ([]domain.Invite, error) {
	var invites []domain.Invite
	stmt := db.WithContext(ctx).Model(&domain.Invite{})
	if len(filter.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", filter.Statuses)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at > ?) OR (created_at = ? AND id > ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	stmt = stmt.Order("created_at asc, id asc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *repo) CountActiveByInviter(ctx context.Context, db *gorm.DB, inviterID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Invite{}).
		Where("inviter_account_id = ? AND status IN ?", inviterID, domain.NonTerminalStatuses()).
		Count(&count).Error
	return count, err
}

func (r *repo) ListLapsed(ctx context.Context, db *gorm.DB, status domain.Status, now time.Time, limit int) ([]domain.Invite, error) {
	var invites []domain.Invite
	stmt := db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", status, now).
		Order("expires_at asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id uuid.UUID, from, to domain.Status, consumedAt *time.Time, now time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	if consumedAt != nil {
		updates["consumed_at"] = gorm.Expr("COALESCE(consumed_at, ?)", *consumedAt)
	}
	res := db.WithContext(ctx).Model(&domain.Invite{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetLinkedAccount(ctx context.Context, db *gorm.DB, id uuid.UUID, accountID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Model(&domain.Invite{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"linked_account_id": accountID,
			"updated_at":        now,
		}).Error
}

func (r *repo) RotateToken(ctx context.Context, db *gorm.DB, id uuid.UUID, hash, salt string, expiresAt, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Invite{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"token_hash": hash,
			"token_salt": salt,
			"expires_at": expiresAt,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
