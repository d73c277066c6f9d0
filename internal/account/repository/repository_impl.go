package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/account/domain"
	"github.com/smallbiznis/tandem/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, account *domain.Account) error {
	return conn.WithContext(ctx).Create(account).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	return first(conn.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	stmt := conn.WithContext(ctx).Where("id = ?", id)
	if db.SupportsRowLocks(conn) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return first(stmt)
}

func (r *repo) FindByEmail(ctx context.Context, conn *gorm.DB, email string) (*domain.Account, error) {
	return first(conn.WithContext(ctx).Where("email = ?", email))
}

func (r *repo) UsernameTaken(ctx context.Context, conn *gorm.DB, username string) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).Model(&domain.Account{}).
		Where("username = ?", username).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) SetCredentials(ctx context.Context, conn *gorm.DB, id snowflake.ID, passwordHash string, now time.Time) error {
	return conn.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash":  passwordHash,
			"email_verified": true,
			"updated_at":     now,
		}).Error
}

func (r *repo) SetProvenanceIfAbsent(ctx context.Context, conn *gorm.DB, id snowflake.ID, inviterID snowflake.ID, inviteID uuid.UUID, now time.Time) (bool, error) {
	res := conn.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND invited_by_account_id IS NULL AND source_invite_id IS NULL", id).
		Updates(map[string]any{
			"invited_by_account_id": inviterID,
			"source_invite_id":      inviteID,
			"updated_at":            now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindProfile(ctx context.Context, conn *gorm.DB, accountID snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	res := conn.WithContext(ctx).Where("account_id = ?", accountID).Limit(1).Find(&profile)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &profile, nil
}

// UpsertProfile inserts the profile or updates only the listed columns.
func (r *repo) UpsertProfile(ctx context.Context, conn *gorm.DB, profile *domain.Profile, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	updates := append(append([]string{}, columns...), "updated_at")
	return conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(profile).Error
}

func first(stmt *gorm.DB) (*domain.Account, error) {
	var account domain.Account
	res := stmt.Limit(1).Find(&account)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &account, nil
}
