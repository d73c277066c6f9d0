package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	// FindByIDForUpdate takes a row lock where the dialect supports it.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Account, error)
	UsernameTaken(ctx context.Context, db *gorm.DB, username string) (bool, error)
	SetCredentials(ctx context.Context, db *gorm.DB, id snowflake.ID, passwordHash string, now time.Time) error
	SetProvenanceIfAbsent(ctx context.Context, db *gorm.DB, id snowflake.ID, inviterID snowflake.ID, inviteID uuid.UUID, now time.Time) (bool, error)

	FindProfile(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*Profile, error)
	UpsertProfile(ctx context.Context, db *gorm.DB, profile *Profile, columns []string) error
}
