package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/account/domain"
	"github.com/smallbiznis/tandem/internal/clock"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	inviteeventdomain "github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/profile"
	verificationdomain "github.com/smallbiznis/tandem/internal/verification/domain"
	"github.com/smallbiznis/tandem/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	InviteRepo  invitedomain.Repository
	SessionRepo verificationdomain.Repository
	Events      inviteeventdomain.Service
}

type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	inviteRepo  invitedomain.Repository
	sessionRepo verificationdomain.Repository
	events      inviteeventdomain.Service
	usernames   *usernameGenerator
}

func NewService(p Params) domain.Linker {
	return &Service{
		log:         p.Log.Named("account.linker"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		inviteRepo:  p.InviteRepo,
		sessionRepo: p.SessionRepo,
		events:      p.Events,
		usernames:   newUsernameGenerator(p.Repo, nil),
	}
}

// LinkInviteeAccount reuses the single account registered under the invitee
// email or creates one, then records the account on the invite.
func (s *Service) LinkInviteeAccount(ctx context.Context, tx *gorm.DB, invite *invitedomain.Invite, passwordHash string) (snowflake.ID, error) {
	if invite == nil {
		return 0, invitedomain.ErrInviteNotFound
	}
	email := invitedomain.NormalizeEmail(invite.InviteeEmail)
	if email == "" {
		return 0, domain.ErrInvalidEmail
	}
	now := s.clock.Now().UTC()

	existing, err := s.repo.FindByEmail(ctx, tx, email)
	if err != nil {
		return 0, fmt.Errorf("find account by email: %w", err)
	}

	var accountID snowflake.ID
	reused := existing != nil
	if reused {
		if existing.Kind != domain.KindSingle {
			return 0, domain.ErrEmailInUse
		}
		accountID = existing.ID
		if err := s.repo.SetCredentials(ctx, tx, accountID, passwordHash, now); err != nil {
			return 0, fmt.Errorf("set account credentials: %w", err)
		}
		if _, err := s.repo.SetProvenanceIfAbsent(ctx, tx, accountID, invite.InviterAccountID, invite.ID, now); err != nil {
			return 0, fmt.Errorf("set account provenance: %w", err)
		}
	} else {
		username, err := s.usernames.Generate(ctx, tx, email)
		if err != nil {
			return 0, err
		}
		role := string(invite.RequestedRole)
		inviterID := invite.InviterAccountID
		inviteID := invite.ID
		hash := passwordHash
		account := domain.Account{
			ID:                 s.genID.Generate(),
			Kind:               domain.KindSingle,
			Username:           username,
			Email:              email,
			EmailVerified:      true,
			PasswordHash:       &hash,
			DisplayName:        username,
			MembershipTier:     domain.TierFree,
			SingleRole:         &role,
			InvitedByAccountID: &inviterID,
			SourceInviteID:     &inviteID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.repo.Insert(ctx, tx, &account); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return 0, domain.ErrEmailInUse
			}
			return 0, fmt.Errorf("insert account: %w", err)
		}
		accountID = account.ID
	}

	if err := s.inviteRepo.SetLinkedAccount(ctx, tx, invite.ID, accountID, now); err != nil {
		return 0, fmt.Errorf("link account to invite: %w", err)
	}
	invite.LinkedAccountID = &accountID
	invite.UpdatedAt = now

	if err := s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventUserLinked, nil, map[string]any{
		"account_id":     accountID.String(),
		"reused_account": reused,
	}); err != nil {
		return 0, err
	}

	s.log.Info("invitee account linked",
		zap.String("invite_id", invite.ID.String()),
		zap.String("account_id", accountID.String()),
		zap.Bool("reused_account", reused),
	)
	return accountID, nil
}

// HydrateProfileFromSubmission copies the submitted profile onto the account.
// Fields absent from the submission are left untouched.
func (s *Service) HydrateProfileFromSubmission(ctx context.Context, tx *gorm.DB, inviteID uuid.UUID, accountID snowflake.ID) error {
	session, err := s.sessionRepo.FindByInvite(ctx, tx, inviteID)
	if err != nil {
		return fmt.Errorf("load verification session: %w", err)
	}
	if session == nil {
		return nil
	}

	submission, err := session.Profile()
	if err != nil {
		s.log.Warn("stored profile document is unreadable", zap.String("invite_id", inviteID.String()), zap.Error(err))
		return nil
	}
	sanitized := profile.Sanitize(submission)
	if sanitized.Empty() {
		return nil
	}

	row, columns := profileColumns(accountID, sanitized, s.clock.Now().UTC())
	if err := s.repo.UpsertProfile(ctx, tx, &row, columns); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func profileColumns(accountID snowflake.ID, in profile.Submission, now time.Time) (domain.Profile, []string) {
	row := domain.Profile{AccountID: accountID, UpdatedAt: now}
	columns := make([]string, 0, 6)
	if in.Nickname != nil {
		row.Nickname = in.Nickname
		columns = append(columns, "nickname")
	}
	if in.ContactEmail != nil {
		row.ContactEmail = in.ContactEmail
		columns = append(columns, "contact_email")
	}
	if in.Country != nil {
		row.Country = in.Country
		columns = append(columns, "country")
	}
	if in.City != nil {
		row.City = in.City
		columns = append(columns, "city")
	}
	if in.Region != nil {
		row.Region = in.Region
		columns = append(columns, "region")
	}
	if in.Bio != nil {
		row.Bio = in.Bio
		columns = append(columns, "bio")
	}
	return row, columns
}
