package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	accountdomain "github.com/smallbiznis/tandem/internal/account/domain"
	"github.com/smallbiznis/tandem/internal/account/password"
	"github.com/smallbiznis/tandem/internal/activation/domain"
	"github.com/smallbiznis/tandem/internal/authorization"
	"github.com/smallbiznis/tandem/internal/clock"
	"github.com/smallbiznis/tandem/internal/config"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	inviteeventdomain "github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/notification"
	"github.com/smallbiznis/tandem/internal/observability/metrics"
	"github.com/smallbiznis/tandem/internal/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ActivationLinkPath = "/activate"
	tokenKind          = "activation"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Config      config.Config
	Policy      *config.InvitePolicyHolder
	Clock       clock.Clock
	Codec       *token.Codec
	Repo        domain.Repository
	Invites     invitedomain.Service
	InviteRepo  invitedomain.Repository
	AccountRepo accountdomain.Repository
	Linker      accountdomain.Linker
	Events      inviteeventdomain.Service
	Notifier    notification.Dispatcher
	Authz       authorization.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	baseURL     string
	policy      *config.InvitePolicyHolder
	clock       clock.Clock
	codec       *token.Codec
	repo        domain.Repository
	invites     invitedomain.Service
	inviteRepo  invitedomain.Repository
	accountRepo accountdomain.Repository
	linker      accountdomain.Linker
	events      inviteeventdomain.Service
	notifier    notification.Dispatcher
	authz       authorization.Service
	metrics     *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("activation.service"),
		genID:       p.GenID,
		baseURL:     p.Config.PublicBaseURL,
		policy:      p.Policy,
		clock:       p.Clock,
		codec:       p.Codec,
		repo:        p.Repo,
		invites:     p.Invites,
		inviteRepo:  p.InviteRepo,
		accountRepo: p.AccountRepo,
		linker:      p.Linker,
		events:      p.Events,
		notifier:    p.Notifier,
		authz:       p.Authz,
		metrics:     p.Metrics,
	}
}

// ProvideIssuer exposes the service under the narrower Issuer contract.
func ProvideIssuer(svc domain.Service) domain.Issuer {
	return svc
}

// Issue supersedes any outstanding activation token for the invite and mints
// a new one with its own expiry window.
func (s *Service) Issue(ctx context.Context, tx *gorm.DB, invite *invitedomain.Invite, actorID *snowflake.ID) (*domain.IssuedActivation, error) {
	if invite == nil {
		return nil, invitedomain.ErrInviteNotFound
	}
	if tx == nil {
		tx = s.db
	}
	now := s.clock.Now().UTC()

	superseded, err := s.repo.ConsumeOutstanding(ctx, tx, invite.ID, now)
	if err != nil {
		return nil, fmt.Errorf("supersede activation tokens: %w", err)
	}

	issued, err := s.codec.Issue(invite.ID)
	if err != nil {
		return nil, err
	}
	row := domain.ActivationToken{
		ID:               s.genID.Generate(),
		InviteID:         invite.ID,
		TokenHash:        issued.Hash,
		TokenSalt:        issued.Salt,
		ExpiresAt:        now.Add(s.policy.Get().ActivationTTL),
		CreatedByActorID: actorID,
		CreatedAt:        now,
	}
	if err := s.repo.Insert(ctx, tx, &row); err != nil {
		return nil, fmt.Errorf("insert activation token: %w", err)
	}

	if err := s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventActivationTokenCreated, actorID, map[string]any{
		"expires_at": row.ExpiresAt.Format(time.RFC3339),
		"superseded": superseded,
	}); err != nil {
		return nil, err
	}

	return &domain.IssuedActivation{
		Token:     issued.Combined,
		Link:      token.Link(s.baseURL, ActivationLinkPath, issued.Combined),
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (s *Service) Verify(ctx context.Context, combined string) (domain.Check, error) {
	check, _, err := s.verify(ctx, combined)
	if err != nil {
		return domain.Check{}, err
	}
	s.metrics.RecordTokenVerification(ctx, tokenKind, string(check.Outcome))
	return check, nil
}

func (s *Service) verify(ctx context.Context, combined string) (domain.Check, *domain.ActivationToken, error) {
	invalid := domain.Check{Outcome: token.OutcomeInvalid}

	parsed, ok := token.Parse(combined)
	if !ok {
		return invalid, nil, nil
	}
	rows, err := s.repo.ListByInvite(ctx, s.db, parsed.SubjectID)
	if err != nil {
		return domain.Check{}, nil, fmt.Errorf("load activation tokens: %w", err)
	}
	candidates := make([]token.Candidate, len(rows))
	for i, row := range rows {
		candidates[i] = token.Candidate{Hash: row.TokenHash, Salt: row.TokenSalt}
	}
	idx, ok := token.Verify(parsed, candidates)
	if !ok {
		return invalid, nil, nil
	}
	row := rows[idx]

	if row.ConsumedAt != nil {
		return domain.Check{Outcome: token.OutcomeConsumed}, &row, nil
	}
	if !row.ExpiresAt.After(s.clock.Now()) {
		return domain.Check{Outcome: token.OutcomeExpired}, &row, nil
	}

	invite, err := s.inviteRepo.FindByID(ctx, s.db, row.InviteID)
	if err != nil {
		return domain.Check{}, nil, fmt.Errorf("load invite: %w", err)
	}
	if invite == nil {
		return invalid, nil, nil
	}
	switch invite.Status {
	case invitedomain.StatusAwaitingActivation:
		return domain.Check{Outcome: token.OutcomeValid, Invite: invite}, &row, nil
	case invitedomain.StatusAwaitingCouple, invitedomain.StatusCompleted:
		return domain.Check{Outcome: token.OutcomeConsumed}, &row, nil
	default:
		return invalid, nil, nil
	}
}

// Complete redeems the activation token, links the account and advances the
// invite to awaiting_couple. Nothing is written unless the token is valid.
func (s *Service) Complete(ctx context.Context, req domain.CompleteRequest) (*domain.CompleteResponse, error) {
	check, row, err := s.verify(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenVerification(ctx, tokenKind, string(check.Outcome))
	if !check.Outcome.Valid() {
		return nil, token.Reject(check.Outcome)
	}
	if err := password.CheckStrength(req.Password); err != nil {
		return nil, domain.ErrWeakPassword
	}
	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	invite := check.Invite
	var accountID snowflake.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Consume(ctx, tx, row.ID, s.clock.Now().UTC())
		if err != nil {
			return fmt.Errorf("consume activation token: %w", err)
		}
		if !ok {
			return token.Reject(token.OutcomeConsumed)
		}

		accountID, err = s.linker.LinkInviteeAccount(ctx, tx, invite, hash)
		if err != nil {
			return err
		}
		if err := s.linker.HydrateProfileFromSubmission(ctx, tx, invite.ID, accountID); err != nil {
			return err
		}
		if err := s.invites.Advance(ctx, tx, invite, invitedomain.StatusAwaitingCouple, true); err != nil {
			if errors.Is(err, invitedomain.ErrInvalidTransition) && invite.Status == invitedomain.StatusAwaitingCouple {
				return token.Reject(token.OutcomeConsumed)
			}
			return err
		}
		actor := accountID
		return s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventActivationCompleted, &actor, map[string]any{
			"account_id": accountID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyAdminNewMember(ctx, notification.AdminNotice{
		AccountType:      string(accountdomain.KindSingle),
		Role:             string(invite.RequestedRole),
		InviterAccountID: invite.InviterAccountID,
		InviteID:         invite.ID,
		AccountID:        accountID,
	})
	s.log.Info("activation completed",
		zap.String("invite_id", invite.ID.String()),
		zap.String("account_id", accountID.String()),
	)

	return &domain.CompleteResponse{AccountID: accountID, Invite: *invite}, nil
}

// Reissue lets a moderator send a fresh activation link.
func (s *Service) Reissue(ctx context.Context, inviteID uuid.UUID, actorID snowflake.ID) (*domain.IssuedActivation, error) {
	if err := s.authorize(ctx, actorID, authorization.ObjectActivation, authorization.ActionActivationReissue); err != nil {
		return nil, err
	}

	invite, err := s.invites.Get(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if invite.Status != invitedomain.StatusAwaitingActivation {
		return nil, &invitedomain.TransitionError{From: invite.Status, To: invitedomain.StatusAwaitingActivation}
	}

	var issued *domain.IssuedActivation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		issued, err = s.Issue(ctx, tx, invite, &actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	inviterName := ""
	if inviter, err := s.accountRepo.FindByID(ctx, s.db, invite.InviterAccountID); err == nil && inviter != nil {
		inviterName = inviter.Name()
	}
	s.notifier.SendActivation(ctx, notification.InviteEmail{
		To:                 invite.InviteeEmail,
		Link:               issued.Link,
		InviterDisplayName: inviterName,
		RoleLabel:          invite.RequestedRole.Label(),
		ExpiresAt:          issued.ExpiresAt,
	})
	return issued, nil
}

func (s *Service) authorize(ctx context.Context, actorID snowflake.ID, object, action string) error {
	err := s.authz.Authorize(ctx, actorID, object, action)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, authorization.ErrInvalidActor):
		return domain.ErrInvalidActor
	case errors.Is(err, authorization.ErrForbidden):
		return domain.ErrForbidden
	default:
		return err
	}
}
