package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	accountdomain "github.com/smallbiznis/tandem/internal/account/domain"
	"github.com/smallbiznis/tandem/internal/authorization"
	"github.com/smallbiznis/tandem/internal/clock"
	"github.com/smallbiznis/tandem/internal/config"
	"github.com/smallbiznis/tandem/internal/invite/domain"
	inviteeventdomain "github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/lock"
	"github.com/smallbiznis/tandem/internal/notification"
	"github.com/smallbiznis/tandem/internal/observability/logger"
	"github.com/smallbiznis/tandem/internal/observability/metrics"
	"github.com/smallbiznis/tandem/internal/token"
	verificationdomain "github.com/smallbiznis/tandem/internal/verification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	InviteLinkPath = "/invites/accept"
	tokenKind      = "invite"
	createLockTTL  = 10 * time.Second
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      config.Config
	Policy      *config.InvitePolicyHolder
	Clock       clock.Clock
	Codec       *token.Codec
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	SessionRepo verificationdomain.Repository
	Events      inviteeventdomain.Service
	Notifier    notification.Dispatcher
	Locker      lock.Locker
	Authz       authorization.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	baseURL     string
	policy      *config.InvitePolicyHolder
	clock       clock.Clock
	codec       *token.Codec
	repo        domain.Repository
	accountRepo accountdomain.Repository
	sessionRepo verificationdomain.Repository
	events      inviteeventdomain.Service
	notifier    notification.Dispatcher
	locker      lock.Locker
	authz       authorization.Service
	metrics     *metrics.Metrics
}

func NewService(p Params) domain.Service {
	locker := p.Locker
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invite.service"),
		baseURL:     p.Config.PublicBaseURL,
		policy:      p.Policy,
		clock:       p.Clock,
		codec:       p.Codec,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		sessionRepo: p.SessionRepo,
		events:      p.Events,
		notifier:    p.Notifier,
		locker:      locker,
		authz:       p.Authz,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInviteRequest) (*domain.IssuedInvite, error) {
	if req.InviterAccountID == 0 {
		return nil, domain.ErrInvalidInviter
	}
	email := domain.NormalizeEmail(req.InviteeEmail)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, domain.ErrInvalidEmail
	}
	role, ok := domain.ParseRole(req.Role)
	if !ok {
		return nil, domain.ErrInvalidRole
	}
	policy := s.policy.Get()
	ttl := req.TTL
	if ttl == 0 {
		ttl = policy.DefaultInviteTTL
	}
	if ttl < time.Minute || ttl > policy.MaxInviteTTL {
		return nil, domain.ErrInvalidTTL
	}

	release, err := s.locker.Acquire(ctx, "invite:create:"+req.InviterAccountID.String(), createLockTTL)
	defer release()
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return nil, domain.ErrConcurrentUpdate
		}
		s.log.Warn("invite create lock unavailable, continuing with database lock", zap.Error(err))
	}

	now := s.clock.Now().UTC()
	var (
		invite  domain.Invite
		issued  token.Issued
		inviter *accountdomain.Account
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inviter, err = s.accountRepo.FindByIDForUpdate(ctx, tx, req.InviterAccountID)
		if err != nil {
			return fmt.Errorf("load inviter: %w", err)
		}
		if inviter == nil {
			return domain.ErrInviterNotFound
		}
		if err := checkEligibility(inviter, now); err != nil {
			return err
		}
		if isOwnEmail(inviter, email) {
			return domain.ErrSelfInvite
		}

		active, err := s.repo.CountActiveByInviter(ctx, tx, inviter.ID)
		if err != nil {
			return fmt.Errorf("count active invites: %w", err)
		}
		if active >= int64(policy.ActiveInviteCap) {
			return &domain.CapExceededError{Active: active, Limit: policy.ActiveInviteCap}
		}

		id := uuid.New()
		issued, err = s.codec.Issue(id)
		if err != nil {
			return err
		}
		invite = domain.Invite{
			ID:               id,
			InviterAccountID: inviter.ID,
			InviteeEmail:     email,
			RequestedRole:    role,
			Status:           domain.StatusPending,
			TokenHash:        issued.Hash,
			TokenSalt:        issued.Salt,
			TTLSeconds:       int64(ttl / time.Second),
			ExpiresAt:        now.Add(ttl),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.Insert(ctx, tx, &invite); err != nil {
			return fmt.Errorf("insert invite: %w", err)
		}

		actor := inviter.ID
		return s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventInviteCreated, &actor, map[string]any{
			"role":        string(role),
			"ttl_seconds": strconv.FormatInt(invite.TTLSeconds, 10),
			"expires_at":  invite.ExpiresAt.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInviteCreated(ctx, string(role))
	link := token.Link(s.baseURL, InviteLinkPath, issued.Combined)
	s.notifier.SendInvite(ctx, notification.InviteEmail{
		To:                 invite.InviteeEmail,
		Link:               link,
		InviterDisplayName: inviter.Name(),
		RoleLabel:          role.Label(),
		ExpiresAt:          invite.ExpiresAt,
	})

	logger.WithInvite(logger.WithContext(ctx, s.log), invite.ID.String()).Info("invite created",
		zap.String("role", string(role)),
		zap.Time("expires_at", invite.ExpiresAt),
	)

	return &domain.IssuedInvite{Invite: invite, Token: issued.Combined, Link: link}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Invite, error) {
	invite, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		return nil, domain.ErrInviteNotFound
	}
	return invite, nil
}

func (s *Service) ListMine(ctx context.Context, inviterID snowflake.ID) ([]domain.Invite, error) {
	if inviterID == 0 {
		return nil, domain.ErrInvalidInviter
	}
	invites, err := s.repo.ListByInviter(ctx, s.db, inviterID)
	if err != nil {
		return nil, err
	}
	if invites == nil {
		invites = []domain.Invite{}
	}
	return invites, nil
}

// VerifyToken classifies an invite token without side effects.
func (s *Service) VerifyToken(ctx context.Context, combined string) (domain.TokenCheck, error) {
	check, err := s.verifyToken(ctx, combined)
	if err != nil {
		return domain.TokenCheck{}, err
	}
	s.metrics.RecordTokenVerification(ctx, tokenKind, string(check.Outcome))
	return check, nil
}

func (s *Service) verifyToken(ctx context.Context, combined string) (domain.TokenCheck, error) {
	invalid := domain.TokenCheck{Outcome: token.OutcomeInvalid}

	parsed, ok := token.Parse(combined)
	if !ok {
		return invalid, nil
	}
	invite, err := s.repo.FindByID(ctx, s.db, parsed.SubjectID)
	if err != nil {
		return domain.TokenCheck{}, fmt.Errorf("load invite: %w", err)
	}
	if invite == nil {
		return invalid, nil
	}
	if _, ok := token.Verify(parsed, []token.Candidate{{Hash: invite.TokenHash, Salt: invite.TokenSalt}}); !ok {
		return invalid, nil
	}

	outcome := classify(invite, s.clock.Now())
	if outcome != token.OutcomeValid {
		return domain.TokenCheck{Outcome: outcome}, nil
	}
	return domain.TokenCheck{Outcome: outcome, Invite: invite}, nil
}

func classify(invite *domain.Invite, now time.Time) token.Outcome {
	switch {
	case invite.Status.IsCancelled():
		return token.OutcomeInvalid
	case invite.ConsumedAt != nil,
		invite.Status == domain.StatusAwaitingCouple,
		invite.Status == domain.StatusCompleted:
		return token.OutcomeConsumed
	case invite.Status == domain.StatusExpired, !invite.ExpiresAt.After(now):
		return token.OutcomeExpired
	default:
		return token.OutcomeValid
	}
}

func (s *Service) History(ctx context.Context, id uuid.UUID) ([]inviteeventdomain.InviteEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.events.List(ctx, id)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []inviteeventdomain.InviteEvent{}
	}
	return events, nil
}

func isOwnEmail(account *accountdomain.Account, email string) bool {
	if domain.NormalizeEmail(account.Email) == email {
		return true
	}
	return account.PartnerEmail != nil && domain.NormalizeEmail(*account.PartnerEmail) == email
}
