package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	accountdomain "github.com/smallbiznis/tandem/internal/account/domain"
	activationdomain "github.com/smallbiznis/tandem/internal/activation/domain"
	"github.com/smallbiznis/tandem/internal/authorization"
	"github.com/smallbiznis/tandem/internal/clock"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	inviteeventdomain "github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/notification"
	"github.com/smallbiznis/tandem/internal/profile"
	"github.com/smallbiznis/tandem/internal/token"
	"github.com/smallbiznis/tandem/internal/verification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxReasonRunes = 1000

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Invites     invitedomain.Service
	AccountRepo accountdomain.Repository
	Issuer      activationdomain.Issuer
	Events      inviteeventdomain.Service
	Notifier    notification.Dispatcher
	Authz       authorization.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	invites     invitedomain.Service
	accountRepo accountdomain.Repository
	issuer      activationdomain.Issuer
	events      inviteeventdomain.Service
	notifier    notification.Dispatcher
	authz       authorization.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("verification.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		invites:     p.Invites,
		accountRepo: p.AccountRepo,
		issuer:      p.Issuer,
		events:      p.Events,
		notifier:    p.Notifier,
		authz:       p.Authz,
	}
}

// SubmitProfile stores the sanitized profile and moves a pending invite to
// awaiting_verification. Resubmitting while awaiting verification replaces
// the stored profile.
func (s *Service) SubmitProfile(ctx context.Context, req domain.SubmitProfileRequest) (*domain.Session, error) {
	invite, err := s.requireValidInvite(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if !req.ConsentAcknowledged {
		return nil, domain.ErrConsentRequired
	}
	submission := profile.Sanitize(req.Profile)
	if err := profile.Validate(submission); err != nil {
		return nil, err
	}
	if invite.Status != invitedomain.StatusPending && invite.Status != invitedomain.StatusAwaitingVerification {
		return nil, &invitedomain.TransitionError{From: invite.Status, To: invitedomain.StatusAwaitingVerification}
	}

	document, err := json.Marshal(submission)
	if err != nil {
		return nil, err
	}

	var session *domain.Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByInvite(ctx, tx, invite.ID)
		if err != nil {
			return fmt.Errorf("load verification session: %w", err)
		}
		if existing != nil && existing.Status.Decided() {
			return domain.ErrSessionDecided
		}

		now := s.clock.Now().UTC()
		row := domain.Session{
			ID:                    s.genID.Generate(),
			InviteID:              invite.ID,
			InviteeEmail:          invite.InviteeEmail,
			Status:                domain.StatusAwaitingUploads,
			SubmittedProfile:      datatypes.JSON(document),
			ConsentAcknowledgedAt: &now,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if existing != nil {
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			row.SubmittedMedia = existing.SubmittedMedia
			if len(existing.SubmittedMedia) > 0 {
				row.Status = domain.StatusUnderReview
			}
		}
		if err := s.repo.UpsertProfile(ctx, tx, &row); err != nil {
			return fmt.Errorf("upsert verification session: %w", err)
		}

		if invite.Status == invitedomain.StatusPending {
			if err := s.invites.Advance(ctx, tx, invite, invitedomain.StatusAwaitingVerification, false); err != nil {
				return err
			}
		}
		if err := s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventProfileSaved, nil, map[string]any{
			"resubmitted": existing != nil,
		}); err != nil {
			return err
		}

		session, err = s.repo.FindByInvite(ctx, tx, invite.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SubmitMedia attaches the media document and puts the session under review.
func (s *Service) SubmitMedia(ctx context.Context, req domain.SubmitMediaRequest) (*domain.Session, error) {
	invite, err := s.requireValidInvite(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if invite.Status != invitedomain.StatusAwaitingVerification {
		return nil, domain.ErrProfileRequired
	}
	media, err := domain.NormalizeMedia(req.Media)
	if err != nil {
		return nil, err
	}
	document, err := json.Marshal(media)
	if err != nil {
		return nil, err
	}

	var session *domain.Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.UpdateMedia(ctx, tx, invite.ID, datatypes.JSON(document), s.clock.Now().UTC())
		if err != nil {
			return fmt.Errorf("update verification media: %w", err)
		}
		if !ok {
			existing, err := s.repo.FindByInvite(ctx, tx, invite.ID)
			if err != nil {
				return err
			}
			if existing != nil && existing.Status.Decided() {
				return domain.ErrSessionDecided
			}
			return domain.ErrProfileRequired
		}
		if err := s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventMediaSaved, nil, map[string]any{
			"items": len(media),
		}); err != nil {
			return err
		}
		session, err = s.repo.FindByInvite(ctx, tx, invite.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Decide records a moderator ruling. Approval issues an activation token in
// the same transaction and mails it after commit.
func (s *Service) Decide(ctx context.Context, req domain.DecideRequest) (*domain.DecideResponse, error) {
	if req.ActorID == 0 {
		return nil, domain.ErrInvalidActor
	}
	if req.Decision != domain.DecisionApprove && req.Decision != domain.DecisionReject {
		return nil, domain.ErrInvalidDecision
	}

	if err := s.authorize(ctx, req.ActorID, authorization.ObjectVerification, authorization.ActionVerificationDecide); err != nil {
		return nil, err
	}

	reason := trimmed(req.Reason)
	notes := trimmed(req.Notes)
	actorID := req.ActorID

	invite, err := s.invites.Get(ctx, req.InviteID)
	if err != nil {
		return nil, err
	}
	// The status is re-checked by the conditional update inside the transaction.
	if invite.Status != invitedomain.StatusAwaitingVerification {
		target := invitedomain.StatusAwaitingActivation
		if req.Decision == domain.DecisionReject {
			target = invitedomain.StatusRevoked
		}
		return nil, &invitedomain.TransitionError{From: invite.Status, To: target}
	}

	var (
		resp   domain.DecideResponse
		issued *activationdomain.IssuedActivation
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()
		update := domain.DecisionUpdate{
			InviteID:        invite.ID,
			ActorID:         actorID,
			ModerationNotes: notes,
			DecidedAt:       now,
		}

		switch req.Decision {
		case domain.DecisionApprove:
			if err := s.invites.Advance(ctx, tx, invite, invitedomain.StatusAwaitingActivation, false); err != nil {
				return err
			}
			update.Status = domain.StatusApproved
			if err := s.decideSession(ctx, tx, update); err != nil {
				return err
			}
			if err := s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventVerificationApproved, &actorID, nil); err != nil {
				return err
			}
			issued, err = s.issuer.Issue(ctx, tx, invite, &actorID)
			if err != nil {
				return err
			}
		case domain.DecisionReject:
			if err := s.invites.Advance(ctx, tx, invite, invitedomain.StatusRevoked, true); err != nil {
				return err
			}
			update.Status = domain.StatusRejected
			update.RejectionReason = reason
			if err := s.decideSession(ctx, tx, update); err != nil {
				return err
			}
			metadata := map[string]any{}
			if reason != nil {
				metadata["reason"] = *reason
			}
			if err := s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventVerificationRejected, &actorID, metadata); err != nil {
				return err
			}
		}

		session, err := s.repo.FindByInvite(ctx, tx, invite.ID)
		if err != nil {
			return err
		}
		resp.Invite = *invite
		if session != nil {
			resp.Session = *session
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if issued != nil {
		resp.ActivationLink = issued.Link
		s.sendActivation(ctx, resp.Invite, issued)
	}

	s.log.Info("verification decided",
		zap.String("invite_id", resp.Invite.ID.String()),
		zap.String("decision", string(req.Decision)),
		zap.String("actor_id", actorID.String()),
	)
	return &resp, nil
}

func (s *Service) GetSession(ctx context.Context, inviteID uuid.UUID) (*domain.Session, error) {
	session, err := s.repo.FindByInvite(ctx, s.db, inviteID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) decideSession(ctx context.Context, tx *gorm.DB, update domain.DecisionUpdate) error {
	ok, err := s.repo.Decide(ctx, tx, update)
	if err != nil {
		return fmt.Errorf("decide verification session: %w", err)
	}
	if !ok {
		existing, err := s.repo.FindByInvite(ctx, tx, update.InviteID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrSessionNotFound
		}
		return domain.ErrSessionDecided
	}
	return nil
}

func (s *Service) requireValidInvite(ctx context.Context, combined string) (*invitedomain.Invite, error) {
	check, err := s.invites.VerifyToken(ctx, combined)
	if err != nil {
		return nil, err
	}
	if !check.Outcome.Valid() {
		return nil, token.Reject(check.Outcome)
	}
	return check.Invite, nil
}

func (s *Service) sendActivation(ctx context.Context, invite invitedomain.Invite, issued *activationdomain.IssuedActivation) {
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
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	if out == "" {
		return nil
	}
	if runes := []rune(out); len(runes) > maxReasonRunes {
		out = string(runes[:maxReasonRunes])
	}
	return &out
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
