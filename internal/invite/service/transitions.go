package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/invite/domain"
	inviteeventdomain "github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/notification"
	"github.com/smallbiznis/tandem/internal/token"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Advance applies a guarded status change inside tx.
func (s *Service) Advance(ctx context.Context, tx *gorm.DB, invite *domain.Invite, to domain.Status, stampConsumed bool) error {
	if invite == nil {
		return domain.ErrInviteNotFound
	}
	from := invite.Status
	if !domain.CanTransition(from, to) {
		return &domain.TransitionError{From: from, To: to}
	}

	now := s.clock.Now().UTC()
	var consumedAt *time.Time
	if stampConsumed {
		consumedAt = &now
	}
	ok, err := s.repo.Transition(ctx, tx, invite.ID, from, to, consumedAt, now)
	if err != nil {
		return fmt.Errorf("transition invite: %w", err)
	}
	if !ok {
		current, err := s.repo.FindByID(ctx, tx, invite.ID)
		if err != nil {
			return fmt.Errorf("reload invite: %w", err)
		}
		if current == nil {
			return domain.ErrInviteNotFound
		}
		*invite = *current
		return &domain.TransitionError{From: current.Status, To: to}
	}

	s.metrics.RecordInviteTransition(ctx, string(from), string(to))
	invite.Status = to
	invite.UpdatedAt = now
	if stampConsumed && invite.ConsumedAt == nil {
		invite.ConsumedAt = &now
	}
	return nil
}

// Revoke is inviter-only and a no-op on terminal invites.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, actorID snowflake.ID) (*domain.Invite, error) {
	if actorID == 0 {
		return nil, domain.ErrInvalidActor
	}
	var invite *domain.Invite
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invite, err = s.loadOwned(ctx, tx, id, actorID)
		if err != nil {
			return err
		}
		if invite.Status.IsTerminal() {
			return nil
		}
		from := invite.Status
		if err := s.Advance(ctx, tx, invite, domain.StatusRevoked, true); err != nil {
			return err
		}
		return s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventInviteRevoked, &actorID, map[string]any{
			"from_status": string(from),
		})
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// Decline is the invitee's side exit; it needs a valid invite token.
func (s *Service) Decline(ctx context.Context, combined string, reason *string) (*domain.Invite, error) {
	check, err := s.VerifyToken(ctx, combined)
	if err != nil {
		return nil, err
	}
	if !check.Outcome.Valid() {
		return nil, token.Reject(check.Outcome)
	}

	invite := check.Invite
	metadata := map[string]any{"from_status": string(invite.Status)}
	if reason != nil {
		if trimmed := strings.TrimSpace(*reason); trimmed != "" {
			if runes := []rune(trimmed); len(runes) > 500 {
				trimmed = string(runes[:500])
			}
			metadata["reason"] = trimmed
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Advance(ctx, tx, invite, domain.StatusDeclined, true); err != nil {
			return err
		}
		return s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventInviteDeclined, nil, metadata)
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// ConfirmCouple lets the inviter finish an activated invite.
func (s *Service) ConfirmCouple(ctx context.Context, id uuid.UUID, actorID snowflake.ID) (*domain.Invite, error) {
	if actorID == 0 {
		return nil, domain.ErrInvalidActor
	}
	var invite *domain.Invite
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invite, err = s.loadOwned(ctx, tx, id, actorID)
		if err != nil {
			return err
		}
		if err := s.Advance(ctx, tx, invite, domain.StatusCompleted, true); err != nil {
			return err
		}
		metadata := map[string]any{}
		if invite.LinkedAccountID != nil {
			metadata["account_id"] = invite.LinkedAccountID.String()
		}
		return s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventInviteCompleted, &actorID, metadata)
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

// Resend rotates the token of a pending invite and mails the new link. The
// previous token stops matching.
func (s *Service) Resend(ctx context.Context, id uuid.UUID, actorID snowflake.ID) (*domain.IssuedInvite, error) {
	if actorID == 0 {
		return nil, domain.ErrInvalidActor
	}

	var (
		invite *domain.Invite
		issued token.Issued
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invite, err = s.loadOwned(ctx, tx, id, actorID)
		if err != nil {
			return err
		}
		if invite.Status != domain.StatusPending {
			return domain.ErrInviteNotPending
		}

		issued, err = s.codec.Issue(invite.ID)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		ttl := invite.TTL()
		if ttl <= 0 {
			ttl = s.policy.Get().DefaultInviteTTL
		}
		expiresAt := now.Add(ttl)

		ok, err := s.repo.RotateToken(ctx, tx, invite.ID, issued.Hash, issued.Salt, expiresAt, now)
		if err != nil {
			return fmt.Errorf("rotate invite token: %w", err)
		}
		if !ok {
			return domain.ErrInviteNotPending
		}
		invite.TokenHash = issued.Hash
		invite.TokenSalt = issued.Salt
		invite.ExpiresAt = expiresAt
		invite.UpdatedAt = now

		return s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventInviteTokenRotated, &actorID, map[string]any{
			"expires_at": expiresAt.Format(time.RFC3339),
		})
	})
	if err != nil {
		return nil, err
	}

	link := token.Link(s.baseURL, InviteLinkPath, issued.Combined)
	inviterName := ""
	if inviter, err := s.accountRepo.FindByID(ctx, s.db, invite.InviterAccountID); err == nil && inviter != nil {
		inviterName = inviter.Name()
	}
	s.notifier.SendInvite(ctx, notification.InviteEmail{
		To:                 invite.InviteeEmail,
		Link:               link,
		InviterDisplayName: inviterName,
		RoleLabel:          invite.RequestedRole.Label(),
		ExpiresAt:          invite.ExpiresAt,
	})

	return &domain.IssuedInvite{Invite: *invite, Token: issued.Combined, Link: link}, nil
}

// ExpireLapsed moves pending invites whose token lapsed at or before now to
// expired and returns how many were moved.
func (s *Service) ExpireLapsed(ctx context.Context, now time.Time, limit int) (int, error) {
	lapsed, err := s.repo.ListLapsed(ctx, s.db, domain.StatusPending, now.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("list lapsed invites: %w", err)
	}

	expired := 0
	for i := range lapsed {
		invite := lapsed[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.Advance(ctx, tx, &invite, domain.StatusExpired, false); err != nil {
				return err
			}
			return s.events.Record(ctx, tx, invite.ID, inviteeventdomain.EventInviteExpired, nil, map[string]any{
				"expires_at": invite.ExpiresAt.Format(time.RFC3339),
			})
		})
		if errors.Is(err, domain.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			s.log.Warn("failed to expire invite", zap.String("invite_id", invite.ID.String()), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) loadOwned(ctx context.Context, tx *gorm.DB, id uuid.UUID, actorID snowflake.ID) (*domain.Invite, error) {
	invite, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("load invite: %w", err)
	}
	if invite == nil {
		return nil, domain.ErrInviteNotFound
	}
	if invite.InviterAccountID != actorID {
		return nil, domain.ErrForbidden
	}
	return invite, nil
}
