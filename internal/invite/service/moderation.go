package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/authorization"
	"github.com/smallbiznis/tandem/internal/invite/domain"
	verificationdomain "github.com/smallbiznis/tandem/internal/verification/domain"
	"github.com/smallbiznis/tandem/pkg/db/pagination"
)

// ListForModeration pages invites in the requested statuses, oldest first,
// each joined with its verification session. Only staff may list.
func (s *Service) ListForModeration(ctx context.Context, req domain.ModerationListRequest) (*domain.ModerationListResponse, error) {
	if err := s.authorize(ctx, req.ActorID, authorization.ActionModerationList); err != nil {
		return nil, err
	}

	for _, status := range req.Statuses {
		if _, ok := domain.ParseStatus(string(status)); !ok {
			return nil, domain.ErrInvalidStatus
		}
	}

	var cursor *domain.ModerationCursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return nil, pagination.ErrInvalidCursor
		}
		id, err := uuid.Parse(decoded.ID)
		if err != nil {
			return nil, pagination.ErrInvalidCursor
		}
		cursor = &domain.ModerationCursor{ID: id, CreatedAt: createdAt.UTC()}
	}

	size := req.Size()
	invites, err := s.repo.ListByStatuses(ctx, s.db, domain.ModerationFilter{
		Statuses: req.Statuses,
		Cursor:   cursor,
		Limit:    size,
	})
	if err != nil {
		return nil, fmt.Errorf("list invites for moderation: %w", err)
	}

	page, info := pagination.BuildCursorPageInfo(invites, size, func(inv domain.Invite) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        inv.ID.String(),
			CreatedAt: inv.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	ids := make([]uuid.UUID, 0, len(page))
	for _, inv := range page {
		ids = append(ids, inv.ID)
	}
	sessions, err := s.sessionRepo.ListByInvites(ctx, s.db, ids)
	if err != nil {
		return nil, fmt.Errorf("list verification sessions: %w", err)
	}
	latest := make(map[uuid.UUID]*domain.SessionSummary, len(sessions))
	for i := range sessions {
		session := sessions[i]
		if _, seen := latest[session.InviteID]; seen {
			continue
		}
		latest[session.InviteID] = summarize(session)
	}

	items := make([]domain.ModerationItem, 0, len(page))
	for _, inv := range page {
		items = append(items, domain.ModerationItem{Invite: inv, Session: latest[inv.ID]})
	}
	return &domain.ModerationListResponse{PageInfo: info, Items: items}, nil
}

func summarize(session verificationdomain.Session) *domain.SessionSummary {
	return &domain.SessionSummary{
		ID:               session.ID,
		Status:           string(session.Status),
		SubmittedProfile: session.SubmittedProfile,
		SubmittedMedia:   session.SubmittedMedia,
		ModerationNotes:  session.ModerationNotes,
		RejectionReason:  session.RejectionReason,
		DecisionAt:       session.DecisionAt,
		UpdatedAt:        session.UpdatedAt,
	}
}

func (s *Service) authorize(ctx context.Context, actorID snowflake.ID, action string) error {
	err := s.authz.Authorize(ctx, actorID, authorization.ObjectInvite, action)
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
