package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/clock"
	"github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/inviteevent/masking"
	obscontext "github.com/smallbiznis/tandem/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("inviteevent.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, inviteID uuid.UUID, eventType string, actorID *snowflake.ID, metadata map[string]any) error {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return domain.ErrInvalidEventType
	}
	if inviteID == uuid.Nil {
		return domain.ErrInvalidInvite
	}
	if tx == nil {
		tx = s.db
	}

	payload := masking.MaskMetadata(metadata)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		if payload == nil {
			payload = map[string]any{}
		}
		payload["request_id"] = requestID
	}

	entry := domain.InviteEvent{
		ID:             s.genID.Generate(),
		InviteID:       inviteID,
		EventType:      eventType,
		ActorAccountID: normalizeActor(actorID),
		OccurredAt:     s.clock.Now().UTC(),
	}
	if payload != nil {
		entry.Metadata = datatypes.JSONMap(payload)
	}

	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		s.log.Warn("failed to append invite event",
			zap.String("invite_id", inviteID.String()),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, inviteID uuid.UUID) ([]domain.InviteEvent, error) {
	if inviteID == uuid.Nil {
		return nil, domain.ErrInvalidInvite
	}
	return s.repo.ListByInvite(ctx, s.db, inviteID)
}

func normalizeActor(actorID *snowflake.ID) *snowflake.ID {
	if actorID == nil || *actorID == 0 {
		return nil
	}
	id := *actorID
	return &id
}
