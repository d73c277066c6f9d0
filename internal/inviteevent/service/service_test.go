package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/tandem/internal/clock"
	"github.com/smallbiznis/tandem/internal/inviteevent/domain"
	"github.com/smallbiznis/tandem/internal/inviteevent/repository"
	obscontext "github.com/smallbiznis/tandem/internal/observability/context"
	"github.com/smallbiznis/tandem/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.InviteEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    conn,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk, conn
}

func TestRecordAndListInOrder(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	inviteID := uuid.New()
	actor := snowflake.ID(42)

	require.NoError(t, svc.Record(ctx, nil, inviteID, domain.EventInviteCreated, &actor, map[string]any{
		"role":  "single_male",
		"token": "0b7a4f36-7c4b-4bd4-9f3a-1c8d1e0e8d1f.c2VjcmV0c2VjcmV0c2VjcmV0",
	}))
	clk.Advance(time.Minute)
	require.NoError(t, svc.Record(ctx, nil, inviteID, domain.EventInviteRevoked, nil, nil))
	require.NoError(t, svc.Record(ctx, nil, uuid.New(), domain.EventInviteCreated, nil, nil))

	events, err := svc.List(context.Background(), inviteID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, domain.EventInviteCreated, events[0].EventType)
	require.NotNil(t, events[0].ActorAccountID)
	assert.Equal(t, actor, *events[0].ActorAccountID)
	assert.Equal(t, "single_male", events[0].Metadata["role"])
	assert.Equal(t, "req-1", events[0].Metadata["request_id"])
	assert.NotContains(t, events[0].Metadata["token"], "c2VjcmV0c2VjcmV0")

	assert.Equal(t, domain.EventInviteRevoked, events[1].EventType)
	assert.Nil(t, events[1].ActorAccountID)
	assert.True(t, events[1].OccurredAt.After(events[0].OccurredAt))
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	svc, _, conn := newTestService(t)
	inviteID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Record(context.Background(), tx, inviteID, domain.EventInviteCreated, nil, nil); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	events, err := svc.List(context.Background(), inviteID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordValidatesInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.ErrorIs(t, svc.Record(context.Background(), nil, uuid.New(), " ", nil, nil), domain.ErrInvalidEventType)
	assert.ErrorIs(t, svc.Record(context.Background(), nil, uuid.Nil, domain.EventInviteCreated, nil, nil), domain.ErrInvalidInvite)
}
