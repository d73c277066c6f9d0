package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/tandem/internal/config"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	"github.com/smallbiznis/tandem/internal/lock"
	obsmetrics "github.com/smallbiznis/tandem/internal/observability/metrics"
	"github.com/smallbiznis/tandem/internal/workflowtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, lock.ErrBusy
}

func newTestScheduler(t *testing.T, s *workflowtest.Stack, batch int, locker lock.Locker) (*Scheduler, *prometheus.Registry) {
	t.Helper()
	policy := config.DefaultInvitePolicy()
	policy.SweepBatchSize = batch
	registry := prometheus.NewRegistry()

	sched, err := New(Params{
		Log:     zaptest.NewLogger(t),
		GenID:   s.Node,
		Clock:   s.Clock,
		Policy:  config.NewStaticInvitePolicy(policy),
		Invites: s.Invites,
		Locker:  locker,
		Metrics: obsmetrics.NewSchedulerMetricsWithRegisterer(registry, obsmetrics.Config{Environment: "test"}),
	})
	require.NoError(t, err)
	return sched, registry
}

func createShortInvites(t *testing.T, s *workflowtest.Stack, n int) []*invitedomain.IssuedInvite {
	t.Helper()
	out := make([]*invitedomain.IssuedInvite, 0, n)
	for i := 0; i < n; i++ {
		inviter := s.SeedCouple(t)
		issued, err := s.Invites.Create(context.Background(), invitedomain.CreateInviteRequest{
			InviterAccountID: inviter.ID,
			InviteeEmail:     inviter.Username + "@example.org",
			Role:             string(invitedomain.RoleSingleFemale),
			TTL:              time.Hour,
		})
		require.NoError(t, err)
		out = append(out, issued)
	}
	return out
}

func processed(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		total := 0.0
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnceDrainsLapsedInvitesInBatches(t *testing.T) {
	s := workflowtest.New(t)
	invites := createShortInvites(t, s, 5)
	sched, registry := newTestScheduler(t, s, 2, nil)

	require.NoError(t, sched.RunOnce(context.Background()))
	for _, issued := range invites {
		invite, err := s.Invites.Get(context.Background(), issued.Invite.ID)
		require.NoError(t, err)
		assert.Equal(t, invitedomain.StatusPending, invite.Status)
	}

	s.Clock.Advance(time.Hour)
	require.NoError(t, sched.RunOnce(context.Background()))

	for _, issued := range invites {
		invite, err := s.Invites.Get(context.Background(), issued.Invite.ID)
		require.NoError(t, err)
		assert.Equal(t, invitedomain.StatusExpired, invite.Status)
	}
	assert.Equal(t, 2.0, processed(t, registry, "tandem_scheduler_job_runs_total"))
	assert.Equal(t, 5.0, processed(t, registry, "tandem_scheduler_processed_total"))
}

func TestRunOnceSkipsWhenAnotherReplicaHoldsTheLock(t *testing.T) {
	s := workflowtest.New(t)
	invites := createShortInvites(t, s, 1)
	sched, registry := newTestScheduler(t, s, 10, busyLocker{})

	s.Clock.Advance(2 * time.Hour)
	require.NoError(t, sched.RunOnce(context.Background()))

	invite, err := s.Invites.Get(context.Background(), invites[0].Invite.ID)
	require.NoError(t, err)
	assert.Equal(t, invitedomain.StatusPending, invite.Status)
	assert.Equal(t, 1.0, processed(t, registry, "tandem_scheduler_job_skipped_total"))
	assert.Zero(t, processed(t, registry, "tandem_scheduler_job_runs_total"))
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	s := workflowtest.New(t)
	sched, registry := newTestScheduler(t, s, 10, nil)

	err := sched.runJob(context.Background(), "slow_job", 1, 5*time.Millisecond, func(ctx context.Context, _ *jobRun) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, processed(t, registry, "tandem_scheduler_job_timeouts_total"))
	assert.Equal(t, 1.0, processed(t, registry, "tandem_scheduler_job_errors_total"))
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	s := workflowtest.New(t)
	sched, registry := newTestScheduler(t, s, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.RunForever(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return processed(t, registry, "tandem_scheduler_job_runs_total") >= 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunForever did not return after cancel")
	}
}
