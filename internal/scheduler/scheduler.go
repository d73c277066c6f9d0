package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tandem/internal/clock"
	"github.com/smallbiznis/tandem/internal/config"
	invitedomain "github.com/smallbiznis/tandem/internal/invite/domain"
	"github.com/smallbiznis/tandem/internal/lock"
	obsmetrics "github.com/smallbiznis/tandem/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobExpireInvites = "expire_invites"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Policy  *config.InvitePolicyHolder
	Invites invitedomain.Service
	Locker  lock.Locker                  `optional:"true"`
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
	Config  Config                       `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	policy  *config.InvitePolicyHolder
	invites invitedomain.Service
	locker  lock.Locker
	metrics *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Policy == nil || p.Invites == nil {
		return nil, ErrInvalidConfig
	}
	locker := p.Locker
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		policy:  p.Policy,
		invites: p.Invites,
		locker:  locker,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	release, err := s.locker.Acquire(parent, "scheduler:"+name, s.cfg.LockTTL)
	defer release()
	if errors.Is(err, lock.ErrBusy) {
		s.metrics.IncSkipped(name)
		return nil
	}
	if err != nil {
		s.log.Warn("scheduler lock unavailable, running without it", zap.String("job", name), zap.Error(err))
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.newJobRun(ctx, name, batchSize)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	err = fn(ctx, run)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	s.metrics.AddProcessed(name, run.processedCount)
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out", zap.String("job", name), zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce sweeps lapsed pending invites to expired.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	batch := s.policy.Get().SweepBatchSize
	return s.runJob(ctx, JobExpireInvites, batch, s.cfg.JobTimeout, func(ctx context.Context, run *jobRun) error {
		return s.ExpireInvitesJob(ctx, run, batch)
	})
}

// ExpireInvitesJob drains lapsed invites in batches until a short batch
// signals the backlog is empty.
func (s *Scheduler) ExpireInvitesJob(ctx context.Context, run *jobRun, batch int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		moved, err := s.invites.ExpireLapsed(ctx, s.clock.Now(), batch)
		if err != nil {
			return err
		}
		run.AddProcessed(moved)
		if moved < batch || batch <= 0 {
			return nil
		}
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.policy.Get().SweepInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		if next := s.policy.Get().SweepInterval; next != interval && next > 0 {
			interval = next
			ticker.Reset(interval)
			s.log.Info("scheduler interval changed", zap.Duration("interval", interval))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
