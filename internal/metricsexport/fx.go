package metricsexport

import (
	"context"
	"time"

	"github.com/smallbiznis/tandem/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultInterval = time.Minute

var Module = fx.Module("metrics.export",
	fx.Provide(NewPusher),
	fx.Provide(NewFunnel),
	fx.Invoke(Register),
)

// Exporter refreshes the funnel and pushes it on a fixed interval.
type Exporter struct {
	funnel   *Funnel
	pusher   Pusher
	interval time.Duration
	log      *zap.Logger
}

func NewExporter(funnel *Funnel, pusher Pusher, interval time.Duration, log *zap.Logger) *Exporter {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Exporter{
		funnel:   funnel,
		pusher:   pusher,
		interval: interval,
		log:      log,
	}
}

// ExportOnce refreshes and pushes a single snapshot.
func (e *Exporter) ExportOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()

	if err := e.funnel.Refresh(ctx); err != nil {
		return err
	}
	return e.pusher.Push(ctx, e.funnel.Registry())
}

func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if err := e.ExportOnce(ctx); err != nil && ctx.Err() == nil {
			e.log.Warn("metrics export failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func Register(lc fx.Lifecycle, cfg config.Config, funnel *Funnel, pusher Pusher, db *gorm.DB, log *zap.Logger) {
	if pusher == nil || db == nil {
		return
	}

	exp := NewExporter(funnel, pusher, time.Duration(cfg.MetricsExport.IntervalSeconds)*time.Second, log.Named("metrics.export"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				exp.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
