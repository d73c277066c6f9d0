package migration

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Runner applies the schema at most once per process. A failed attempt is not
// remembered, so the next Ensure call tries again.
type Runner struct {
	mu    sync.Mutex
	done  bool
	apply func(ctx context.Context) error
	log   *zap.Logger
}

func NewRunner(conn *gorm.DB, log *zap.Logger) *Runner {
	return newRunner(func(ctx context.Context) error {
		if conn.Dialector.Name() != "postgres" {
			return AutoMigrate(conn.WithContext(ctx))
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}, log)
}

func newRunner(apply func(ctx context.Context) error, log *zap.Logger) *Runner {
	return &Runner{apply: apply, log: log.Named("migration")}
}

// Ensure runs the migrations unless a previous call already succeeded.
// Concurrent callers wait for the attempt in flight.
func (r *Runner) Ensure(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return nil
	}
	if err := r.apply(ctx); err != nil {
		r.log.Warn("schema migration failed, will retry on next call", zap.Error(err))
		return err
	}
	r.done = true
	r.log.Info("schema migrations applied")
	return nil
}

// Applied reports whether Ensure has succeeded.
func (r *Runner) Applied() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
