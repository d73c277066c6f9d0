package migration

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("migrations",
	fx.Provide(NewRunner),
	fx.Invoke(func(lc fx.Lifecycle, runner *Runner) {
		lc.Append(fx.Hook{
			// A failed attempt is logged by Ensure and retried by /health/ready.
			OnStart: func(ctx context.Context) error {
				_ = runner.Ensure(ctx)
				return nil
			},
		})
	}),
)
