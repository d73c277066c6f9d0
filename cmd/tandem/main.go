package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tandem/internal/clock"
	"github.com/smallbiznis/tandem/internal/config"
	"github.com/smallbiznis/tandem/internal/metricsexport"
	"github.com/smallbiznis/tandem/internal/migration"
	"github.com/smallbiznis/tandem/internal/observability"
	"github.com/smallbiznis/tandem/internal/scheduler"
	"github.com/smallbiznis/tandem/internal/server"
	"github.com/smallbiznis/tandem/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface and the invite workflow services behind it
		server.Module,

		// Expiry sweeper, disabled with SCHEDULER_ENABLED=false
		scheduler.Module,

		// Funnel gauges pushed to METRICS_EXPORT_ENDPOINT when METRICS_EXPORTER is set
		metricsexport.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
