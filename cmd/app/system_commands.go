package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/22club/communications/cmd/app/commands"
	"github.com/22club/communications/internal/app"
	"github.com/22club/communications/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "scheduler",
					Usage: "Also run the scheduled communications processor (overrides SCHEDULER_ENABLED)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if cmd.IsSet("scheduler") {
					cfg.SchedulerEnabled = cmd.Bool("scheduler")
				}
				return commands.RunServer(ctx, cfg, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
	}
}
