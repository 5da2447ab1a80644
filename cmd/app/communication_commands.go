package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/22club/communications/cmd/app/commands"
	"github.com/22club/communications/internal/app"
	"github.com/22club/communications/internal/config"
)

func getCommunicationCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "send-communication",
			Usage: "Send a communication to its recipients",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Communication ID",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				dispatchUseCase, err := container.DispatchUseCase()
				if err != nil {
					return err
				}

				return commands.RunSendCommunication(
					ctx,
					dispatchUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "process-scheduled",
			Usage: "Send every scheduled communication that is due",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "json",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				scheduledUseCase, err := container.ScheduledUseCase()
				if err != nil {
					return err
				}

				return commands.RunProcessScheduled(
					ctx,
					scheduledUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
