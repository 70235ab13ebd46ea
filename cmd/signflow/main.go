// Package main provides the signflow operator command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/signflow/pkg/cmd"
	"github.com/dukex/signflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "signflow",
		Usage:                 "Operate document validation circuits",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a directory)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the signflow.yaml settings file",
				Sources: cli.EnvVars("SIGNFLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Commands: []*cli.Command{
			returnsCommand(),
			workflowsCommand(),
			retentionCommand(),
			remindersCommand(),
		},
	}
}

type runtimeAction func(ctx context.Context, command *cli.Command, rt *cmd.Runtime) error

// withRuntime opens the runtime for the duration of one command.
func withRuntime(action runtimeAction) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		log.Setup(command.String("log-level"), command.String("log-format"))

		logger := log.WithModule("cli")

		rt, err := cmd.NewRuntime(ctx, logger, cmd.RuntimeOptions{
			DatabaseURL: command.String("database-url"),
			ConfigFile:  command.String("config"),
		})
		if err != nil {
			return err
		}

		defer func() {
			if err := rt.Close(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to close runtime", "error", err)
			}
		}()

		return action(ctx, command, rt)
	}
}
