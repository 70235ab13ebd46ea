package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dukex/signflow/pkg/cmd"
	"github.com/dukex/signflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

var errMissingArgument = errors.New("missing argument")

func returnsCommand() *cli.Command {
	return &cli.Command{
		Name:  "returns",
		Usage: "Apply participant returns",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import a return file (- reads stdin)",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "participant",
						Usage: "Email of the parallel participant the return belongs to",
					},
				},
				Action: withRuntime(importReturn),
			},
		},
	}
}

func importReturn(ctx context.Context, command *cli.Command, rt *cmd.Runtime) error {
	path := command.Args().First()
	if path == "" {
		return fmt.Errorf("%w: return file", errMissingArgument)
	}

	raw, err := readInput(path)
	if err != nil {
		return err
	}

	result, err := rt.Intake.ImportFor(ctx, raw, command.String("participant"))
	if err != nil {
		return err
	}

	return printResult(command, result)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return raw, nil
}

func workflowsCommand() *cli.Command {
	return &cli.Command{
		Name:    "workflows",
		Aliases: []string{"wf"},
		Usage:   "Inspect and cancel circuits",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print a workflow and its steps",
				ArgsUsage: "<workflow-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the workflow as JSON",
					},
				},
				Action: withRuntime(showWorkflow),
			},
			{
				Name:      "cancel",
				Usage:     "Cancel an active workflow",
				ArgsUsage: "<workflow-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "by",
						Usage:    "Who cancels the workflow",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Why the workflow is cancelled",
					},
				},
				Action: withRuntime(cancelWorkflow),
			},
		},
	}
}

func showWorkflow(ctx context.Context, command *cli.Command, rt *cmd.Runtime) error {
	id := command.Args().First()
	if id == "" {
		return fmt.Errorf("%w: workflow id", errMissingArgument)
	}

	wf, err := rt.Engine.Workflow(ctx, id)
	if err != nil {
		return err
	}

	out := command.Root().Writer

	if command.Bool("json") {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		return encoder.Encode(wf)
	}

	fmt.Fprintf(out, "Workflow: %s (%s)\n", wf.Name, wf.ID)
	fmt.Fprintf(out, "Document: %s\n", wf.DocumentID)
	fmt.Fprintf(out, "Status:   %s\n", wf.Status)

	if wf.AwaitingCorrection {
		fmt.Fprintln(out, "Awaiting correction")
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\n#\tSTEP\tPARTICIPANT\tROLE\tSTATUS")

	for i, step := range wf.Steps {
		cursor := " "
		if i == wf.CurrentStepIndex && !wf.IsTerminal() {
			cursor = ">"
		}

		fmt.Fprintf(w, "%s%d\t%s\t%s\t%s\t%s\n", cursor, step.Order, step.ID, step.Participant.Email, step.Role, step.Status)
	}

	return w.Flush()
}

func cancelWorkflow(ctx context.Context, command *cli.Command, rt *cmd.Runtime) error {
	id := command.Args().First()
	if id == "" {
		return fmt.Errorf("%w: workflow id", errMissingArgument)
	}

	result, err := rt.Engine.CancelWorkflow(ctx, id, command.String("by"), command.String("reason"))
	if err != nil {
		return err
	}

	return printResult(command, result)
}

func retentionCommand() *cli.Command {
	return &cli.Command{
		Name:  "retention",
		Usage: "Document retention",
		Commands: []*cli.Command{
			{
				Name:  "sweep",
				Usage: "Delete the content of documents whose retention is due",
				Action: withRuntime(func(ctx context.Context, command *cli.Command, rt *cmd.Runtime) error {
					deleted, err := rt.Sweeper.Sweep(ctx)
					if err != nil {
						return err
					}

					fmt.Fprintf(command.Root().Writer, "Deleted %d document(s)\n", deleted)

					return nil
				}),
			},
		},
	}
}

func remindersCommand() *cli.Command {
	return &cli.Command{
		Name:  "reminders",
		Usage: "Deadline reminders",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Deliver every due reminder",
				Action: withRuntime(func(ctx context.Context, command *cli.Command, rt *cmd.Runtime) error {
					sent, err := rt.Reminders.Deliver(ctx)
					if err != nil {
						return err
					}

					fmt.Fprintf(command.Root().Writer, "Delivered %d reminder(s)\n", sent)

					return nil
				}),
			},
		},
	}
}

// printResult writes the outcome of a transition. A rejection is returned as the command error.
func printResult(command *cli.Command, result *workflow.Result) error {
	if !result.Success {
		return fmt.Errorf("%s: %w", result.Message, result.Reason)
	}

	fmt.Fprintln(command.Root().Writer, result.Message)

	return nil
}
