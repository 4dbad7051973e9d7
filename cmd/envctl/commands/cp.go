package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/envctl/internal/app/copy"
)

type CpCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	source      string
	destination string
}

// NewCpCommand returns the cp command.
func NewCpCommand(rootCmd *RootCommand, app *kingpin.Application) *CpCommand {
	c := &CpCommand{
		rootCmd: rootCmd,
	}

	c.Cmd = app.Command("cp", "Copy files between host and instance.")
	c.Cmd.Arg("source", "Source path (local path or instance:/path).").Required().StringVar(&c.source)
	c.Cmd.Arg("destination", "Destination path (local path or instance:/path).").Required().StringVar(&c.destination)

	return c
}

func (c CpCommand) Name() string { return c.Cmd.FullCommand() }

func (c CpCommand) Run(ctx context.Context) error {
	// Parse arguments to know the instance to attach.
	parsed, err := copy.ParseCopyArgs(c.source, c.destination)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	rt, err := newRuntime(ctx, c.rootCmd, instanceOpts(parsed.Instance))
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	// Create copy service.
	svc, err := copy.NewService(copy.ServiceConfig{
		Registry: rt.registry,
		Logger:   rt.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute copy operation.
	if err := svc.Run(ctx, copy.Request{
		Source:      c.source,
		Destination: c.destination,
	}); err != nil {
		return err
	}

	// Print success message.
	if parsed.ToInstance {
		fmt.Fprintf(c.rootCmd.Stdout, "Copied %s to %s:%s\n", parsed.LocalPath, parsed.Instance, parsed.RemotePath)
	} else {
		fmt.Fprintf(c.rootCmd.Stdout, "Copied %s:%s to %s\n", parsed.Instance, parsed.RemotePath, parsed.LocalPath)
	}

	return nil
}
