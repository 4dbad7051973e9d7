package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/envctl/internal/app/remove"
)

type RemoveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	names  []string
	keep   bool
	format string
}

// NewRemoveCommand returns the remove command.
func NewRemoveCommand(rootCmd *RootCommand, app *kingpin.Application) *RemoveCommand {
	c := &RemoveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("rm", "Remove instances.")
	c.Cmd.Arg("names", "Instance names.").Required().StringsVar(&c.names)
	c.Cmd.Flag("keep", "Forget the instance without removing the resources it created.").BoolVar(&c.keep)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c RemoveCommand) Name() string { return c.Cmd.FullCommand() }

func (c RemoveCommand) Run(ctx context.Context) error {
	rt, err := newRuntime(ctx, c.rootCmd, runtimeOpts{})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	// Create remove service.
	svc, err := remove.NewService(remove.ServiceConfig{
		Registry:   rt.registry,
		Builder:    rt.factory,
		Repository: rt.repo,
		Logger:     rt.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	p := c.rootCmd.printer(c.format)
	for _, name := range c.names {
		if err := svc.Run(ctx, remove.Request{Name: name, Keep: c.keep}); err != nil {
			return fmt.Errorf("could not remove instance %q: %w", name, err)
		}
		if err := p.PrintMessage("Removed " + name); err != nil {
			return err
		}
	}

	return nil
}
