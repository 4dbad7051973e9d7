package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/envctl/internal/app/list"
)

type InfoCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name   string
	format string
}

// NewInfoCommand returns the info command.
func NewInfoCommand(rootCmd *RootCommand, app *kingpin.Application) *InfoCommand {
	c := &InfoCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("info", "Show the information of an instance.")
	c.Cmd.Arg("name", "Instance name.").Default("local").StringVar(&c.name)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c InfoCommand) Name() string { return c.Cmd.FullCommand() }

func (c InfoCommand) Run(ctx context.Context) error {
	rt, err := newRuntime(ctx, c.rootCmd, instanceOpts(c.name))
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	svc, err := list.NewService(list.ServiceConfig{
		Registry: rt.registry,
		Logger:   rt.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	instances, err := svc.Run(ctx, list.Request{Name: c.name})
	if err != nil {
		return err
	}

	return c.rootCmd.printer(c.format).PrintInstance(instances[0])
}
