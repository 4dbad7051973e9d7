package commands

import (
	"context"
	"fmt"
	"slices"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/envctl/internal/app/list"
	"github.com/slok/envctl/internal/conventions"
	"github.com/slok/envctl/internal/model"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	typeFilter string
	live       bool
	format     string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List all instances.")
	c.Cmd.Flag("type", "Filter by type (local, docker, ssh).").EnumVar(&c.typeFilter, string(model.EnvTypeLocal), string(model.EnvTypeDocker), string(model.EnvTypeSSH))
	c.Cmd.Flag("live", "Connect to every instance and show its live information.").BoolVar(&c.live)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	var typeFilter *model.EnvType
	if c.typeFilter != "" {
		t := model.EnvType(c.typeFilter)
		typeFilter = &t
	}

	if c.live {
		return c.runLive(ctx, typeFilter)
	}

	rt, err := newRuntime(ctx, c.rootCmd, runtimeOpts{})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	specs, err := rt.repo.ListInstances(ctx)
	if err != nil {
		return fmt.Errorf("could not list instances: %w", err)
	}

	// The local instance always exists.
	local := model.InstanceSpec{
		Name:      conventions.LocalInstanceName,
		Type:      model.EnvTypeLocal,
		EnvPolicy: model.EnvVarPolicy(c.rootCmd.EnvPolicy),
		Wrappers:  c.rootCmd.LocalWrappers,
	}
	if b, ok := rt.registry.Get(conventions.LocalInstanceName); ok {
		local.Local = &model.LocalEnvConfig{WorkingDir: b.WorkingDirectory()}
	}
	specs = append([]model.InstanceSpec{local}, specs...)

	if typeFilter != nil {
		specs = slices.DeleteFunc(specs, func(s model.InstanceSpec) bool { return s.Type != *typeFilter })
	}

	return c.rootCmd.printer(c.format).PrintSpecs(specs)
}

func (c ListCommand) runLive(ctx context.Context, typeFilter *model.EnvType) error {
	rt, err := newRuntime(ctx, c.rootCmd, runtimeOpts{attachAll: true})
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

	instances, err := svc.Run(ctx, list.Request{TypeFilter: typeFilter})
	if err != nil {
		return fmt.Errorf("could not list instances: %w", err)
	}

	return c.rootCmd.printer(c.format).PrintInstances(instances)
}
