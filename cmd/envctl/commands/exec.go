package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/envctl/internal/app/exec"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/utils/env"
)

type ExecCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name       string
	command    []string
	workingDir string
	envSpecs   []string
	files      []string
	timeout    time.Duration
	format     string
}

// NewExecCommand returns the exec command.
func NewExecCommand(rootCmd *RootCommand, app *kingpin.Application) *ExecCommand {
	c := &ExecCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("exec", "Execute a command in an instance.")
	c.Cmd.Arg("name", "Instance name.").Required().StringVar(&c.name)
	c.Cmd.Arg("command", "Command to execute (use -- before command).").Required().StringsVar(&c.command)
	c.Cmd.Flag("workdir", "Working directory for command execution.").Short('w').StringVar(&c.workingDir)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("file", "Local file to upload to the working directory before executing. Can be repeated.").Short('f').StringsVar(&c.files)
	c.Cmd.Flag("timeout", "Command timeout (e.g 30s), zero means no timeout.").Default("0s").DurationVar(&c.timeout)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c ExecCommand) Name() string { return c.Cmd.FullCommand() }

func (c ExecCommand) Run(ctx context.Context) error {
	cmdEnv, err := env.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}

	rt, err := newRuntime(ctx, c.rootCmd, instanceOpts(c.name))
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	// Create exec service.
	svc, err := exec.NewService(exec.ServiceConfig{
		Registry: rt.registry,
		Logger:   rt.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	result, err := svc.Run(ctx, exec.Request{
		Name:    c.name,
		Command: c.command,
		Files:   c.files,
		Opts: model.ExecOpts{
			Timeout:    c.timeout,
			WorkingDir: c.workingDir,
			Env:        cmdEnv,
		},
	})
	if err != nil {
		return fmt.Errorf("could not execute command: %w", err)
	}

	if c.format == formatJSON {
		return c.rootCmd.printer(c.format).PrintExecResult(*result)
	}

	fmt.Fprint(c.rootCmd.Stdout, result.Stdout)
	fmt.Fprint(c.rootCmd.Stderr, result.Stderr)

	// Exit with the command's exit code.
	if result.ExitCode != 0 {
		code := result.ExitCode
		if result.TimedOut {
			code = 124
		}
		return ExitError{Code: code}
	}

	return nil
}
