package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/envctl/internal/conventions"
	"github.com/slok/envctl/internal/model"
	storageio "github.com/slok/envctl/internal/storage/io"
)

type UpCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file string
}

// NewUpCommand returns the up command.
func NewUpCommand(rootCmd *RootCommand, app *kingpin.Application) *UpCommand {
	c := &UpCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("up", "Create the instances declared in an environments file that don't exist yet.")
	c.Cmd.Flag("file", "Environments YAML file (default: <data-dir>/environments.yaml).").Short('f').StringVar(&c.file)

	return c
}

func (c UpCommand) Name() string { return c.Cmd.FullCommand() }

func (c UpCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	file := c.file
	if file == "" {
		file = conventions.EnvironmentsPath(c.rootCmd.DataDir)
	}
	file, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("could not resolve %s: %w", file, err)
	}

	specs, err := storageio.NewEnvironmentsYAMLRepository(os.DirFS(filepath.Dir(file))).GetEnvironments(ctx, filepath.Base(file))
	if err != nil {
		return fmt.Errorf("could not load environments: %w", err)
	}

	rt, err := newRuntime(ctx, c.rootCmd, runtimeOpts{})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	created := 0
	for _, spec := range specs {
		_, err := rt.repo.GetInstance(ctx, spec.Name)
		if err == nil {
			logger.Debugf("Instance %q already exists", spec.Name)
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("could not get instance %q: %w", spec.Name, err)
		}

		if _, err := createInstance(ctx, rt, spec); err != nil {
			return fmt.Errorf("could not create instance %q: %w", spec.Name, err)
		}
		fmt.Fprintf(c.rootCmd.Stdout, "Created %s instance %s\n", spec.Type, spec.Name)
		created++
	}

	fmt.Fprintf(c.rootCmd.Stdout, "%d instances created, %d already existed\n", created, len(specs)-created)

	return nil
}
