package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/envctl/internal/app/create"
	"github.com/slok/envctl/internal/model"
)

type CreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	// Common flags.
	name       string
	envType    string
	envPolicy  string
	wrappers   []string
	persistent bool
	workDir    string

	// Docker-specific flags.
	image          string
	attachTo       string
	composeProject string

	// SSH-specific flags.
	host    string
	port    int
	user    string
	keyFile string
}

// NewCreateCommand returns the create command.
func NewCreateCommand(rootCmd *RootCommand, app *kingpin.Application) *CreateCommand {
	c := &CreateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("create", "Create a new environment instance.")

	// Common flags.
	c.Cmd.Flag("name", "Name for the instance.").Short('n').Required().StringVar(&c.name)
	c.Cmd.Flag("type", "Environment type (local, docker, ssh).").Required().EnumVar(&c.envType, string(model.EnvTypeLocal), string(model.EnvTypeDocker), string(model.EnvTypeSSH))
	c.Cmd.Flag("policy", "Host environment inherited by local commands (inherit_all, core_only, inherit_none).").
		EnumVar(&c.envPolicy, string(model.EnvVarPolicyInheritAll), string(model.EnvVarPolicyCoreOnly), string(model.EnvVarPolicyInheritNone))
	c.Cmd.Flag("wrapper", "Wrapper to apply (logging, readonly). Can be repeated.").Short('w').StringsVar(&c.wrappers)
	c.Cmd.Flag("persistent", "Mark the instance as persistent.").BoolVar(&c.persistent)
	c.Cmd.Flag("workdir", "Working directory (local root dir or container working dir).").StringVar(&c.workDir)

	// Docker-specific flags.
	c.Cmd.Flag("image", "Image of the container to create (docker).").StringVar(&c.image)
	c.Cmd.Flag("attach", "Existing container or compose service to attach to instead of creating one (docker).").StringVar(&c.attachTo)
	c.Cmd.Flag("compose-project", "Compose project of the container (docker).").StringVar(&c.composeProject)

	// SSH-specific flags.
	c.Cmd.Flag("host", "Remote host (ssh).").StringVar(&c.host)
	c.Cmd.Flag("port", "Remote port (ssh).").Default("22").IntVar(&c.port)
	c.Cmd.Flag("user", "Remote user (ssh, default: current user).").StringVar(&c.user)
	c.Cmd.Flag("key-file", "Private key file (ssh, default: ~/.ssh/id_ed25519, id_ecdsa or id_rsa).").StringVar(&c.keyFile)

	return c
}

func (c CreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c CreateCommand) spec() (model.InstanceSpec, error) {
	spec := model.InstanceSpec{
		Name:       c.name,
		Type:       model.EnvType(c.envType),
		EnvPolicy:  model.EnvVarPolicy(c.envPolicy),
		Wrappers:   c.wrappers,
		Persistent: c.persistent,
	}

	switch spec.Type {
	case model.EnvTypeLocal:
		spec.Local = &model.LocalEnvConfig{WorkingDir: c.workDir}
	case model.EnvTypeDocker:
		if c.image == "" && c.attachTo == "" {
			return spec, fmt.Errorf("--image or --attach is required when using docker type")
		}
		spec.Docker = &model.DockerEnvConfig{
			Image:          c.image,
			AttachTo:       c.attachTo,
			ComposeProject: c.composeProject,
			WorkingDir:     c.workDir,
		}
	case model.EnvTypeSSH:
		if c.host == "" {
			return spec, fmt.Errorf("--host is required when using ssh type")
		}
		spec.SSH = &model.SSHEnvConfig{
			Host:    c.host,
			Port:    c.port,
			User:    c.user,
			KeyFile: c.keyFile,
		}
	}

	return spec, nil
}

func (c CreateCommand) Run(ctx context.Context) error {
	spec, err := c.spec()
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, c.rootCmd, runtimeOpts{})
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	res, err := createInstance(ctx, rt, spec)
	if err != nil {
		return fmt.Errorf("could not create instance: %w", err)
	}

	// Output success message.
	fmt.Fprintf(c.rootCmd.Stdout, "Instance created successfully!\n")
	fmt.Fprintf(c.rootCmd.Stdout, "  Name:   %s\n", res.Spec.Name)
	fmt.Fprintf(c.rootCmd.Stdout, "  Type:   %s\n", res.Spec.Type)
	if res.Spec.Docker != nil && res.Spec.Docker.ContainerID != "" {
		fmt.Fprintf(c.rootCmd.Stdout, "  Container: %s\n", res.Spec.Docker.ContainerID)
	}
	if !res.Owned {
		fmt.Fprintf(c.rootCmd.Stdout, "  Attached (resources are not removed with the instance)\n")
	}

	return nil
}

// createInstance creates and stores an instance. Stored instances outlive
// the command so they are taken out of the session before it ends.
func createInstance(ctx context.Context, rt *runtime, spec model.InstanceSpec) (*create.Response, error) {
	svc, err := create.NewService(create.ServiceConfig{
		Builder:    rt.factory,
		Registry:   rt.registry,
		Repository: rt.repo,
		Logger:     rt.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Create(ctx, create.Request{Spec: spec})
	if err != nil {
		return nil, err
	}

	if err := rt.registry.Unregister(spec.Name); err != nil {
		return nil, err
	}

	return res, nil
}
