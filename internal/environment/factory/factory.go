// Package factory builds environment backends from their instance specs.
package factory

import (
	"context"
	"errors"
	"fmt"
	"os"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/environment/docker"
	"github.com/slok/envctl/internal/environment/local"
	envssh "github.com/slok/envctl/internal/environment/ssh"
	"github.com/slok/envctl/internal/environment/wrapper"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/ssh"
)

// SSHConnection is an established connection to a remote host.
type SSHConnection struct {
	Exec       envssh.ExecFunc
	Disconnect envssh.DisconnectFunc
	Transfer   envssh.Copier
	// User is the resolved remote user.
	User string
}

// SSHDialFunc connects to a remote host.
type SSHDialFunc func(ctx context.Context, cfg model.SSHEnvConfig) (*SSHConnection, error)

// Config is the configuration for the factory.
type Config struct {
	// DockerInvoker runs the container operations, required for docker instances.
	DockerInvoker docker.Invoker
	// SSHDial connects to remote hosts (default: ssh client with key auth).
	SSHDial SSHDialFunc
	// KeyManager resolves the ssh keys of the default dialer.
	KeyManager *ssh.KeyManager
	// Environ returns the host environment for local instances (default: os.Environ).
	Environ func() []string
	Logger  log.Logger
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "environment.Factory"})

	if c.Environ == nil {
		c.Environ = os.Environ
	}
	if c.SSHDial == nil {
		if c.KeyManager == nil {
			c.KeyManager = ssh.NewKeyManager(homedir.HomeDir())
		}
		c.SSHDial = newSSHDialer(c.KeyManager, c.Logger)
	}
	return nil
}

// Factory builds backends. It creates the resources the spec asks for
// (e.g a new container) but never registers them.
type Factory struct {
	dockerInvoker docker.Invoker
	sshDial       SSHDialFunc
	environ       func() []string
	logger        log.Logger
}

// New returns a new factory.
func New(cfg Config) (*Factory, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Factory{
		dockerInvoker: cfg.DockerInvoker,
		sshDial:       cfg.SSHDial,
		environ:       cfg.Environ,
		logger:        cfg.Logger,
	}, nil
}

// Built is a backend ready to be registered.
type Built struct {
	Backend environment.Backend
	// Spec is the input spec with the resolved resources (e.g the created
	// container), building it again attaches to the same resources.
	Spec model.InstanceSpec
	// Owned is false when the backend attached to a resource it didn't create.
	Owned bool
}

// Build builds the backend of an instance spec with its wrappers applied.
func (f *Factory) Build(ctx context.Context, spec model.InstanceSpec) (*Built, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instance spec: %w", err)
	}

	var (
		b   environment.Backend
		err error
	)
	switch spec.Type {
	case model.EnvTypeLocal:
		b, err = f.buildLocal(spec)
	case model.EnvTypeDocker:
		b, spec, err = f.buildDocker(ctx, spec)
	case model.EnvTypeSSH:
		b, spec, err = f.buildSSH(ctx, spec)
	default:
		err = fmt.Errorf("unknown environment type %q: %w", spec.Type, model.ErrNotValid)
	}
	if err != nil {
		return nil, err
	}

	wrapped, err := wrapper.Apply(b, spec.Wrappers, f.logger.WithValues(log.Kv{"instance": spec.Name}))
	if err != nil {
		return nil, err
	}

	return &Built{
		Backend: wrapped,
		Spec:    spec,
		Owned:   spec.Docker == nil || spec.Docker.AttachTo == "",
	}, nil
}

func (f *Factory) buildLocal(spec model.InstanceSpec) (environment.Backend, error) {
	cfg := local.BackendConfig{
		EnvPolicy: spec.EnvPolicy,
		Environ:   f.environ,
		Logger:    f.logger,
	}
	if spec.Local != nil {
		cfg.WorkingDir = spec.Local.WorkingDir
	}

	b, err := local.NewBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create local backend: %w", err)
	}
	return b, nil
}

func (f *Factory) buildDocker(ctx context.Context, spec model.InstanceSpec) (environment.Backend, model.InstanceSpec, error) {
	if f.dockerInvoker == nil {
		return nil, spec, fmt.Errorf("docker runtime is not configured: %w", model.ErrNotValid)
	}

	dcfg := *spec.Docker
	switch {
	case dcfg.ContainerID != "":
		// Already resolved, reuse it.
	case dcfg.AttachTo != "":
		id, err := f.resolveAttach(ctx, dcfg)
		if err != nil {
			return nil, spec, err
		}
		dcfg.ContainerID = id
	default:
		workDir := dcfg.WorkingDir
		if workDir == "" {
			workDir = docker.DefaultWorkingDir
		}
		resp, err := f.dockerInvoker.Invoke(ctx, docker.Request{
			Operation:      docker.OperationCreate,
			Image:          dcfg.Image,
			WorkDir:        workDir,
			ComposeProject: dcfg.ComposeProject,
		})
		if err != nil {
			return nil, spec, fmt.Errorf("could not create container: %w", err)
		}
		if resp == nil || resp.Container == "" {
			return nil, spec, fmt.Errorf("container created but no container ID was returned: %w", model.ErrNotValid)
		}
		dcfg.ContainerID = resp.Container
		f.logger.Infof("Created container %s for instance %s", dcfg.ContainerID, spec.Name)
	}

	b, err := docker.NewBackend(docker.BackendConfig{
		Invoker:        f.dockerInvoker,
		ContainerID:    dcfg.ContainerID,
		WorkingDir:     dcfg.WorkingDir,
		ComposeProject: dcfg.ComposeProject,
		Logger:         f.logger,
	})
	if err != nil {
		return nil, spec, fmt.Errorf("could not create docker backend: %w", err)
	}

	spec.Docker = &dcfg
	return b, spec, nil
}

// resolveAttach returns the container to attach to. With a compose project
// the target is a service and `<project>-<service>-1` is tried first,
// falling back to the literal name.
func (f *Factory) resolveAttach(ctx context.Context, cfg model.DockerEnvConfig) (string, error) {
	if cfg.ComposeProject != "" {
		candidate := fmt.Sprintf("%s-%s-1", cfg.ComposeProject, cfg.AttachTo)
		_, err := f.dockerInvoker.Invoke(ctx, docker.Request{Operation: docker.OperationStatus, Container: candidate})
		if err == nil {
			return candidate, nil
		}
		f.logger.Debugf("Compose service container %s not found, using %s: %s", candidate, cfg.AttachTo, err)
		return cfg.AttachTo, nil
	}

	resp, err := f.dockerInvoker.Invoke(ctx, docker.Request{Operation: docker.OperationStatus, Container: cfg.AttachTo})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("container %q not found or not running: %w", cfg.AttachTo, err)
		}
		return "", fmt.Errorf("could not check container %q: %w", cfg.AttachTo, err)
	}
	if resp != nil && resp.Status != "" && resp.Status != "running" {
		return "", fmt.Errorf("container %q is %s, not running: %w", cfg.AttachTo, resp.Status, model.ErrNotValid)
	}

	return cfg.AttachTo, nil
}

func (f *Factory) buildSSH(ctx context.Context, spec model.InstanceSpec) (environment.Backend, model.InstanceSpec, error) {
	scfg := *spec.SSH
	conn, err := f.sshDial(ctx, scfg)
	if err != nil {
		return nil, spec, fmt.Errorf("could not connect to %s: %w", scfg.Host, err)
	}

	b, err := envssh.NewBackend(envssh.BackendConfig{
		Exec:       conn.Exec,
		Disconnect: conn.Disconnect,
		Transfer:   conn.Transfer,
		Host:       scfg.Host,
		Logger:     f.logger,
	})
	if err != nil {
		if conn.Disconnect != nil {
			_ = conn.Disconnect(ctx)
		}
		return nil, spec, fmt.Errorf("could not create ssh backend: %w", err)
	}

	if scfg.User == "" {
		scfg.User = conn.User
	}
	spec.SSH = &scfg
	return b, spec, nil
}

func newSSHDialer(keys *ssh.KeyManager, logger log.Logger) SSHDialFunc {
	return func(ctx context.Context, cfg model.SSHEnvConfig) (*SSHConnection, error) {
		user := cfg.User
		if user == "" {
			user = os.Getenv("USER")
		}

		key, err := keys.LoadPrivateKey(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("could not load ssh key: %w", err)
		}

		client, err := ssh.NewClient(ctx, ssh.ClientConfig{
			Host:       cfg.Host,
			Port:       cfg.Port,
			User:       user,
			PrivateKey: key,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}

		return &SSHConnection{
			Exec:       client.Run,
			Disconnect: func(context.Context) error { return client.Close() },
			Transfer:   client,
			User:       user,
		}, nil
	}
}
