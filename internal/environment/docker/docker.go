package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/environment/shell"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

// DefaultWorkingDir is the working directory reported for containers.
const DefaultWorkingDir = "/workspace"

// BackendConfig is the configuration for the Docker backend.
type BackendConfig struct {
	Invoker     Invoker
	ContainerID string
	// WorkingDir is the directory inside the container (default: /workspace).
	WorkingDir string
	// ComposeProject makes the cleanup destroy the whole compose stack.
	ComposeProject string
	Logger         log.Logger
}

func (c *BackendConfig) defaults() error {
	if c.Invoker == nil {
		return fmt.Errorf("invoker is required")
	}
	if c.ContainerID == "" {
		return fmt.Errorf("container ID is required")
	}
	if c.WorkingDir == "" {
		c.WorkingDir = DefaultWorkingDir
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "environment.Docker", "container": c.ContainerID})
	return nil
}

// Backend is the environment.Backend implementation for Docker containers, every
// operation is translated to a shell command executed in the container.
type Backend struct {
	*shell.Operations

	invoker        Invoker
	containerID    string
	workingDir     string
	composeProject string
	logger         log.Logger
}

var _ environment.Backend = (*Backend)(nil)

// NewBackend returns a new Docker backend for an existing container.
func NewBackend(cfg BackendConfig) (*Backend, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	b := &Backend{
		invoker:        cfg.Invoker,
		containerID:    cfg.ContainerID,
		workingDir:     cfg.WorkingDir,
		composeProject: cfg.ComposeProject,
		logger:         cfg.Logger,
	}
	b.Operations = shell.NewOperations(model.EnvTypeDocker, cfg.WorkingDir, b.run)

	return b, nil
}

func (b *Backend) Type() model.EnvType      { return model.EnvTypeDocker }
func (b *Backend) WorkingDirectory() string { return b.workingDir }

// Platform is always linux, asking the container would need a round-trip.
func (b *Backend) Platform() string  { return "linux" }
func (b *Backend) OSVersion() string { return "Docker container" }

func (b *Backend) Exec(ctx context.Context, cmd string, opts model.ExecOpts) (*model.ExecResult, error) {
	start := time.Now()
	resp, err := b.invoke(ctx, Request{
		Operation: OperationExec,
		Container: b.containerID,
		Command:   shell.WithEnv(cmd, opts.Env),
		WorkDir:   opts.WorkingDir,
		Timeout:   opts.Timeout,
	})
	if err != nil {
		// The container process may still be running, Docker can't kill execs.
		if environment.IsRemoteTimeout(ctx, err, opts.Timeout) {
			b.logger.Warningf("Command timed out after %s: %s", opts.Timeout, cmd)
			return environment.TimedOutResult(cmd, opts.Timeout, time.Since(start)), nil
		}
		return nil, err
	}

	return &model.ExecResult{
		Stdout:     resp.Stdout,
		Stderr:     resp.Stderr,
		ExitCode:   resp.ExitCode,
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// Cleanup destroys the container, or the compose stack if it belongs to one.
func (b *Backend) Cleanup(ctx context.Context) error {
	_, err := b.invoke(ctx, Request{
		Operation:      OperationDestroy,
		Container:      b.containerID,
		ComposeProject: b.composeProject,
	})
	if err != nil {
		return fmt.Errorf("could not destroy container %s: %w", b.containerID, err)
	}

	b.logger.Debugf("Container destroyed")
	return nil
}

func (b *Backend) Info() map[string]any {
	info := map[string]any{
		"container_id": b.containerID,
		"env_type":     string(model.EnvTypeDocker),
		"working_dir":  b.workingDir,
	}
	if b.composeProject != "" {
		info["compose_project"] = b.composeProject
	}
	return info
}

func (b *Backend) run(ctx context.Context, cmd string) (*shell.Output, error) {
	resp, err := b.invoke(ctx, Request{
		Operation: OperationExec,
		Container: b.containerID,
		Command:   cmd,
	})
	if err != nil {
		return nil, err
	}

	return &shell.Output{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}, nil
}

func (b *Backend) invoke(ctx context.Context, r Request) (*Response, error) {
	resp, err := b.invoker.Invoke(ctx, r)
	if err != nil {
		return nil, model.TransportError(model.ErrCodeConnectionLost, model.EnvTypeDocker, err,
			"docker %s on container %s failed: %v", r.Operation, r.Container, err)
	}
	if resp == nil {
		resp = &Response{}
	}

	return resp, nil
}
