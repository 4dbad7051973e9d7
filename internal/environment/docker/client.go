package docker

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/utils/env"
)

const (
	composeProjectLabel = "com.docker.compose.project"
	nameLabel           = "dev.envctl.name"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecStartOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

// ClientInvokerConfig is the configuration for the Docker SDK invoker.
type ClientInvokerConfig struct {
	Client DockerClient
	// Shell is the shell used to run exec commands (default: /bin/sh).
	Shell  string
	Logger log.Logger
}

func (c *ClientInvokerConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Shell == "" {
		c.Shell = "/bin/sh"
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "docker.ClientInvoker"})
	return nil
}

// ClientInvoker is the Invoker implementation using the Docker API.
type ClientInvoker struct {
	client DockerClient
	shell  string
	logger log.Logger
}

var _ Invoker = (*ClientInvoker)(nil)

// NewClientInvoker creates a new Docker API invoker.
func NewClientInvoker(cfg ClientInvokerConfig) (*ClientInvoker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ClientInvoker{
		client: cfg.Client,
		shell:  cfg.Shell,
		logger: cfg.Logger,
	}, nil
}

func (c *ClientInvoker) Invoke(ctx context.Context, r Request) (*Response, error) {
	switch r.Operation {
	case OperationExec:
		return c.exec(ctx, r)
	case OperationCreate:
		return c.create(ctx, r)
	case OperationDestroy:
		return c.destroy(ctx, r)
	case OperationStatus:
		return c.status(ctx, r)
	}

	return nil, fmt.Errorf("unknown operation %q: %w", r.Operation, model.ErrNotValid)
}

func (c *ClientInvoker) exec(ctx context.Context, r Request) (*Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	execResp, err := c.client.ContainerExecCreate(ctx, r.Container, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   r.WorkDir,
		Cmd:          []string{c.shell, "-c", r.Command},
	})
	if err != nil {
		return nil, c.containerError(r.Container, "failed to create exec", err)
	}

	attachResp, err := c.client.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		// Docker multiplexes both streams on the same connection.
		_, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("failed reading exec output: %w", err)
		}
	case <-ctx.Done():
		// The remote process keeps running, Docker has no way of killing an exec.
		return nil, fmt.Errorf("exec on container %s: %w", r.Container, ctx.Err())
	}

	inspect, err := c.client.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}

	return &Response{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  inspect.ExitCode,
		Container: r.Container,
	}, nil
}

func (c *ClientInvoker) create(ctx context.Context, r Request) (*Response, error) {
	if r.Image == "" {
		return nil, fmt.Errorf("image is required: %w", model.ErrNotValid)
	}

	name := r.Name
	if name == "" {
		id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		name = fmt.Sprintf("envctl-%s", strings.ToLower(id))
	}

	c.logger.Infof("[1/3] Pulling image: %s", r.Image)
	pullResp, err := c.client.ImagePull(ctx, r.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image %s: %w", r.Image, err)
	}
	// Consume the pull response to ensure it completes.
	_, _ = io.Copy(io.Discard, pullResp)
	pullResp.Close()

	c.logger.Infof("[2/3] Creating container: %s", name)
	resp, err := c.client.ContainerCreate(ctx, &container.Config{
		Image:      r.Image,
		Env:        env.ToEnviron(r.Env),
		WorkingDir: r.WorkDir,
		Labels:     map[string]string{nameLabel: name},
		Cmd:        []string{"tail", "-f", "/dev/null"}, // Keep container running.
	}, &container.HostConfig{}, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	c.logger.Infof("[3/3] Starting container: %s", resp.ID)
	if err := c.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Don't leave a created container behind.
		if rmErr := c.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			c.logger.Errorf("Failed to remove container %s: %v", resp.ID, rmErr)
		}
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	return &Response{Container: resp.ID, Status: "running"}, nil
}

func (c *ClientInvoker) destroy(ctx context.Context, r Request) (*Response, error) {
	containers := []string{r.Container}

	if r.ComposeProject != "" {
		list, err := c.client.ContainerList(ctx, container.ListOptions{
			All:     true,
			Filters: filters.NewArgs(filters.Arg("label", composeProjectLabel+"="+r.ComposeProject)),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list compose project %s containers: %w", r.ComposeProject, err)
		}
		for _, ct := range list {
			if ct.ID != r.Container {
				containers = append(containers, ct.ID)
			}
		}
	}

	for _, id := range containers {
		c.logger.Infof("Removing container: %s", id)
		err := c.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
		if err != nil {
			if strings.Contains(err.Error(), "No such container") {
				c.logger.Debugf("Container %s already removed", id)
				continue
			}
			return nil, fmt.Errorf("failed to remove container %s: %w", id, err)
		}
	}

	return &Response{Container: r.Container}, nil
}

func (c *ClientInvoker) status(ctx context.Context, r Request) (*Response, error) {
	info, err := c.client.ContainerInspect(ctx, r.Container)
	if err != nil {
		return nil, c.containerError(r.Container, "failed to inspect container", err)
	}

	status := ""
	if info.State != nil {
		status = string(info.State.Status)
	}

	return &Response{Container: info.ID, Status: status}, nil
}

func (c *ClientInvoker) containerError(ctr, msg string, err error) error {
	if strings.Contains(err.Error(), "No such container") {
		return fmt.Errorf("container %s: %w", ctr, model.ErrNotFound)
	}
	if strings.Contains(err.Error(), "is not running") {
		return fmt.Errorf("container %s is not running: %w", ctr, model.ErrNotValid)
	}
	return fmt.Errorf("%s %s: %w", msg, ctr, err)
}
