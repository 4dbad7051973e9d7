package fake

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/envctl/internal/environment/docker"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/utils/env"
)

// InvokerConfig is the configuration for the fake invoker.
type InvokerConfig struct {
	// BaseDir is where the fake container filesystems live (default: <tmp>/envctl-fake).
	BaseDir string
	Logger  log.Logger
}

func (c *InvokerConfig) defaults() error {
	if c.BaseDir == "" {
		c.BaseDir = filepath.Join(os.TempDir(), "envctl-fake")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "docker.FakeInvoker"})
	return nil
}

// Invoker is a fake docker.Invoker. Containers are plain host directories and
// commands run on the host with the container directory as working directory,
// it doesn't isolate anything, it's meant for tests and trying things out.
//
// The state lives on disk so different processes see the same containers.
type Invoker struct {
	baseDir string
	logger  log.Logger
	mu      sync.Mutex
}

var _ docker.Invoker = (*Invoker)(nil)

// NewInvoker creates a new fake invoker.
func NewInvoker(cfg InvokerConfig) (*Invoker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Invoker{
		baseDir: cfg.BaseDir,
		logger:  cfg.Logger,
	}, nil
}

func (i *Invoker) Invoke(ctx context.Context, r docker.Request) (*docker.Response, error) {
	switch r.Operation {
	case docker.OperationCreate:
		return i.create(r)
	case docker.OperationExec:
		return i.exec(ctx, r)
	case docker.OperationDestroy:
		return i.destroy(r)
	case docker.OperationStatus:
		return i.status(r)
	}

	return nil, fmt.Errorf("unknown operation %q: %w", r.Operation, model.ErrNotValid)
}

func (i *Invoker) create(r docker.Request) (*docker.Response, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	id := strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
	name := r.Name
	if name == "" {
		name = "envctl-" + id
	}

	dir := i.containerDir(name)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("container %s: %w", name, model.ErrAlreadyExists)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create container dir: %w", err)
	}

	// Env of the container is stored so execs can use it.
	if len(r.Env) > 0 {
		if err := os.WriteFile(i.envFile(name), []byte(strings.Join(env.ToEnviron(r.Env), "\n")), 0600); err != nil {
			return nil, fmt.Errorf("could not store container env: %w", err)
		}
	}

	i.logger.Infof("Created fake container: %s (image: %s)", name, r.Image)
	return &docker.Response{Container: name, Status: "running"}, nil
}

func (i *Invoker) exec(ctx context.Context, r docker.Request) (*docker.Response, error) {
	dir := i.containerDir(r.Container)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("no such container %s: %w", r.Container, model.ErrNotFound)
	}

	workDir := dir
	if r.WorkDir != "" {
		workDir = filepath.Join(dir, r.WorkDir)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", r.Command)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), i.containerEnv(r.Container)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	i.logger.Debugf("Executing command in fake container %s: %s", r.Container, r.Command)
	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("exec on container %s: %w", r.Container, ctx.Err())
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("could not exec on container %s: %w", r.Container, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &docker.Response{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitCode:  exitCode,
		Container: r.Container,
	}, nil
}

func (i *Invoker) destroy(r docker.Request) (*docker.Response, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	dir := i.containerDir(r.Container)
	if _, err := os.Stat(dir); err != nil {
		// Idempotent like the real one.
		i.logger.Debugf("Fake container %s already removed", r.Container)
		return &docker.Response{Container: r.Container}, nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("could not remove container %s: %w", r.Container, err)
	}
	_ = os.Remove(i.envFile(r.Container))

	i.logger.Infof("Removed fake container: %s", r.Container)
	return &docker.Response{Container: r.Container}, nil
}

func (i *Invoker) status(r docker.Request) (*docker.Response, error) {
	if _, err := os.Stat(i.containerDir(r.Container)); err != nil {
		return nil, fmt.Errorf("no such container %s: %w", r.Container, model.ErrNotFound)
	}

	return &docker.Response{Container: r.Container, Status: "running"}, nil
}

// Containers returns the existing fake container names sorted.
func (i *Invoker) Containers() ([]string, error) {
	entries, err := os.ReadDir(i.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

func (i *Invoker) containerDir(name string) string {
	return filepath.Join(i.baseDir, filepath.Base(name))
}

func (i *Invoker) envFile(name string) string {
	return filepath.Join(i.baseDir, "."+filepath.Base(name)+".env")
}

func (i *Invoker) containerEnv(name string) []string {
	data, err := os.ReadFile(i.envFile(name))
	if err != nil {
		return nil
	}
	return strings.Split(string(data), "\n")
}
