package exec

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

// Registry gets the registered instances.
type Registry interface {
	Get(name string) (environment.Backend, bool)
}

// ServiceConfig is the configuration for the exec service.
type ServiceConfig struct {
	Registry Registry
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Exec"})
	return nil
}

// Service handles command execution in instances.
type Service struct {
	registry Registry
	logger   log.Logger
}

// NewService creates a new exec service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}, nil
}

// Request contains the parameters for executing a command.
type Request struct {
	Name string
	// Command is the shell command, multiple arguments are quoted and
	// joined into a single command.
	Command []string
	Opts    model.ExecOpts
	// Files are local file paths to upload into the instance before executing.
	// Files are uploaded to the working directory (Opts.WorkingDir) or the
	// instance working directory if unset.
	Files []string
}

// Run executes a command in an instance.
func (s *Service) Run(ctx context.Context, req Request) (*model.ExecResult, error) {
	// 1. Validate command
	if len(req.Command) == 0 || strings.TrimSpace(strings.Join(req.Command, "")) == "" {
		return nil, fmt.Errorf("command cannot be empty: %w", model.ErrNotValid)
	}

	// 2. Get the instance.
	b, ok := s.registry.Get(req.Name)
	if !ok {
		return nil, fmt.Errorf("could not find instance %q: %w", req.Name, model.ErrNotFound)
	}

	// 3. Upload files before exec (if any).
	if len(req.Files) > 0 {
		if err := s.upload(ctx, b, req); err != nil {
			return nil, err
		}
	}

	// 4. Execute command.
	cmd := Command(req.Command)
	result, err := b.Exec(ctx, cmd, req.Opts)
	if err != nil {
		return nil, fmt.Errorf("could not execute command: %w", err)
	}

	s.logger.Debugf("executed command in instance %s: exit code %d", req.Name, result.ExitCode)

	return result, nil
}

func (s *Service) upload(ctx context.Context, b environment.Backend, req Request) error {
	// Validate all local files exist before doing any work.
	for _, f := range req.Files {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("upload file %q does not exist: %w: %w", f, err, model.ErrNotValid)
		}
	}

	destDir := req.Opts.WorkingDir
	if destDir == "" {
		destDir = "."
	}

	for _, f := range req.Files {
		remotePath := path.Join(destDir, filepath.Base(f))
		s.logger.Debugf("Uploading %s to %s:%s", f, req.Name, remotePath)

		if err := environment.CopyIn(ctx, b, f, remotePath); err != nil {
			return fmt.Errorf("could not upload file %q: %w", f, err)
		}
	}

	return nil
}

// Command returns the shell command of the arguments. A single argument is
// used as is so shell syntax (pipes, redirections) works.
func Command(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return shellescape.QuoteCommand(args)
}
