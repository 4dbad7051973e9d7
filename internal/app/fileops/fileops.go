package fileops

import (
	"context"
	"fmt"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

// Registry gets the registered instances.
type Registry interface {
	Get(name string) (environment.Backend, bool)
}

// ServiceConfig is the configuration for the file operations service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.FileOps"})
	return nil
}

// Service runs file operations on instances by name.
type Service struct {
	registry Registry
	logger   log.Logger
}

// NewService creates a new file operations service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}, nil
}

func (s *Service) backend(name string) (environment.Backend, error) {
	b, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("could not find instance %q: %w", name, model.ErrNotFound)
	}
	return b, nil
}

// Read returns the content of a file.
func (s *Service) Read(ctx context.Context, instance, path string, opts model.ReadOpts) (string, error) {
	b, err := s.backend(instance)
	if err != nil {
		return "", err
	}
	return b.ReadFile(ctx, path, opts)
}

// Write creates or truncates a file.
func (s *Service) Write(ctx context.Context, instance, path, content string) error {
	b, err := s.backend(instance)
	if err != nil {
		return err
	}
	return b.WriteFile(ctx, path, content)
}

// Edit replaces the single occurrence of old with new.
func (s *Service) Edit(ctx context.Context, instance, path, old, new string) (string, error) {
	b, err := s.backend(instance)
	if err != nil {
		return "", err
	}
	return b.EditFile(ctx, path, old, new)
}

// Exists returns if a path exists.
func (s *Service) Exists(ctx context.Context, instance, path string) (bool, error) {
	b, err := s.backend(instance)
	if err != nil {
		return false, err
	}
	return b.FileExists(ctx, path)
}

// List lists a directory, depth less than 1 is the same as 1.
func (s *Service) List(ctx context.Context, instance, path string, depth int) ([]model.FileEntry, error) {
	b, err := s.backend(instance)
	if err != nil {
		return nil, err
	}
	if depth < 1 {
		depth = 1
	}
	return b.ListDir(ctx, path, depth)
}

// Grep searches file contents.
func (s *Service) Grep(ctx context.Context, instance, pattern string, opts model.GrepOpts) (string, error) {
	b, err := s.backend(instance)
	if err != nil {
		return "", err
	}
	return b.Grep(ctx, pattern, opts)
}

// Glob returns the paths matching pattern under path.
func (s *Service) Glob(ctx context.Context, instance, pattern, path string) ([]string, error) {
	b, err := s.backend(instance)
	if err != nil {
		return nil, err
	}
	return b.Glob(ctx, pattern, path)
}
