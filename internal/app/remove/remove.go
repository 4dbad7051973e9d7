package remove

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/envctl/internal/conventions"
	"github.com/slok/envctl/internal/environment/factory"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/storage"
)

// Builder rebuilds the backend of a stored instance so it can be cleaned up.
type Builder interface {
	Build(ctx context.Context, spec model.InstanceSpec) (*factory.Built, error)
}

// Registry is where the session instances are registered.
type Registry interface {
	List() []model.InstanceInfo
	Destroy(ctx context.Context, name string) error
	Unregister(name string) error
}

// ServiceConfig is the configuration for the remove service.
type ServiceConfig struct {
	Registry Registry
	// Builder and Repository are needed to remove instances created by
	// previous sessions (optional).
	Builder    Builder
	Repository storage.InstanceRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}

	if c.Repository != nil && c.Builder == nil {
		return fmt.Errorf("builder is required when using a repository")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Remove"})

	return nil
}

// Service removes an instance.
type Service struct {
	registry Registry
	builder  Builder
	repo     storage.InstanceRepository
	logger   log.Logger
}

// NewService creates a new remove service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		registry: cfg.Registry,
		builder:  cfg.Builder,
		repo:     cfg.Repository,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the remove request parameters.
type Request struct {
	Name string
	// Keep forgets the instance without destroying its resources.
	Keep bool
}

// Run removes an instance by name.
// Owned resources (created containers, the local instance temp state) are
// destroyed, resources the instance attached to are only forgotten.
func (s *Service) Run(ctx context.Context, req Request) error {
	if req.Name == "" {
		return fmt.Errorf("name is required: %w", model.ErrNotValid)
	}
	if req.Name == conventions.LocalInstanceName {
		return fmt.Errorf("the %q instance can't be removed: %w", req.Name, model.ErrNotValid)
	}

	s.logger.Debugf("removing instance: %s (keep: %v)", req.Name, req.Keep)

	found, destroyed, err := s.removeRegistered(ctx, req)
	if err != nil {
		return err
	}

	if s.repo != nil {
		stored, err := s.removeStored(ctx, req, destroyed)
		if err != nil {
			return err
		}
		found = found || stored
	}

	if !found {
		return fmt.Errorf("instance not found: %s: %w", req.Name, model.ErrNotFound)
	}

	s.logger.Infof("removed instance: %s", req.Name)
	return nil
}

// removeRegistered returns if the instance was registered and if its
// resources were destroyed.
func (s *Service) removeRegistered(ctx context.Context, req Request) (found, destroyed bool, err error) {
	var info *model.InstanceInfo
	for _, i := range s.registry.List() {
		if i.Name == req.Name {
			info = &i
			break
		}
	}
	if info == nil {
		return false, false, nil
	}

	if !info.Owned || req.Keep {
		if err := s.registry.Unregister(req.Name); err != nil {
			return false, false, fmt.Errorf("could not unregister instance: %w", err)
		}
		return true, false, nil
	}

	if err := s.registry.Destroy(ctx, req.Name); err != nil {
		return false, false, fmt.Errorf("could not remove instance: %w", err)
	}

	return true, true, nil
}

// removeStored deletes the stored spec. If the instance wasn't already
// destroyed in this session it's rebuilt to cleanup its owned resources.
func (s *Service) removeStored(ctx context.Context, req Request, destroyed bool) (bool, error) {
	spec, err := s.repo.GetInstance(ctx, req.Name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("could not get instance: %w", err)
	}

	if !destroyed && !req.Keep {
		built, err := s.builder.Build(ctx, *spec)
		if err != nil {
			return false, fmt.Errorf("could not rebuild instance %q to remove it (use keep to only forget it): %w", req.Name, err)
		}

		if built.Owned {
			if err := built.Backend.Cleanup(ctx); err != nil {
				return false, fmt.Errorf("could not remove instance: %w", err)
			}
		} else {
			s.logger.Infof("instance %s is attached to resources it doesn't own, they are kept", req.Name)
		}
	}

	if err := s.repo.DeleteInstance(ctx, req.Name); err != nil && !errors.Is(err, model.ErrNotFound) {
		return false, fmt.Errorf("could not delete instance from repository: %w", err)
	}

	return true, nil
}
