package list

import (
	"context"
	"fmt"

	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

// Registry lists the registered instances.
type Registry interface {
	List() []model.InstanceInfo
}

// ServiceConfig is the configuration for the list service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.List"})

	return nil
}

// Service lists instances with optional filtering.
type Service struct {
	registry Registry
	logger   log.Logger
}

// NewService creates a new list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	// Name is an optional filter to only get a single instance, a missing
	// instance is an error.
	Name string
	// TypeFilter is an optional filter to only show instances of this type.
	TypeFilter *model.EnvType
}

// Run lists the registered instances, optionally filtered.
func (s *Service) Run(ctx context.Context, req Request) ([]model.InstanceInfo, error) {
	s.logger.Debugf("listing instances with filter: %q %v", req.Name, req.TypeFilter)

	instances := s.registry.List()

	if req.Name != "" {
		for _, i := range instances {
			if i.Name == req.Name {
				return []model.InstanceInfo{i}, nil
			}
		}
		return nil, fmt.Errorf("instance %q: %w", req.Name, model.ErrNotFound)
	}

	if req.TypeFilter != nil {
		filtered := make([]model.InstanceInfo, 0, len(instances))
		for _, i := range instances {
			if i.Type == *req.TypeFilter {
				filtered = append(filtered, i)
			}
		}
		instances = filtered
	}

	s.logger.Debugf("found %d instances", len(instances))
	return instances, nil
}
