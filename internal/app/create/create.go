package create

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/environment/factory"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/registry"
	"github.com/slok/envctl/internal/storage"
)

// Builder builds the backend of an instance spec.
type Builder interface {
	Build(ctx context.Context, spec model.InstanceSpec) (*factory.Built, error)
}

// Registry is where the created instances are registered.
type Registry interface {
	Register(name string, b environment.Backend, envType model.EnvType, opts ...registry.RegisterOption) error
	Get(name string) (environment.Backend, bool)
	Destroy(ctx context.Context, name string) error
}

// ServiceConfig is the configuration for the create service.
type ServiceConfig struct {
	Builder  Builder
	Registry Registry
	// Repository persists the created specs (optional).
	Repository storage.InstanceRepository
	Logger     log.Logger
	// TimeNow is used to set the creation time (default: time.Now).
	TimeNow func() time.Time
}

func (c *ServiceConfig) defaults() error {
	if c.Builder == nil {
		return fmt.Errorf("builder is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Create"})
	return nil
}

// Service handles environment instance creation.
type Service struct {
	builder  Builder
	registry Registry
	repo     storage.InstanceRepository
	timeNow  func() time.Time
	logger   log.Logger
}

// NewService creates a new create service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		builder:  cfg.Builder,
		registry: cfg.Registry,
		repo:     cfg.Repository,
		timeNow:  cfg.TimeNow,
		logger:   cfg.Logger,
	}, nil
}

// Request contains the parameters for creating an instance.
type Request struct {
	Spec model.InstanceSpec
}

// Response is the created instance.
type Response struct {
	Spec  model.InstanceSpec
	Owned bool
	Info  map[string]any
}

// Create builds a new instance and registers it. Instances attached to
// resources they didn't create are registered as not owned.
func (s *Service) Create(ctx context.Context, req Request) (*Response, error) {
	spec := req.Spec

	// 1. Validate.
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instance: %w", err)
	}

	// 2. Check name uniqueness before creating anything.
	if _, ok := s.registry.Get(spec.Name); ok {
		return nil, fmt.Errorf("instance %q: %w", spec.Name, model.ErrAlreadyExists)
	}
	if s.repo != nil {
		_, err := s.repo.GetInstance(ctx, spec.Name)
		if err == nil {
			return nil, fmt.Errorf("instance %q: %w", spec.Name, model.ErrAlreadyExists)
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("could not check name uniqueness: %w", err)
		}
	}

	// 3. Build.
	built, err := s.builder.Build(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("could not create %s instance %q: %w", spec.Type, spec.Name, err)
	}

	// 4. Register.
	envPolicy := built.Spec.EnvPolicy
	if envPolicy == "" {
		envPolicy = model.DefaultEnvVarPolicy
	}
	opts := []registry.RegisterOption{registry.WithMetadata(map[string]any{
		"env_policy": string(envPolicy),
		"persistent": built.Spec.Persistent,
	})}
	if !built.Owned {
		opts = append(opts, registry.Unowned())
	}
	if err := s.registry.Register(spec.Name, built.Backend, spec.Type, opts...); err != nil {
		if built.Owned {
			s.release(ctx, spec.Name, built.Backend)
		}
		return nil, fmt.Errorf("could not register instance: %w", err)
	}

	// 5. Persist.
	if s.repo != nil {
		built.Spec.CreatedAt = s.timeNow().UTC()
		if err := s.repo.CreateInstance(ctx, built.Spec); err != nil {
			if derr := s.registry.Destroy(ctx, spec.Name); derr != nil {
				s.logger.Errorf("Could not destroy instance %q after failing to store it: %s", spec.Name, derr)
			}
			return nil, fmt.Errorf("could not store instance: %w", err)
		}
	}

	s.logger.Infof("Created %s instance %q (owned: %t)", spec.Type, spec.Name, built.Owned)

	return &Response{
		Spec:  built.Spec,
		Owned: built.Owned,
		Info:  built.Backend.Info(),
	}, nil
}

// release cleans up a built backend that never made it to the registry.
func (s *Service) release(ctx context.Context, name string, b environment.Backend) {
	if err := b.Cleanup(ctx); err != nil {
		s.logger.Errorf("Could not cleanup unregistered instance %q: %s", name, err)
	}
}
