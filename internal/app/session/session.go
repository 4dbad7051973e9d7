package session

import (
	"context"
	"fmt"

	"github.com/slok/envctl/internal/conventions"
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

// Registry is the session instance registry.
type Registry interface {
	Register(name string, b environment.Backend, envType model.EnvType, opts ...registry.RegisterOption) error
	Get(name string) (environment.Backend, bool)
	DestroyAllErrors(ctx context.Context) error
	List() []model.InstanceInfo
}

// ServiceConfig is the configuration for the session service.
type ServiceConfig struct {
	Builder  Builder
	Registry Registry
	// Repository has the instances created by previous sessions (optional).
	Repository storage.InstanceRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Builder == nil {
		return fmt.Errorf("builder is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Session"})
	return nil
}

// Service handles the lifecycle of a session: what instances exist when it
// starts and what is torn down when it ends.
type Service struct {
	builder  Builder
	registry Registry
	repo     storage.InstanceRepository
	logger   log.Logger
}

// NewService creates a new session service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		builder:  cfg.Builder,
		registry: cfg.Registry,
		repo:     cfg.Repository,
		logger:   cfg.Logger,
	}, nil
}

// StartRequest contains the parameters to start a session.
type StartRequest struct {
	// WorkingDir is the root of the default local instance (default: current dir).
	WorkingDir string
	EnvPolicy  model.EnvVarPolicy
	// Wrappers applied to the default local instance.
	Wrappers []string
	// Attach are the names of the stored instances to attach.
	Attach []string
	// AttachAll attaches all the stored instances.
	AttachAll bool
}

// Start registers the default local instance and attaches the stored
// instances. Stored instances are registered as not owned so ending this
// session doesn't tear them down, an instance that can't be rebuilt is skipped.
func (s *Service) Start(ctx context.Context, req StartRequest) error {
	localSpec := model.InstanceSpec{
		Name:      conventions.LocalInstanceName,
		Type:      model.EnvTypeLocal,
		EnvPolicy: req.EnvPolicy,
		Wrappers:  req.Wrappers,
		Local:     &model.LocalEnvConfig{WorkingDir: req.WorkingDir},
	}
	built, err := s.builder.Build(ctx, localSpec)
	if err != nil {
		return fmt.Errorf("could not create the local instance: %w", err)
	}
	if err := s.registry.Register(localSpec.Name, built.Backend, model.EnvTypeLocal); err != nil {
		return fmt.Errorf("could not register the local instance: %w", err)
	}

	if s.repo == nil || (!req.AttachAll && len(req.Attach) == 0) {
		return nil
	}

	specs, err := s.storedSpecs(ctx, req)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		if _, ok := s.registry.Get(spec.Name); ok {
			s.logger.Warningf("Stored instance %q is shadowed by an existing instance", spec.Name)
			continue
		}

		built, err := s.builder.Build(ctx, spec)
		if err != nil {
			s.logger.Warningf("Could not attach stored instance %q: %s", spec.Name, err)
			continue
		}

		policy := spec.EnvPolicy
		if policy == "" {
			policy = model.DefaultEnvVarPolicy
		}
		err = s.registry.Register(spec.Name, built.Backend, spec.Type,
			registry.Unowned(),
			registry.WithMetadata(map[string]any{"env_policy": string(policy), "persistent": spec.Persistent}),
		)
		if err != nil {
			return fmt.Errorf("could not register stored instance %q: %w", spec.Name, err)
		}
		s.logger.Debugf("Attached stored %s instance %q", spec.Type, spec.Name)
	}

	return nil
}

func (s *Service) storedSpecs(ctx context.Context, req StartRequest) ([]model.InstanceSpec, error) {
	if req.AttachAll {
		specs, err := s.repo.ListInstances(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not list stored instances: %w", err)
		}
		return specs, nil
	}

	var specs []model.InstanceSpec
	for _, name := range req.Attach {
		if name == conventions.LocalInstanceName {
			continue
		}
		spec, err := s.repo.GetInstance(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("could not get stored instance %q: %w", name, err)
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// End tears down the instances owned by the session. Failures are logged
// and never stop the session end.
func (s *Service) End(ctx context.Context) {
	instances := s.registry.List()
	if len(instances) == 0 {
		s.logger.Debugf("No instances to clean up")
		return
	}

	s.logger.Debugf("Destroying the owned instances of %d instances", len(instances))
	if err := s.registry.DestroyAllErrors(ctx); err != nil {
		s.logger.Warningf("Some instances failed to clean up: %s", err)
	}
}
