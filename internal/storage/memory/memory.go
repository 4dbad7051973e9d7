package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.InstanceRepository.
type Repository struct {
	instances map[string]model.InstanceSpec
	mu        sync.RWMutex
	logger    log.Logger
}

var _ storage.InstanceRepository = (*Repository)(nil)

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		instances: make(map[string]model.InstanceSpec),
		logger:    cfg.Logger,
	}, nil
}

// CreateInstance stores a new instance spec.
func (r *Repository) CreateInstance(ctx context.Context, s model.InstanceSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[s.Name]; ok {
		return fmt.Errorf("instance %s: %w", s.Name, model.ErrAlreadyExists)
	}

	r.instances[s.Name] = copySpec(s)
	r.logger.Debugf("Created instance in repository: %s", s.Name)

	return nil
}

// GetInstance retrieves an instance spec by name.
func (r *Repository) GetInstance(ctx context.Context, name string) (*model.InstanceSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.instances[name]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", name, model.ErrNotFound)
	}

	c := copySpec(s)
	return &c, nil
}

// ListInstances returns all the instance specs ordered by name.
func (r *Repository) ListInstances(ctx context.Context) ([]model.InstanceSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]model.InstanceSpec, 0, len(r.instances))
	for _, s := range r.instances {
		specs = append(specs, copySpec(s))
	}
	slices.SortFunc(specs, func(a, b model.InstanceSpec) int { return strings.Compare(a.Name, b.Name) })

	return specs, nil
}

// DeleteInstance removes an instance spec.
func (r *Repository) DeleteInstance(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[name]; !ok {
		return fmt.Errorf("instance %s: %w", name, model.ErrNotFound)
	}

	delete(r.instances, name)
	r.logger.Debugf("Deleted instance from repository: %s", name)

	return nil
}

// copySpec deep copies the spec so callers can't mutate the stored one.
func copySpec(s model.InstanceSpec) model.InstanceSpec {
	s.Wrappers = slices.Clone(s.Wrappers)
	if s.Local != nil {
		l := *s.Local
		s.Local = &l
	}
	if s.Docker != nil {
		d := *s.Docker
		s.Docker = &d
	}
	if s.SSH != nil {
		h := *s.SSH
		s.SSH = &h
	}
	return s
}
