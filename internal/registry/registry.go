// Package registry tracks the named environment instances of a session and
// owns their destruction.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

// Config is the configuration for the registry.
type Config struct {
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "registry.Memory"})
	return nil
}

type instance struct {
	name     string
	backend  environment.Backend
	envType  model.EnvType
	metadata map[string]any
	owned    bool
}

// Registry is an in-memory directory of named backends. Destroying a backend
// must always go through the registry so its cleanup is never skipped.
//
// Lifecycle calls (register, destroy) are expected to be serialized by the
// owner session, the lock only protects the map.
type Registry struct {
	instances map[string]*instance
	mu        sync.Mutex
	logger    log.Logger
}

// New returns an empty registry.
func New(cfg Config) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Registry{
		instances: map[string]*instance{},
		logger:    cfg.Logger,
	}, nil
}

// RegisterOption customizes a registration.
type RegisterOption func(*instance)

// WithMetadata sets caller metadata on the instance (e.g policy settings).
func WithMetadata(md map[string]any) RegisterOption {
	return func(i *instance) {
		i.metadata = maps.Clone(md)
	}
}

// Unowned marks an instance this registry didn't create, bulk teardown
// leaves it untouched.
func Unowned() RegisterOption {
	return func(i *instance) {
		i.owned = false
	}
}

// Register adds a backend under name, registering an existing name fails.
func (r *Registry) Register(name string, b environment.Backend, envType model.EnvType, opts ...RegisterOption) error {
	if name == "" {
		return fmt.Errorf("instance name is required: %w", model.ErrNotValid)
	}
	if b == nil {
		return fmt.Errorf("backend is required: %w", model.ErrNotValid)
	}

	inst := &instance{
		name:     name,
		backend:  b,
		envType:  envType,
		metadata: map[string]any{},
		owned:    true,
	}
	for _, opt := range opts {
		opt(inst)
	}
	if inst.metadata == nil {
		inst.metadata = map[string]any{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[name]; ok {
		return fmt.Errorf("instance %q: %w", name, model.ErrAlreadyExists)
	}
	r.instances[name] = inst
	r.logger.Debugf("Registered %s instance %q (owned: %t)", envType, name, inst.owned)

	return nil
}

// Get returns the backend registered under name.
func (r *Registry) Get(name string) (environment.Backend, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[name]
	if !ok {
		return nil, false
	}
	return inst.backend, true
}

// Destroy removes the instance and then cleans up its backend, ownership is
// ignored. The instance is gone even if the cleanup fails.
func (r *Registry) Destroy(ctx context.Context, name string) error {
	r.mu.Lock()
	inst, ok := r.instances[name]
	delete(r.instances, name)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("instance %q: %w", name, model.ErrNotFound)
	}

	if err := inst.backend.Cleanup(ctx); err != nil {
		return fmt.Errorf("could not cleanup instance %q: %w", name, err)
	}
	r.logger.Debugf("Destroyed instance %q", name)

	return nil
}

// Unregister removes the instance without cleaning up its backend.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[name]; !ok {
		return fmt.Errorf("instance %q: %w", name, model.ErrNotFound)
	}
	delete(r.instances, name)
	r.logger.Debugf("Unregistered instance %q", name)

	return nil
}

// DestroyAll destroys every owned instance in name order. It keeps going on
// failures and returns the first one, use DestroyAllErrors to get all of them.
func (r *Registry) DestroyAll(ctx context.Context) error {
	errs := r.destroyAll(ctx)
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// DestroyAllErrors is like DestroyAll but returns all the failures joined.
func (r *Registry) DestroyAllErrors(ctx context.Context) error {
	return errors.Join(r.destroyAll(ctx)...)
}

func (r *Registry) destroyAll(ctx context.Context) []error {
	r.mu.Lock()
	names := []string{}
	for name, inst := range r.instances {
		if inst.owned {
			names = append(names, name)
		}
	}
	r.mu.Unlock()
	slices.Sort(names)

	var errs []error
	for _, name := range names {
		err := r.Destroy(ctx, name)
		if err != nil {
			r.logger.Warningf("Cleanup failed for %q: %s", name, err)
			errs = append(errs, err)
		}
	}

	return errs
}

// List returns a snapshot of the registered instances ordered by name.
func (r *Registry) List() []model.InstanceInfo {
	r.mu.Lock()
	insts := make([]*instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	r.mu.Unlock()

	slices.SortFunc(insts, func(a, b *instance) int { return strings.Compare(a.name, b.name) })

	infos := make([]model.InstanceInfo, 0, len(insts))
	for _, inst := range insts {
		infos = append(infos, model.InstanceInfo{
			Name:     inst.name,
			Type:     inst.envType,
			Metadata: maps.Clone(inst.metadata),
			Owned:    inst.owned,
			Backend:  inst.backend.Info(),
		})
	}

	return infos
}
