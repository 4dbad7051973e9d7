package remove_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/envctl/internal/app/remove"
	"github.com/slok/envctl/internal/environment/environmentmock"
	"github.com/slok/envctl/internal/environment/factory"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/registry"
	"github.com/slok/envctl/internal/storage/memory"
)

type builderFunc func(ctx context.Context, spec model.InstanceSpec) (*factory.Built, error)

func (f builderFunc) Build(ctx context.Context, spec model.InstanceSpec) (*factory.Built, error) {
	return f(ctx, spec)
}

func TestNewService(t *testing.T) {
	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	builder := builderFunc(func(ctx context.Context, spec model.InstanceSpec) (*factory.Built, error) { return nil, nil })

	tests := map[string]struct {
		cfg    remove.ServiceConfig
		expErr bool
	}{
		"Valid configuration should create service successfully": {
			cfg:    remove.ServiceConfig{Registry: reg, Builder: builder, Repository: repo, Logger: log.Noop},
			expErr: false,
		},

		"Registry only should create service successfully": {
			cfg:    remove.ServiceConfig{Registry: reg},
			expErr: false,
		},

		"Missing registry should fail": {
			cfg:    remove.ServiceConfig{Builder: builder, Repository: repo},
			expErr: true,
		},

		"Repository without builder should fail": {
			cfg:    remove.ServiceConfig{Registry: reg, Repository: repo},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := remove.NewService(test.cfg)

			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceRun(t *testing.T) {
	boxSpec := model.InstanceSpec{Name: "box", Type: model.EnvTypeDocker, Docker: &model.DockerEnvConfig{ContainerID: "c1"}}
	sharedSpec := model.InstanceSpec{Name: "shared", Type: model.EnvTypeDocker, Docker: &model.DockerEnvConfig{AttachTo: "db"}}

	tests := map[string]struct {
		req      remove.Request
		prepare  func(t *testing.T, reg *registry.Registry, repo *memory.Repository)
		build    func(t *testing.T, spec model.InstanceSpec) (*factory.Built, error)
		expErrIs error
		expErr   bool
	}{
		"An owned instance registered in the session should be destroyed.": {
			req: remove.Request{Name: "tmp"},
			prepare: func(t *testing.T, reg *registry.Registry, repo *memory.Repository) {
				b := environmentmock.NewBackend(t)
				b.On("Info").Maybe().Return(map[string]any{})
				b.On("Cleanup", mock.Anything).Once().Return(nil)
				require.NoError(t, reg.Register("tmp", b, model.EnvTypeDocker))
			},
		},

		"A not owned instance registered in the session should only be forgotten.": {
			req: remove.Request{Name: "tmp"},
			prepare: func(t *testing.T, reg *registry.Registry, repo *memory.Repository) {
				b := environmentmock.NewBackend(t)
				b.On("Info").Maybe().Return(map[string]any{})
				require.NoError(t, reg.Register("tmp", b, model.EnvTypeDocker, registry.Unowned()))
			},
		},

		"A stored owned instance should be rebuilt, cleaned up and deleted.": {
			req: remove.Request{Name: "box"},
			prepare: func(t *testing.T, reg *registry.Registry, repo *memory.Repository) {
				require.NoError(t, repo.CreateInstance(context.TODO(), boxSpec))
			},
			build: func(t *testing.T, spec model.InstanceSpec) (*factory.Built, error) {
				b := environmentmock.NewBackend(t)
				b.On("Cleanup", mock.Anything).Once().Return(nil)
				return &factory.Built{Backend: b, Spec: spec, Owned: true}, nil
			},
		},

		"A stored instance attached to a container should not be cleaned up.": {
			req: remove.Request{Name: "shared"},
			prepare: func(t *testing.T, reg *registry.Registry, repo *memory.Repository) {
				require.NoError(t, repo.CreateInstance(context.TODO(), sharedSpec))
			},
			build: func(t *testing.T, spec model.InstanceSpec) (*factory.Built, error) {
				return &factory.Built{Backend: environmentmock.NewBackend(t), Spec: spec, Owned: false}, nil
			},
		},

		"Keeping a stored instance should not rebuild it.": {
			req: remove.Request{Name: "box", Keep: true},
			prepare: func(t *testing.T, reg *registry.Registry, repo *memory.Repository) {
				require.NoError(t, repo.CreateInstance(context.TODO(), boxSpec))
			},
		},

		"A stored instance attached in the session should be cleaned up once.": {
			req: remove.Request{Name: "box"},
			prepare: func(t *testing.T, reg *registry.Registry, repo *memory.Repository) {
				require.NoError(t, repo.CreateInstance(context.TODO(), boxSpec))
				b := environmentmock.NewBackend(t)
				b.On("Info").Maybe().Return(map[string]any{})
				require.NoError(t, reg.Register("box", b, model.EnvTypeDocker, registry.Unowned()))
			},
			build: func(t *testing.T, spec model.InstanceSpec) (*factory.Built, error) {
				b := environmentmock.NewBackend(t)
				b.On("Cleanup", mock.Anything).Once().Return(nil)
				return &factory.Built{Backend: b, Spec: spec, Owned: true}, nil
			},
		},

		"A stored instance that can't be rebuilt should fail and be kept.": {
			req: remove.Request{Name: "box"},
			prepare: func(t *testing.T, reg *registry.Registry, repo *memory.Repository) {
				require.NoError(t, repo.CreateInstance(context.TODO(), boxSpec))
			},
			build: func(t *testing.T, spec model.InstanceSpec) (*factory.Built, error) {
				return nil, errors.New("docker is down")
			},
			expErr: true,
		},

		"A missing instance should fail.": {
			req:      remove.Request{Name: "missing"},
			expErrIs: model.ErrNotFound,
		},

		"The local instance should not be removable.": {
			req:      remove.Request{Name: "local"},
			expErrIs: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			reg, err := registry.New(registry.Config{})
			require.NoError(t, err)
			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(t, err)

			if test.prepare != nil {
				test.prepare(t, reg, repo)
			}

			builder := builderFunc(func(ctx context.Context, spec model.InstanceSpec) (*factory.Built, error) {
				if test.build == nil {
					t.Fatalf("unexpected build of %q", spec.Name)
				}
				return test.build(t, spec)
			})

			svc, err := remove.NewService(remove.ServiceConfig{Registry: reg, Builder: builder, Repository: repo})
			require.NoError(t, err)

			err = svc.Run(ctx, test.req)
			switch {
			case test.expErrIs != nil:
				assert.ErrorIs(t, err, test.expErrIs)
				return
			case test.expErr:
				assert.Error(t, err)
				_, err := repo.GetInstance(ctx, test.req.Name)
				assert.NoError(t, err)
				return
			}
			require.NoError(t, err)

			_, ok := reg.Get(test.req.Name)
			assert.False(t, ok)
			_, err = repo.GetInstance(ctx, test.req.Name)
			assert.ErrorIs(t, err, model.ErrNotFound)
		})
	}
}
