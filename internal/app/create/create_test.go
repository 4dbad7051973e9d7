package create_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/envctl/internal/app/create"
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
	b := builderFunc(func(ctx context.Context, spec model.InstanceSpec) (*factory.Built, error) { return nil, nil })

	tests := map[string]struct {
		cfg    create.ServiceConfig
		expErr bool
		errMsg string
	}{
		"Valid config with all fields": {
			cfg: create.ServiceConfig{Builder: b, Registry: reg, Logger: log.Noop},
		},
		"Missing builder returns error": {
			cfg:    create.ServiceConfig{Registry: reg},
			expErr: true,
			errMsg: "builder is required",
		},
		"Missing registry returns error": {
			cfg:    create.ServiceConfig{Builder: b},
			expErr: true,
			errMsg: "registry is required",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := create.NewService(tt.cfg)
			if tt.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestServiceCreate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dockerSpec := model.InstanceSpec{
		Name:   "box",
		Type:   model.EnvTypeDocker,
		Docker: &model.DockerEnvConfig{Image: "python:3"},
	}
	attachSpec := model.InstanceSpec{
		Name:       "web",
		Type:       model.EnvTypeDocker,
		Persistent: true,
		EnvPolicy:  model.EnvVarPolicyInheritAll,
		Docker:     &model.DockerEnvConfig{AttachTo: "web"},
	}

	tests := map[string]struct {
		spec      model.InstanceSpec
		existing  []string
		stored    []string
		buildErr  error
		owned     bool
		expErr    error
		expBuilds int
		expInfo   model.InstanceInfo
		expStored bool
	}{
		"Creating a new instance should register it as owned and store it.": {
			spec:      dockerSpec,
			owned:     true,
			expBuilds: 1,
			expInfo: model.InstanceInfo{
				Name:     "box",
				Type:     model.EnvTypeDocker,
				Metadata: map[string]any{"env_policy": "core_only", "persistent": false},
				Owned:    true,
				Backend:  map[string]any{"container_id": "c1"},
			},
			expStored: true,
		},

		"Attaching should register it as not owned.": {
			spec:      attachSpec,
			expBuilds: 1,
			expInfo: model.InstanceInfo{
				Name:     "web",
				Type:     model.EnvTypeDocker,
				Metadata: map[string]any{"env_policy": "inherit_all", "persistent": true},
				Owned:    false,
				Backend:  map[string]any{"container_id": "c1"},
			},
			expStored: true,
		},

		"A registered name should fail before building anything.": {
			spec:     dockerSpec,
			existing: []string{"box"},
			expErr:   model.ErrAlreadyExists,
		},

		"A stored name should fail before building anything.": {
			spec:   dockerSpec,
			stored: []string{"box"},
			expErr: model.ErrAlreadyExists,
		},

		"An invalid spec should fail.": {
			spec:   model.InstanceSpec{Name: "x", Type: "vm"},
			expErr: model.ErrNotValid,
		},

		"A build failure should fail.": {
			spec:      dockerSpec,
			buildErr:  model.ErrTransport,
			expErr:    model.ErrTransport,
			expBuilds: 1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			reg, err := registry.New(registry.Config{})
			require.NoError(t, err)
			repo, err := memory.NewRepository(memory.RepositoryConfig{})
			require.NoError(t, err)

			for _, n := range test.existing {
				m := environmentmock.NewBackend(t)
				m.On("Info").Maybe().Return(map[string]any{})
				require.NoError(t, reg.Register(n, m, model.EnvTypeLocal))
			}
			for _, n := range test.stored {
				require.NoError(t, repo.CreateInstance(ctx, model.InstanceSpec{Name: n, Type: model.EnvTypeLocal}))
			}

			builds := 0
			builder := builderFunc(func(ctx context.Context, spec model.InstanceSpec) (*factory.Built, error) {
				builds++
				if test.buildErr != nil {
					return nil, test.buildErr
				}
				m := environmentmock.NewBackend(t)
				m.On("Info").Return(map[string]any{"container_id": "c1"})
				spec.Docker.ContainerID = "c1"
				return &factory.Built{Backend: m, Spec: spec, Owned: spec.Docker.AttachTo == ""}, nil
			})

			svc, err := create.NewService(create.ServiceConfig{
				Builder:    builder,
				Registry:   reg,
				Repository: repo,
				TimeNow:    func() time.Time { return now },
			})
			require.NoError(t, err)

			resp, err := svc.Create(ctx, create.Request{Spec: test.spec})
			assert.Equal(t, test.expBuilds, builds)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, test.expInfo.Owned, resp.Owned)
			assert.Equal(t, "c1", resp.Spec.Docker.ContainerID)
			assert.Equal(t, []model.InstanceInfo{test.expInfo}, reg.List())

			if test.expStored {
				got, err := repo.GetInstance(ctx, test.spec.Name)
				require.NoError(t, err)
				assert.Equal(t, "c1", got.Docker.ContainerID)
				assert.Equal(t, now, got.CreatedAt)
			}
		})
	}
}

func TestServiceCreateStoreFailure(t *testing.T) {
	ctx := context.Background()
	reg, err := registry.New(registry.Config{})
	require.NoError(t, err)

	backend := environmentmock.NewBackend(t)
	backend.On("Cleanup", mock.Anything).Once().Return(nil)
	builder := builderFunc(func(ctx context.Context, spec model.InstanceSpec) (*factory.Built, error) {
		return &factory.Built{Backend: backend, Spec: spec, Owned: true}, nil
	})

	svc, err := create.NewService(create.ServiceConfig{
		Builder:    builder,
		Registry:   reg,
		Repository: failingRepo{},
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, create.Request{Spec: model.InstanceSpec{Name: "dev", Type: model.EnvTypeLocal}})
	assert.Error(t, err)

	// The created resources are released.
	_, ok := reg.Get("dev")
	assert.False(t, ok)
}

type failingRepo struct{}

func (failingRepo) CreateInstance(ctx context.Context, s model.InstanceSpec) error {
	return errors.New("disk full")
}
func (failingRepo) GetInstance(ctx context.Context, name string) (*model.InstanceSpec, error) {
	return nil, model.ErrNotFound
}
func (failingRepo) ListInstances(ctx context.Context) ([]model.InstanceSpec, error) { return nil, nil }
func (failingRepo) DeleteInstance(ctx context.Context, name string) error          { return nil }
