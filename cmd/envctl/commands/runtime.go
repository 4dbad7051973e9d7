package commands

import (
	"context"
	"fmt"

	"github.com/slok/envctl/internal/app/session"
	"github.com/slok/envctl/internal/conventions"
	"github.com/slok/envctl/internal/environment/docker"
	"github.com/slok/envctl/internal/environment/docker/fake"
	"github.com/slok/envctl/internal/environment/factory"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/registry"
	"github.com/slok/envctl/internal/storage/sqlite"
)

// runtime is what every instance command needs: the stored instances, the
// session registry and the factory to build backends.
type runtime struct {
	repo     *sqlite.Repository
	registry *registry.Registry
	factory  *factory.Factory
	session  *session.Service
	logger   log.Logger
}

// runtimeOpts selects which stored instances are attached to the session.
type runtimeOpts struct {
	attach    []string
	attachAll bool
}

// newRuntime opens the storage and starts a session with the local instance
// and the requested stored instances. Close must be called when done.
func newRuntime(ctx context.Context, root *RootCommand, opts runtimeOpts) (*runtime, error) {
	logger := root.Logger

	// Initialize storage (SQLite).
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: root.dbPath(),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	rt, err := newRuntimeWithRepo(ctx, root, repo, opts)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	return rt, nil
}

func newRuntimeWithRepo(ctx context.Context, root *RootCommand, repo *sqlite.Repository, opts runtimeOpts) (*runtime, error) {
	logger := root.Logger

	invoker, err := newDockerInvoker(root)
	if err != nil {
		return nil, fmt.Errorf("could not create docker runtime: %w", err)
	}

	fac, err := factory.New(factory.Config{
		DockerInvoker: invoker,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create environment factory: %w", err)
	}

	reg, err := registry.New(registry.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create registry: %w", err)
	}

	sess, err := session.NewService(session.ServiceConfig{
		Builder:    fac,
		Registry:   reg,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create session service: %w", err)
	}

	err = sess.Start(ctx, session.StartRequest{
		WorkingDir: root.LocalWorkDir,
		EnvPolicy:  model.EnvVarPolicy(root.EnvPolicy),
		Wrappers:   root.LocalWrappers,
		Attach:     opts.attach,
		AttachAll:  opts.attachAll,
	})
	if err != nil {
		return nil, fmt.Errorf("could not start session: %w", err)
	}

	return &runtime{
		repo:     repo,
		registry: reg,
		factory:  fac,
		session:  sess,
		logger:   logger,
	}, nil
}

// Close ends the session (destroying what it owns) and closes the storage.
// It runs even if ctx was cancelled so owned resources are not leaked.
func (r *runtime) Close(ctx context.Context) {
	r.session.End(context.WithoutCancel(ctx))
	if err := r.repo.Close(); err != nil {
		r.logger.Warningf("Could not close repository: %s", err)
	}
}

// newDockerInvoker creates the container runtime based on the configuration.
func newDockerInvoker(root *RootCommand) (docker.Invoker, error) {
	switch root.DockerRuntime {
	case DockerRuntimeFake:
		return fake.NewInvoker(fake.InvokerConfig{
			BaseDir: conventions.FakeDockerPath(root.DataDir),
			Logger:  root.Logger,
		})
	default:
		return docker.NewClientInvoker(docker.ClientInvokerConfig{
			Logger: root.Logger,
		})
	}
}

// instanceOpts attaches a single stored instance.
func instanceOpts(name string) runtimeOpts {
	return runtimeOpts{attach: []string{name}}
}
