package environmentmock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/model"
)

// Backend is a mock of environment.Backend.
type Backend struct {
	mock.Mock
}

var _ environment.Backend = (*Backend)(nil)

func (m *Backend) Type() model.EnvType {
	args := m.Called()
	return args.Get(0).(model.EnvType)
}

func (m *Backend) WorkingDirectory() string { return m.Called().String(0) }
func (m *Backend) Platform() string         { return m.Called().String(0) }
func (m *Backend) OSVersion() string        { return m.Called().String(0) }

func (m *Backend) Exec(ctx context.Context, cmd string, opts model.ExecOpts) (*model.ExecResult, error) {
	args := m.Called(ctx, cmd, opts)

	var res *model.ExecResult
	if args.Get(0) != nil {
		res = args.Get(0).(*model.ExecResult)
	}

	return res, args.Error(1)
}

func (m *Backend) ReadFile(ctx context.Context, path string, opts model.ReadOpts) (string, error) {
	args := m.Called(ctx, path, opts)
	return args.String(0), args.Error(1)
}

func (m *Backend) WriteFile(ctx context.Context, path, content string) error {
	args := m.Called(ctx, path, content)
	return args.Error(0)
}

func (m *Backend) EditFile(ctx context.Context, path, old, new string) (string, error) {
	args := m.Called(ctx, path, old, new)
	return args.String(0), args.Error(1)
}

func (m *Backend) FileExists(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (m *Backend) ListDir(ctx context.Context, path string, depth int) ([]model.FileEntry, error) {
	args := m.Called(ctx, path, depth)

	var entries []model.FileEntry
	if args.Get(0) != nil {
		entries = args.Get(0).([]model.FileEntry)
	}

	return entries, args.Error(1)
}

func (m *Backend) Grep(ctx context.Context, pattern string, opts model.GrepOpts) (string, error) {
	args := m.Called(ctx, pattern, opts)
	return args.String(0), args.Error(1)
}

func (m *Backend) Glob(ctx context.Context, pattern, path string) ([]string, error) {
	args := m.Called(ctx, pattern, path)

	var matches []string
	if args.Get(0) != nil {
		matches = args.Get(0).([]string)
	}

	return matches, args.Error(1)
}

func (m *Backend) Cleanup(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Backend) Info() map[string]any {
	args := m.Called()

	var info map[string]any
	if args.Get(0) != nil {
		info = args.Get(0).(map[string]any)
	}

	return info
}

// NewBackend returns a new mock that asserts its expectations on test cleanup.
func NewBackend(t interface {
	mock.TestingT
	Cleanup(func())
}) *Backend {
	m := &Backend{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
