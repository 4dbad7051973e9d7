package environment_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/environment/environmentmock"
	"github.com/slok/envctl/internal/model"
)

type transferBackend struct {
	*environmentmock.Backend
	uploads   [][2]string
	downloads [][2]string
}

func (t *transferBackend) Upload(ctx context.Context, localPath, remotePath string) error {
	t.uploads = append(t.uploads, [2]string{localPath, remotePath})
	return nil
}

func (t *transferBackend) Download(ctx context.Context, remotePath, localPath string) error {
	t.downloads = append(t.downloads, [2]string{remotePath, localPath})
	return nil
}

func TestCopyInNative(t *testing.T) {
	b := &transferBackend{Backend: environmentmock.NewBackend(t)}

	err := environment.CopyIn(context.Background(), b, "/tmp/dir", "/remote/dir")
	require.NoError(t, err)
	err = environment.CopyOut(context.Background(), b, "/remote/out", "/tmp/out")
	require.NoError(t, err)

	assert.Equal(t, [][2]string{{"/tmp/dir", "/remote/dir"}}, b.uploads)
	assert.Equal(t, [][2]string{{"/remote/out", "/tmp/out"}}, b.downloads)
}

func TestCopyInFallback(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(file, []byte("package main\n"), 0o644))

	tests := map[string]struct {
		localPath string
		mock      func(m *environmentmock.Backend)
		expErrIs  error
		expErr    bool
	}{
		"A regular file should be written with the backend.": {
			localPath: file,
			mock: func(m *environmentmock.Backend) {
				m.On("WriteFile", mock.Anything, "/app/main.go", "package main\n").Once().Return(nil)
			},
		},

		"A directory should fail.": {
			localPath: dir,
			mock: func(m *environmentmock.Backend) {
				m.On("Type").Return(model.EnvTypeDocker)
			},
			expErrIs: model.ErrNotValid,
		},

		"A missing file should fail.": {
			localPath: filepath.Join(dir, "missing"),
			mock:      func(m *environmentmock.Backend) {},
			expErr:    true,
		},

		"A write failure should be returned.": {
			localPath: file,
			mock: func(m *environmentmock.Backend) {
				m.On("WriteFile", mock.Anything, "/app/main.go", mock.Anything).Once().Return(model.ErrPermissionDenied)
			},
			expErrIs: model.ErrPermissionDenied,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := environmentmock.NewBackend(t)
			test.mock(m)

			err := environment.CopyIn(context.Background(), m, test.localPath, "/app/main.go")
			switch {
			case test.expErrIs != nil:
				assert.ErrorIs(t, err, test.expErrIs)
			case test.expErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestCopyOutFallback(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "nested", "out.txt")

	m := environmentmock.NewBackend(t)
	m.On("ReadFile", mock.Anything, "/app/out.txt", model.ReadOpts{}).Once().Return("result\n", nil)
	m.On("ReadFile", mock.Anything, "/app/missing", model.ReadOpts{}).Once().Return("", model.ErrNotFound)

	require.NoError(t, environment.CopyOut(context.Background(), m, "/app/out.txt", dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "result\n", string(got))

	err = environment.CopyOut(context.Background(), m, "/app/missing", dst)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
