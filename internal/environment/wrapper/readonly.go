package wrapper

import (
	"context"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/model"
)

// ReadOnly rejects file writes and edits. Exec is not policed, a command can
// still modify the environment.
type ReadOnly struct {
	environment.Backend
}

// NewReadOnly wraps inner blocking its write operations.
func NewReadOnly(inner environment.Backend) *ReadOnly {
	return &ReadOnly{Backend: inner}
}

func (r *ReadOnly) WriteFile(ctx context.Context, path, content string) error {
	return r.denied()
}

func (r *ReadOnly) EditFile(ctx context.Context, path, old, new string) (string, error) {
	return "", r.denied()
}

func (r *ReadOnly) Upload(ctx context.Context, localPath, remotePath string) error {
	return r.denied()
}

func (r *ReadOnly) Download(ctx context.Context, remotePath, localPath string) error {
	return environment.Download(ctx, r.Backend, remotePath, localPath)
}

func (r *ReadOnly) denied() error {
	return model.OperationError(model.ErrCodePermissionDenied, r.Type(), model.ErrPermissionDenied,
		"write operations disabled in read-only mode")
}
