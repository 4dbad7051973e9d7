package wrapper

import (
	"context"
	"time"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

// Logging logs the operations that pass through it. Metadata and the noisy
// read operations (exists, ls and glob) are not logged.
type Logging struct {
	environment.Backend

	logger log.Logger
}

// NewLogging wraps inner logging its operations.
func NewLogging(inner environment.Backend, logger log.Logger) *Logging {
	if logger == nil {
		logger = log.Noop
	}

	return &Logging{
		Backend: inner,
		logger:  logger.WithValues(log.Kv{"svc": "environment.Logging", "env": string(inner.Type())}),
	}
}

func (l *Logging) Exec(ctx context.Context, cmd string, opts model.ExecOpts) (*model.ExecResult, error) {
	logger := l.logger.WithCtxValues(ctx)
	logger.Infof("exec %q", cmd)

	start := time.Now()
	res, err := l.Backend.Exec(ctx, cmd, opts)
	if err != nil {
		logger.Warningf("exec %q failed: %s", cmd, err)
		return nil, err
	}

	logger.Infof("exec %q: exit %d in %dms", cmd, res.ExitCode, time.Since(start).Milliseconds())
	return res, nil
}

func (l *Logging) ReadFile(ctx context.Context, path string, opts model.ReadOpts) (string, error) {
	l.logger.WithCtxValues(ctx).Debugf("read %s", path)
	return l.Backend.ReadFile(ctx, path, opts)
}

func (l *Logging) WriteFile(ctx context.Context, path, content string) error {
	l.logger.WithCtxValues(ctx).Infof("write %s (%d chars)", path, len([]rune(content)))
	return l.Backend.WriteFile(ctx, path, content)
}

func (l *Logging) EditFile(ctx context.Context, path, old, new string) (string, error) {
	l.logger.WithCtxValues(ctx).Infof("edit %s", path)
	return l.Backend.EditFile(ctx, path, old, new)
}

func (l *Logging) Grep(ctx context.Context, pattern string, opts model.GrepOpts) (string, error) {
	l.logger.WithCtxValues(ctx).Debugf("grep %q", pattern)
	return l.Backend.Grep(ctx, pattern, opts)
}

func (l *Logging) Cleanup(ctx context.Context) error {
	l.logger.WithCtxValues(ctx).Infof("cleanup")
	return l.Backend.Cleanup(ctx)
}

func (l *Logging) Upload(ctx context.Context, localPath, remotePath string) error {
	l.logger.WithCtxValues(ctx).Infof("upload %s to %s", localPath, remotePath)
	return environment.Upload(ctx, l.Backend, localPath, remotePath)
}

func (l *Logging) Download(ctx context.Context, remotePath, localPath string) error {
	l.logger.WithCtxValues(ctx).Debugf("download %s to %s", remotePath, localPath)
	return environment.Download(ctx, l.Backend, remotePath, localPath)
}
