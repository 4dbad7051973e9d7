package copy

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

// Registry gets the registered instances.
type Registry interface {
	Get(name string) (environment.Backend, bool)
}

// ServiceConfig is the configuration for the copy service.
type ServiceConfig struct {
	Registry Registry
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Copy"})
	return nil
}

// Service handles file copy operations to/from instances.
type Service struct {
	registry Registry
	logger   log.Logger
}

// NewService creates a new copy service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}, nil
}

// Request contains the parameters for a copy operation.
type Request struct {
	Source      string // Source path (with optional instance: prefix)
	Destination string // Destination path (with optional instance: prefix)
}

// ParsedCopy contains the parsed copy operation details.
type ParsedCopy struct {
	Instance   string // Name of the instance
	LocalPath  string // Path on the host
	RemotePath string // Path in the instance
	ToInstance bool   // true = host->instance, false = instance->host
}

// ParseCopyArgs parses the source and destination arguments to determine
// the copy direction and extract the instance name and paths.
func ParseCopyArgs(src, dst string) (*ParsedCopy, error) {
	srcHasColon := strings.Contains(src, ":")
	dstHasColon := strings.Contains(dst, ":")

	if srcHasColon && dstHasColon {
		return nil, fmt.Errorf("cannot copy between two instances, one argument must be a local path: %w", model.ErrNotValid)
	}
	if !srcHasColon && !dstHasColon {
		return nil, fmt.Errorf("invalid syntax, one argument must specify the instance (e.g., my-box:/path): %w", model.ErrNotValid)
	}

	if dstHasColon {
		// Host -> Instance
		parts := strings.SplitN(dst, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid instance path format: %s (expected instance:/path): %w", dst, model.ErrNotValid)
		}
		return &ParsedCopy{
			Instance:   parts[0],
			LocalPath:  src,
			RemotePath: parts[1],
			ToInstance: true,
		}, nil
	}

	// Instance -> Host
	parts := strings.SplitN(src, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid instance path format: %s (expected instance:/path): %w", src, model.ErrNotValid)
	}
	return &ParsedCopy{
		Instance:   parts[0],
		LocalPath:  dst,
		RemotePath: parts[1],
		ToInstance: false,
	}, nil
}

// Run executes a copy operation.
func (s *Service) Run(ctx context.Context, req Request) error {
	// 1. Parse arguments
	parsed, err := ParseCopyArgs(req.Source, req.Destination)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	// 2. Validate local path exists (only for host -> instance)
	if parsed.ToInstance {
		if _, err := os.Stat(parsed.LocalPath); os.IsNotExist(err) {
			return fmt.Errorf("source path '%s' does not exist: %w", parsed.LocalPath, model.ErrNotFound)
		}
	}

	// 3. Get the instance.
	b, ok := s.registry.Get(parsed.Instance)
	if !ok {
		return fmt.Errorf("could not find instance '%s': %w", parsed.Instance, model.ErrNotFound)
	}

	// 4. Execute copy operation
	if parsed.ToInstance {
		remotePath := parsed.RemotePath
		if strings.HasSuffix(remotePath, "/") {
			remotePath = path.Join(remotePath, filepath.Base(parsed.LocalPath))
		}

		s.logger.Infof("Copying %s to %s:%s", parsed.LocalPath, parsed.Instance, remotePath)
		if err := environment.CopyIn(ctx, b, parsed.LocalPath, remotePath); err != nil {
			return fmt.Errorf("could not copy to instance: %w", err)
		}
		return nil
	}

	localPath := parsed.LocalPath
	if st, err := os.Stat(localPath); (err == nil && st.IsDir()) || strings.HasSuffix(localPath, string(filepath.Separator)) {
		localPath = filepath.Join(localPath, path.Base(parsed.RemotePath))
	}

	s.logger.Infof("Copying %s:%s to %s", parsed.Instance, parsed.RemotePath, localPath)
	if err := environment.CopyOut(ctx, b, parsed.RemotePath, localPath); err != nil {
		return fmt.Errorf("could not copy from instance: %w", err)
	}

	return nil
}
