package ssh

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/environment/shell"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

// ExecFunc runs a command on the remote host. A command failing is not an
// error, errors are reserved for the connection.
type ExecFunc func(ctx context.Context, cmd string, timeout time.Duration) (*model.ExecResult, error)

// DisconnectFunc closes the connection to the remote host.
type DisconnectFunc func(ctx context.Context) error

// BackendConfig is the configuration for the SSH backend.
type BackendConfig struct {
	Exec ExecFunc
	// Disconnect is called on cleanup (optional).
	Disconnect DisconnectFunc
	// Transfer copies files natively (optional).
	Transfer Copier
	// Host is the remote host, used for display.
	Host   string
	Logger log.Logger
}

// Copier copies files and directories to and from the remote host.
type Copier interface {
	CopyTo(ctx context.Context, srcLocal, dstRemote string) error
	CopyFrom(ctx context.Context, srcRemote, dstLocal string) error
}

func (c *BackendConfig) defaults() error {
	if c.Exec == nil {
		return fmt.Errorf("exec function is required")
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "environment.SSH", "host": c.Host})
	return nil
}

// Backend is the environment.Backend implementation for remote hosts over SSH.
// Operations run relative to the remote user home.
type Backend struct {
	*shell.Operations

	exec       ExecFunc
	disconnect DisconnectFunc
	transfer   Copier
	host       string
	logger     log.Logger
}

var (
	_ environment.Backend    = (*Backend)(nil)
	_ environment.Transferer = (*Backend)(nil)
)

// NewBackend returns a new SSH backend.
func NewBackend(cfg BackendConfig) (*Backend, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	b := &Backend{
		exec:       cfg.Exec,
		disconnect: cfg.Disconnect,
		transfer:   cfg.Transfer,
		host:       cfg.Host,
		logger:     cfg.Logger,
	}
	b.Operations = shell.NewOperations(model.EnvTypeSSH, ".", b.run)

	return b, nil
}

func (b *Backend) Type() model.EnvType      { return model.EnvTypeSSH }
func (b *Backend) WorkingDirectory() string { return "~" }
func (b *Backend) Platform() string         { return "linux" }
func (b *Backend) OSVersion() string        { return "unknown" }

func (b *Backend) Exec(ctx context.Context, cmd string, opts model.ExecOpts) (*model.ExecResult, error) {
	full := shell.WithWorkDir(shell.WithEnv(cmd, opts.Env), opts.WorkingDir)

	start := time.Now()
	res, err := b.exec(ctx, full, opts.Timeout)
	if err != nil {
		if environment.IsRemoteTimeout(ctx, err, opts.Timeout) {
			b.logger.Warningf("Command timed out after %s: %s", opts.Timeout, cmd)
			return environment.TimedOutResult(cmd, opts.Timeout, time.Since(start)), nil
		}
		return nil, b.transportError(err)
	}

	return &model.ExecResult{
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// Cleanup closes the connection, the remote host is left as it is.
func (b *Backend) Cleanup(ctx context.Context) error {
	if b.disconnect == nil {
		return nil
	}

	if err := b.disconnect(ctx); err != nil {
		return fmt.Errorf("could not disconnect from %s: %w", b.host, err)
	}
	return nil
}

func (b *Backend) Upload(ctx context.Context, localPath, remotePath string) error {
	if b.transfer == nil {
		return environment.ErrTransferNotSupported
	}
	return b.transfer.CopyTo(ctx, localPath, remotePath)
}

func (b *Backend) Download(ctx context.Context, remotePath, localPath string) error {
	if b.transfer == nil {
		return environment.ErrTransferNotSupported
	}
	return b.transfer.CopyFrom(ctx, remotePath, localPath)
}

func (b *Backend) Info() map[string]any {
	return map[string]any{
		"host":     b.host,
		"env_type": string(model.EnvTypeSSH),
	}
}

func (b *Backend) run(ctx context.Context, cmd string) (*shell.Output, error) {
	res, err := b.exec(ctx, cmd, 0)
	if err != nil {
		return nil, b.transportError(err)
	}

	return &shell.Output{Stdout: res.Stdout, Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}

func (b *Backend) transportError(err error) error {
	return model.TransportError(model.ErrCodeConnectionLost, model.EnvTypeSSH, err, "ssh command on %s failed: %v", b.host, err)
}
