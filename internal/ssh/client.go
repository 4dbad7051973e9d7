package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

const (
	// DefaultConnectTimeout is the default SSH connection timeout.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultSSHPort is the default SSH port.
	DefaultSSHPort = 22
)

// ClientConfig holds the configuration for creating an SSH connection.
type ClientConfig struct {
	// Host is the IP address or hostname of the target.
	Host string
	// Port is the SSH port (default: 22).
	Port int
	// User is the SSH user (e.g., "root").
	User string
	// PrivateKey is the PEM-encoded private key bytes.
	PrivateKey []byte
	// ConnectTimeout is the SSH connection timeout (default: 10s).
	ConnectTimeout time.Duration
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if len(c.PrivateKey) == 0 {
		return fmt.Errorf("private key is required")
	}
	if c.Port == 0 {
		c.Port = DefaultSSHPort
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ssh.Client", "host": c.Host})
	return nil
}

// Client wraps an SSH connection with high-level operations.
type Client struct {
	conn   *ssh.Client
	logger log.Logger
}

// NewClient dials the SSH server and returns a connected client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid ssh client config: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("could not parse private key: %w", err)
	}

	sshCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.ConnectTimeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	// Use a dialer with context for cancellation support.
	var d net.Dialer
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w: %w", addr, model.ErrTransport, err)
	}

	// Perform SSH handshake over the raw connection.
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshCfg)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake failed with %s: %w: %w", addr, model.ErrTransport, err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	cfg.Logger.Debugf("Connected to %s", addr)

	return &Client{
		conn:   client,
		logger: cfg.Logger,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ExecOpts are options for command execution (non-TTY only).
type ExecOpts struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Exec runs a command on the remote host and returns the exit code.
// TTY is not supported, use the ssh binary for interactive shells.
func (c *Client) Exec(ctx context.Context, command string, opts ExecOpts) (int, error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return -1, fmt.Errorf("could not create ssh session: %w", err)
	}
	defer session.Close()

	if opts.Stdin != nil {
		session.Stdin = opts.Stdin
	}
	if opts.Stdout != nil {
		session.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		session.Stderr = opts.Stderr
	}

	// Run with context cancellation support.
	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		// Send signal to remote process and close session.
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return -1, ctx.Err()
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitStatus(), nil
			}
			return -1, fmt.Errorf("command execution failed: %w: %w", model.ErrTransport, err)
		}
		return 0, nil
	}
}

// Run runs a command on the remote host capturing its output. The timeout
// (zero means none) is enforced by killing the remote session, in that case
// an error is returned as the output is not reliable.
func (c *Client) Run(ctx context.Context, command string, timeout time.Duration) (*model.ExecResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	start := time.Now()
	exitCode, err := c.Exec(ctx, command, ExecOpts{Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		return nil, err
	}

	return &model.ExecResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ExitCode:   exitCode,
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// CopyTo copies a local file or directory to the remote host via SFTP.
func (c *Client) CopyTo(ctx context.Context, srcLocal, dstRemote string) error {
	sftpClient, err := sftp.NewClient(c.conn)
	if err != nil {
		return fmt.Errorf("could not create sftp client: %w", err)
	}
	defer sftpClient.Close()

	srcInfo, err := os.Stat(srcLocal)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source path '%s' does not exist: %w", srcLocal, os.ErrNotExist)
		}
		return fmt.Errorf("could not stat source: %w", err)
	}

	if srcInfo.IsDir() {
		return c.copyDirTo(ctx, sftpClient, srcLocal, dstRemote)
	}
	return c.copyFileTo(ctx, sftpClient, srcLocal, dstRemote, srcInfo.Mode())
}

// CopyFrom copies a remote file or directory to the local host via SFTP.
func (c *Client) CopyFrom(ctx context.Context, srcRemote, dstLocal string) error {
	sftpClient, err := sftp.NewClient(c.conn)
	if err != nil {
		return fmt.Errorf("could not create sftp client: %w", err)
	}
	defer sftpClient.Close()

	srcInfo, err := sftpClient.Stat(srcRemote)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source path '%s' does not exist on remote host: %w", srcRemote, os.ErrNotExist)
		}
		return fmt.Errorf("could not stat remote source: %w", err)
	}

	if srcInfo.IsDir() {
		return c.copyDirFrom(ctx, sftpClient, srcRemote, dstLocal)
	}
	return c.copyFileFrom(ctx, sftpClient, srcRemote, dstLocal, srcInfo.Mode())
}

// copyFileTo copies a single local file to the remote host.
func (c *Client) copyFileTo(ctx context.Context, sftpClient *sftp.Client, srcLocal, dstRemote string, mode fs.FileMode) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	src, err := os.Open(srcLocal)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", srcLocal, err)
	}
	defer src.Close()

	dst, err := sftpClient.Create(dstRemote)
	if err != nil {
		return fmt.Errorf("could not create remote file %s: %w", dstRemote, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("could not copy to remote file %s: %w", dstRemote, err)
	}

	if err := sftpClient.Chmod(dstRemote, mode); err != nil {
		c.logger.Debugf("Could not set permissions on %s: %v", dstRemote, err)
	}

	return nil
}

// copyDirTo recursively copies a local directory to the remote host.
func (c *Client) copyDirTo(ctx context.Context, sftpClient *sftp.Client, srcLocal, dstRemote string) error {
	return filepath.WalkDir(srcLocal, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Calculate relative path and remote destination.
		relPath, err := filepath.Rel(srcLocal, path)
		if err != nil {
			return err
		}
		remotePath := filepath.Join(dstRemote, relPath)

		// Skip symlinks.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if d.IsDir() {
			return sftpClient.MkdirAll(remotePath)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		return c.copyFileTo(ctx, sftpClient, path, remotePath, info.Mode())
	})
}

// copyFileFrom copies a single remote file to the local host.
func (c *Client) copyFileFrom(ctx context.Context, sftpClient *sftp.Client, srcRemote, dstLocal string, mode fs.FileMode) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	src, err := sftpClient.Open(srcRemote)
	if err != nil {
		return fmt.Errorf("could not open remote file %s: %w", srcRemote, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dstLocal), 0755); err != nil {
		return fmt.Errorf("could not create local directory: %w", err)
	}

	dst, err := os.OpenFile(dstLocal, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("could not create local file %s: %w", dstLocal, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("could not copy from remote file %s: %w", srcRemote, err)
	}

	return nil
}

// copyDirFrom recursively copies a remote directory to the local host.
func (c *Client) copyDirFrom(ctx context.Context, sftpClient *sftp.Client, srcRemote, dstLocal string) error {
	walker := sftpClient.Walk(srcRemote)
	for walker.Step() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := walker.Err(); err != nil {
			return err
		}

		remotePath := walker.Path()

		relPath, err := filepath.Rel(srcRemote, remotePath)
		if err != nil {
			return err
		}
		localPath := filepath.Join(dstLocal, relPath)

		info := walker.Stat()

		// Skip symlinks.
		if info.Mode()&fs.ModeSymlink != 0 {
			continue
		}

		if info.IsDir() {
			if err := os.MkdirAll(localPath, info.Mode()); err != nil {
				return fmt.Errorf("could not create local directory %s: %w", localPath, err)
			}
			continue
		}

		if err := c.copyFileFrom(ctx, sftpClient, remotePath, localPath, info.Mode()); err != nil {
			return err
		}
	}

	return nil
}
