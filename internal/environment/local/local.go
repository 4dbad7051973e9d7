package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/utils/env"
)

const (
	// DefaultGracePeriod is the time a timed out process group has to exit after SIGTERM.
	DefaultGracePeriod = 2 * time.Second
	// DefaultShell is the shell used to run commands.
	DefaultShell = "/bin/sh"
)

// BackendConfig is the configuration for the local backend.
type BackendConfig struct {
	// WorkingDir is the directory where operations execute and the sandbox
	// boundary for paths (default: current directory).
	WorkingDir string
	// EnvPolicy is the env var inheritance policy (default: core only).
	EnvPolicy model.EnvVarPolicy
	// GracePeriod is the time between SIGTERM and SIGKILL on timeout (default: 2s).
	GracePeriod time.Duration
	// Shell is the shell used to run commands (default: /bin/sh).
	Shell string
	// Environ returns the host environment (default: os.Environ).
	Environ func() []string
	// GrepBinary is the grep binary used for searches (default: grep).
	GrepBinary string
	Logger     log.Logger

	// signal is used to signal process groups, set for tests.
	signal signalFunc
}

func (c *BackendConfig) defaults() error {
	if c.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("could not get current directory: %w", err)
		}
		c.WorkingDir = wd
	}

	abs, err := filepath.Abs(c.WorkingDir)
	if err != nil {
		return fmt.Errorf("could not get absolute working directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf("could not resolve working directory: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("could not stat working directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("working directory %q is not a directory: %w", c.WorkingDir, model.ErrNotValid)
	}
	c.WorkingDir = resolved

	if c.EnvPolicy == "" {
		c.EnvPolicy = model.DefaultEnvVarPolicy
	}
	if err := c.EnvPolicy.Validate(); err != nil {
		return err
	}

	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.Shell == "" {
		c.Shell = DefaultShell
	}
	if c.Environ == nil {
		c.Environ = os.Environ
	}
	if c.GrepBinary == "" {
		c.GrepBinary = "grep"
	}
	if c.signal == nil {
		c.signal = signalProcessGroup
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "environment.Local"})
	return nil
}

// Backend is the environment.Backend implementation for the local host.
type Backend struct {
	workingDir  string
	envPolicy   model.EnvVarPolicy
	gracePeriod time.Duration
	shell       string
	environ     func() []string
	grepBinary  string
	signal      signalFunc
	logger      log.Logger

	// onTransition observes the process group state machine, used by tests.
	onTransition func(from, to groupState)
}

var _ environment.Backend = (*Backend)(nil)

// NewBackend returns a new local backend.
func NewBackend(cfg BackendConfig) (*Backend, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Backend{
		workingDir:   cfg.WorkingDir,
		envPolicy:    cfg.EnvPolicy,
		gracePeriod:  cfg.GracePeriod,
		shell:        cfg.Shell,
		environ:      cfg.Environ,
		grepBinary:   cfg.GrepBinary,
		signal:       cfg.signal,
		logger:       cfg.Logger,
		onTransition: func(from, to groupState) {},
	}, nil
}

func (b *Backend) Type() model.EnvType      { return model.EnvTypeLocal }
func (b *Backend) WorkingDirectory() string { return b.workingDir }
func (b *Backend) OSVersion() string        { return osVersion() }
func (b *Backend) Info() map[string]any {
	return map[string]any{
		"working_dir": b.workingDir,
		"env_policy":  string(b.envPolicy),
	}
}

func (b *Backend) Platform() string { return runtime.GOOS }

// Exec runs the command with the shell in its own process group.
func (b *Backend) Exec(ctx context.Context, cmd string, opts model.ExecOpts) (*model.ExecResult, error) {
	dir := b.workingDir
	if opts.WorkingDir != "" {
		d, err := b.resolve(opts.WorkingDir)
		if err != nil {
			return nil, err
		}
		dir = d
	}

	environ := env.Filter(b.envPolicy, env.FromEnviron(b.environ()), opts.Env)

	var stdout, stderr bytes.Buffer
	c := exec.Command(b.shell, "-c", cmd)
	c.Dir = dir
	c.Env = env.ToEnviron(environ)
	c.Stdout = &stdout
	c.Stderr = &stderr

	pg := newProcessGroup(c, b.gracePeriod, b.signal, b.logger)
	pg.onTransition = b.onTransition

	start := time.Now()
	if err := pg.start(); err != nil {
		return nil, fmt.Errorf("could not start command: %w", err)
	}

	terminated, waitErr := pg.wait(ctx, opts.Timeout)
	if terminated && waitErr != nil {
		return nil, fmt.Errorf("command cancelled: %w", waitErr)
	}
	if terminated {
		b.logger.Warningf("Command timed out after %s: %s", opts.Timeout, cmd)
		return environment.TimedOutResult(cmd, opts.Timeout, pg.cancelledAt.Sub(start)), nil
	}
	elapsed := time.Since(start)

	return &model.ExecResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ExitCode:   exitCode(c.ProcessState, waitErr),
		DurationMS: elapsed.Milliseconds(),
	}, nil
}

func (b *Backend) ReadFile(ctx context.Context, path string, opts model.ReadOpts) (string, error) {
	full, err := b.resolve(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("file not found: %s: %w", path, model.ErrNotFound)
		}
		return "", fmt.Errorf("could not read file %s: %w", path, err)
	}

	content := string(data)
	if opts.Offset <= 0 && opts.Limit <= 0 {
		return content, nil
	}

	return sliceLines(content, opts.Offset, opts.Limit), nil
}

// sliceLines returns limit lines starting at the 1-indexed offset, line endings are kept.
func sliceLines(content string, offset, limit int) string {
	lines := strings.SplitAfter(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start > len(lines) {
		start = len(lines)
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	return strings.Join(lines[start:end], "")
}

func (b *Backend) WriteFile(ctx context.Context, path, content string) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("could not create parent directories for %s: %w", path, err)
	}

	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return fmt.Errorf("could not write file %s: %w", path, err)
	}

	return nil
}

func (b *Backend) EditFile(ctx context.Context, path, old, new string) (string, error) {
	full, err := b.resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("file not found: %s: %w", path, model.ErrNotFound)
		}
		return "", fmt.Errorf("could not stat file %s: %w", path, err)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("could not read file %s: %w", path, err)
	}

	newContent, err := environment.ReplaceOnce(string(data), path, old, new)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(full, []byte(newContent), info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("could not write file %s: %w", path, err)
	}

	return environment.EditedMessage(path), nil
}

func (b *Backend) FileExists(ctx context.Context, path string) (bool, error) {
	full, err := b.resolve(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("could not stat %s: %w", path, err)
	}

	return true, nil
}

func (b *Backend) ListDir(ctx context.Context, path string, depth int) ([]model.FileEntry, error) {
	root, err := b.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("directory not found: %s: %w", path, model.ErrNotFound)
	}

	if depth < 1 {
		depth = 1
	}

	var entries []model.FileEntry
	var walk func(dir string, level int) error
	walk = func(dir string, level int) error {
		// os.ReadDir returns the entries sorted by name.
		items, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("could not read directory %s: %w", relative(root, dir), err)
		}

		for _, item := range items {
			itemPath := filepath.Join(dir, item.Name())

			// Follow symlinks for the kind, like stat would.
			itemInfo, err := os.Stat(itemPath)
			if err != nil {
				itemInfo, err = item.Info()
				if err != nil {
					continue
				}
			}

			entry := model.FileEntry{Name: relative(root, itemPath), Type: model.EntryTypeFile}
			if itemInfo.IsDir() {
				entry.Type = model.EntryTypeDir
			} else {
				size := itemInfo.Size()
				entry.Size = &size
			}
			entries = append(entries, entry)

			if itemInfo.IsDir() && level < depth && item.Type()&fs.ModeSymlink == 0 {
				if err := walk(itemPath, level+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(root, 1); err != nil {
		return nil, err
	}

	return entries, nil
}

func (b *Backend) Grep(ctx context.Context, pattern string, opts model.GrepOpts) (string, error) {
	searchPath, err := b.resolve(defaultString(opts.Path, "."))
	if err != nil {
		return "", err
	}

	args := []string{"-rn"}
	if opts.CaseInsensitive {
		args = append(args, "-i")
	}
	if opts.MaxResults > 0 {
		args = append(args, "-m", strconv.Itoa(opts.MaxResults))
	}
	args = append(args, "-e", pattern, searchPath)
	if opts.Glob != "" {
		args = append(args, "--include", opts.Glob)
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, b.grepBinary, args...)
	c.Dir = b.workingDir
	c.Stdout = &stdout
	c.Stderr = &stderr

	err = c.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("could not run grep: %w", err)
		}
		if exitErr.ExitCode() == 1 {
			return environment.NoMatches, nil
		}
		return "", model.OperationError(model.ErrCodeGrepFailed, model.EnvTypeLocal, model.ErrNotValid,
			"grep failed (exit %d): %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

func (b *Backend) Glob(ctx context.Context, pattern, path string) ([]string, error) {
	base, err := b.resolve(defaultString(path, "."))
	if err != nil {
		return nil, err
	}

	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, model.ErrNotValid)
	}

	matches, err := doublestar.Glob(os.DirFS(base), pattern)
	if err != nil {
		return nil, fmt.Errorf("could not glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	return matches, nil
}

// Cleanup is a no-op, the local backend holds no resources.
func (b *Backend) Cleanup(ctx context.Context) error { return nil }

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
