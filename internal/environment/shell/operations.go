package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/model"
)

// Output is the result of a remote command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunFunc runs a shell command on the remote side. Errors are reserved for
// transport failures, a command failing is reported with the exit code.
type RunFunc func(ctx context.Context, cmd string) (*Output, error)

// Operations implements the file operations of an environment.Backend by
// composing shell commands and running them with a RunFunc. Remote backends
// embed it and add the execution and lifecycle parts.
type Operations struct {
	run         RunFunc
	envType     model.EnvType
	defaultPath string
}

// NewOperations returns the shell based file operations. defaultPath is
// the search path for grep and glob when none is given.
func NewOperations(envType model.EnvType, defaultPath string, run RunFunc) *Operations {
	return &Operations{
		run:         run,
		envType:     envType,
		defaultPath: defaultPath,
	}
}

func (o *Operations) ReadFile(ctx context.Context, path string, opts model.ReadOpts) (string, error) {
	out, err := o.run(ctx, ReadCmd(path, opts.Offset, opts.Limit))
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		// The existence guard fails without output.
		if strings.TrimSpace(out.Stderr) == "" {
			return "", fmt.Errorf("file not found: %s: %w", path, model.ErrNotFound)
		}
		return "", o.commandError(out, "could not read file %s", path)
	}

	return out.Stdout, nil
}

func (o *Operations) WriteFile(ctx context.Context, path, content string) error {
	out, err := o.run(ctx, WriteCmd(path, content))
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return o.commandError(out, "could not write file %s", path)
	}

	return nil
}

// EditFile reads the file, replaces locally and writes it back.
func (o *Operations) EditFile(ctx context.Context, path, old, new string) (string, error) {
	content, err := o.ReadFile(ctx, path, model.ReadOpts{})
	if err != nil {
		return "", err
	}

	newContent, err := environment.ReplaceOnce(content, path, old, new)
	if err != nil {
		return "", err
	}

	if err := o.WriteFile(ctx, path, newContent); err != nil {
		return "", err
	}

	return environment.EditedMessage(path), nil
}

func (o *Operations) FileExists(ctx context.Context, path string) (bool, error) {
	out, err := o.run(ctx, ExistsCmd(path))
	if err != nil {
		return false, err
	}

	return out.ExitCode == 0, nil
}

func (o *Operations) ListDir(ctx context.Context, path string, depth int) ([]model.FileEntry, error) {
	if depth <= 1 {
		out, err := o.run(ctx, ListCmd(path))
		if err != nil {
			return nil, err
		}
		if out.ExitCode != 0 {
			return nil, fmt.Errorf("directory not found: %s: %w", path, model.ErrNotFound)
		}
		return ParseLs(out.Stdout), nil
	}

	out, err := o.run(ctx, FindCmd(path, depth))
	if err != nil {
		return nil, err
	}
	if out.ExitCode != 0 {
		return nil, fmt.Errorf("directory not found: %s: %w", path, model.ErrNotFound)
	}

	dirs, err := o.run(ctx, FindDirsCmd(path, depth))
	if err != nil {
		return nil, err
	}
	if dirs.ExitCode != 0 {
		return nil, o.commandError(dirs, "could not list directories of %s", path)
	}

	return ParseFind(out.Stdout, dirs.Stdout, path), nil
}

func (o *Operations) Grep(ctx context.Context, pattern string, opts model.GrepOpts) (string, error) {
	path := opts.Path
	if path == "" {
		path = o.defaultPath
	}

	out, err := o.run(ctx, GrepCmd(pattern, path, opts))
	if err != nil {
		return "", err
	}

	switch out.ExitCode {
	case 0:
		return out.Stdout, nil
	case 1:
		return environment.NoMatches, nil
	default:
		return "", model.OperationError(model.ErrCodeGrepFailed, o.envType, model.ErrNotValid,
			"grep failed (exit %d): %s", out.ExitCode, strings.TrimSpace(out.Stderr))
	}
}

func (o *Operations) Glob(ctx context.Context, pattern, path string) ([]string, error) {
	if path == "" {
		path = o.defaultPath
	}

	out, err := o.run(ctx, GlobCmd(pattern, path))
	if err != nil {
		return nil, err
	}

	// find keeps going on unreadable dirs, only fail if we got nothing.
	matches := SplitLines(out.Stdout)
	if out.ExitCode != 0 && len(matches) == 0 {
		return nil, o.commandError(out, "could not glob %q in %s", pattern, path)
	}

	return matches, nil
}

func (o *Operations) commandError(out *Output, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	stderr := strings.TrimSpace(out.Stderr)

	if strings.Contains(stderr, "No such file or directory") {
		return fmt.Errorf("%s: %s: %w", msg, stderr, model.ErrNotFound)
	}
	if strings.Contains(stderr, "Permission denied") {
		return fmt.Errorf("%s: %s: %w", msg, stderr, model.ErrPermissionDenied)
	}

	return fmt.Errorf("%s (exit %d): %s", msg, out.ExitCode, stderr)
}
