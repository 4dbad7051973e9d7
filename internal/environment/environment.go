package environment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slok/envctl/internal/model"
)

// NoMatches is returned by Grep when nothing matched.
const NoMatches = "No matches found."

// Backend is the uniform interface for all execution environments.
//
// Callers only program against this interface, concrete backends (local,
// docker, ssh) and wrappers (logging, readonly) all implement it.
type Backend interface {
	// Type returns the backend type, used for diagnostics and dispatch.
	Type() model.EnvType
	// WorkingDirectory returns the directory where operations execute.
	WorkingDirectory() string
	// Platform returns the platform: linux, darwin or windows.
	Platform() string
	// OSVersion returns a human readable OS version.
	OSVersion() string

	// Exec runs a shell command. A timed out command is not an error, it's
	// returned as a result with TimedOut set.
	Exec(ctx context.Context, cmd string, opts model.ExecOpts) (*model.ExecResult, error)
	ReadFile(ctx context.Context, path string, opts model.ReadOpts) (string, error)
	// WriteFile creates the missing parent directories and writes (truncating) the file.
	WriteFile(ctx context.Context, path, content string) error
	// EditFile replaces the only occurrence of old with new. It fails if
	// old is not found or is found more than once.
	EditFile(ctx context.Context, path, old, new string) (string, error)
	// FileExists never fails on a missing path, it returns false.
	FileExists(ctx context.Context, path string) (bool, error)
	// ListDir lists entries ordered by name. A depth bigger than 1 also
	// returns nested entries named relative to path.
	ListDir(ctx context.Context, path string, depth int) ([]model.FileEntry, error)
	// Grep searches file contents with a regex. Returns NoMatches when
	// nothing matched, an invalid pattern is an error.
	Grep(ctx context.Context, pattern string, opts model.GrepOpts) (string, error)
	Glob(ctx context.Context, pattern, path string) ([]string, error)

	// Cleanup releases the backend resources. It must be called at most once.
	Cleanup(ctx context.Context) error
	// Info returns diagnostic information about the backend.
	Info() map[string]any
}

// ReplaceOnce replaces the single occurrence of old in content. Zero or
// multiple occurrences are an error, an ambiguous edit is never guessed.
func ReplaceOnce(content, path, old, new string) (string, error) {
	if old == "" {
		return "", fmt.Errorf("string to replace in %s can't be empty: %w", path, model.ErrNotValid)
	}

	switch count := strings.Count(content, old); count {
	case 0:
		return "", fmt.Errorf("string not found in %s: %w: %w", path, model.ErrAmbiguousEdit, model.ErrNotFound)
	case 1:
		return strings.Replace(content, old, new, 1), nil
	default:
		return "", fmt.Errorf("string not unique in %s (found %d times): %w: %w", path, count, model.ErrAmbiguousEdit, model.ErrNotUnique)
	}
}

// EditedMessage is the confirmation returned by a successful edit.
func EditedMessage(path string) string {
	return fmt.Sprintf("Edited %s: replaced 1 occurrence", path)
}

// TimedOutResult returns the result of a command that didn't finish in time.
func TimedOutResult(cmd string, timeout, elapsed time.Duration) *model.ExecResult {
	return &model.ExecResult{
		Stdout:     "",
		Stderr:     fmt.Sprintf("Command timed out after %s: %s", timeout, cmd),
		ExitCode:   model.ExitCodeTimeout,
		TimedOut:   true,
		DurationMS: elapsed.Milliseconds(),
	}
}

// IsRemoteTimeout returns true if err is the exec timeout expiring and not
// the caller giving up.
func IsRemoteTimeout(ctx context.Context, err error, timeout time.Duration) bool {
	return timeout > 0 && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)
}
