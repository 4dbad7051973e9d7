package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/envctl/internal/model"
)

// resolve returns the absolute, symlink free form of path, relative paths
// are taken from the working directory. Paths that end up outside the
// working directory are rejected, this includes absolute paths and symlinks
// pointing out.
func (b *Backend) resolve(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(b.workingDir, abs)
	}
	abs = filepath.Clean(abs)

	resolved, err := evalSymlinksExisting(abs)
	if err != nil {
		return "", fmt.Errorf("could not resolve path %q: %w", path, err)
	}

	if !isWithin(b.workingDir, resolved) {
		// Don't leak the resolved structure, the caller path is enough to explain it.
		return "", fmt.Errorf("path %q escapes working directory: %w", path, model.ErrPathEscape)
	}

	return resolved, nil
}

// evalSymlinksExisting resolves symlinks of the deepest existing ancestor and
// appends the missing tail, so paths that will be created can be validated.
func evalSymlinksExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	parent := filepath.Dir(path)
	if parent == path {
		return path, nil
	}

	resolvedParent, err := evalSymlinksExisting(parent)
	if err != nil {
		return "", err
	}

	return filepath.Join(resolvedParent, filepath.Base(path)), nil
}

func isWithin(root, path string) bool {
	return path == root || strings.HasPrefix(path, strings.TrimSuffix(root, string(os.PathSeparator))+string(os.PathSeparator))
}

// relative returns path relative to base using forward slashes.
func relative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
